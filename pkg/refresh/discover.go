package refresh

import (
	"context"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/mediafile"
	"github.com/pkg/errors"
)

// errNotFoundPath matches the accessor's not-found condition.
var errNotFoundPath = errcodes.NotFound("Path")

// discoverThemeSongs finds theme-song candidates: everything inside the
// item's theme-music folder plus any audio file literally named "theme" among
// the item's own children.
func (o *Orchestrator) discoverThemeSongs(ctx context.Context, item *media.Item) ([]string, error) {
	args, err := item.ResolveArgs(ctx, o.fsys)
	if err != nil {
		return nil, err
	}
	if !args.IsDirectory {
		return nil, nil
	}

	paths, err := o.subfolderChildren(args, mediafile.FolderThemeMusic)
	if err != nil {
		return nil, err
	}
	for _, c := range args.Children {
		if !c.IsDir && mediafile.IsThemeName(c.Name) {
			paths = append(paths, c.Path)
		}
	}
	return paths, nil
}

// discoverThemeVideos finds theme-video candidates inside the backdrops
// folder.
func (o *Orchestrator) discoverThemeVideos(ctx context.Context, item *media.Item) ([]string, error) {
	args, err := item.ResolveArgs(ctx, o.fsys)
	if err != nil {
		return nil, err
	}
	if !args.IsDirectory {
		return nil, nil
	}
	return o.subfolderChildren(args, mediafile.FolderBackdrops)
}

// discoverTrailers finds local-trailer candidates: everything inside the
// trailers folder plus "-trailer" suffixed siblings among the item's own
// children. A candidate whose path is the item's own path is excluded so an
// entity never matches itself.
func (o *Orchestrator) discoverTrailers(ctx context.Context, item *media.Item) ([]string, error) {
	args, err := item.ResolveArgs(ctx, o.fsys)
	if err != nil {
		return nil, err
	}
	if !args.IsDirectory {
		return nil, nil
	}

	paths, err := o.subfolderChildren(args, mediafile.FolderTrailers)
	if err != nil {
		return nil, err
	}
	for _, c := range args.Children {
		if c.IsDir || !mediafile.IsTrailerName(c.Name) {
			continue
		}
		if c.Path == item.Path {
			continue
		}
		paths = append(paths, c.Path)
	}
	return paths, nil
}

// subfolderChildren lists the files inside a named optional child folder. A
// folder that is absent, or that vanished between enumeration and the read,
// yields an empty result; any other I/O failure surfaces.
func (o *Orchestrator) subfolderChildren(args *media.ResolveArgs, folder string) ([]string, error) {
	dir := args.ChildDirByName(folder)
	if dir == nil {
		return nil, nil
	}

	entries, err := o.fsys.ReadDir(dir.Path)
	if err != nil {
		if errors.Is(err, errNotFoundPath) {
			return nil, nil
		}
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !e.Publishable() {
			continue
		}
		paths = append(paths, e.Path)
	}
	return paths, nil
}
