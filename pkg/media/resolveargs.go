package media

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/kinoteka/kinoteka/pkg/filesystem"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// MetadataFileSuffix marks sidecar description files that accompany an item's
// directory.
const MetadataFileSuffix = ".metadata.json"

// errNotFoundPath matches the accessor's not-found condition.
var errNotFoundPath = errcodes.NotFound("Path")

// Collection types carried from the owning library down to resolution.
const (
	CollectionMovies = "movies"
	CollectionMusic  = "music"
)

// ResolveArgs is the transient snapshot of a path handed to the resolver
// protocol. It is never persisted: it exists so that resolution and change
// detection are a single file-system pass over already-captured data.
type ResolveArgs struct {
	Path           string
	FileInfo       *filesystem.Info
	IsDirectory    bool
	IsPhysicalRoot bool
	IsVFolder      bool

	// Parent is the container on whose behalf the snapshot was taken, if any.
	Parent *Item
	// CollectionType is the owning library's content type, when known.
	CollectionType string

	// Children are the immediate publishable entries of the directory.
	Children []*filesystem.Info
	// MetadataFiles are the sidecar entries split out of Children.
	MetadataFiles []*filesystem.Info
}

// IsEmpty reports whether the snapshot carries no directory semantics
// (virtual or pathless items).
func (a *ResolveArgs) IsEmpty() bool {
	return a.FileInfo == nil
}

// ChildNames returns the names of the directory's publishable children.
func (a *ResolveArgs) ChildNames() []string {
	names := make([]string, 0, len(a.Children))
	for _, c := range a.Children {
		names = append(names, c.Name)
	}
	return names
}

// MetadataFileNames returns the names of the sidecar entries.
func (a *ResolveArgs) MetadataFileNames() []string {
	names := make([]string, 0, len(a.MetadataFiles))
	for _, m := range a.MetadataFiles {
		names = append(names, m.Name)
	}
	return names
}

// ChildDirByName returns the child directory with the given name, matched
// case-insensitively, or nil.
func (a *ResolveArgs) ChildDirByName(name string) *filesystem.Info {
	for _, c := range a.Children {
		if c.IsDir && strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// ContainsMetaFileByName reports whether a sidecar with the given name exists,
// matched case-insensitively.
func (a *ResolveArgs) ContainsMetaFileByName(name string) bool {
	for _, m := range a.MetadataFiles {
		if strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}

// BuildOptions control physical-root and virtual-folder handling during a
// snapshot build.
type BuildOptions struct {
	IsPhysicalRoot bool
	IsVFolder      bool
	Parent         *Item
	CollectionType string
}

// BuildResolveArgs captures the snapshot of path. It is the one place the
// pipeline touches disk: everything downstream works off the returned value.
//
// A pathless target yields an empty snapshot, not an error. A path that
// vanished between enumeration and dereference surfaces as NotFound.
func BuildResolveArgs(ctx context.Context, fsys filesystem.FS, path string, opts BuildOptions) (*ResolveArgs, error) {
	args := &ResolveArgs{
		Path:           path,
		IsPhysicalRoot: opts.IsPhysicalRoot,
		IsVFolder:      opts.IsVFolder,
		Parent:         opts.Parent,
		CollectionType: opts.CollectionType,
	}

	if locationOf(path) != LocationFileSystem {
		// Virtual and remote items have no directory semantics.
		return args, nil
	}

	// Shortcut indirection is only legitimate when scanning a physical root
	// or a virtual folder; everywhere else the path is taken literally.
	if opts.IsPhysicalRoot || opts.IsVFolder {
		resolved, err := fsys.ResolveShortcut(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		path = resolved
		args.Path = path
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return nil, err
	}
	args.FileInfo = info
	args.IsDirectory = info.IsDir

	if !info.IsDir {
		return args, nil
	}

	var children []*filesystem.Info
	if opts.IsPhysicalRoot {
		children, err = flattenPhysicalRoot(ctx, fsys, path, opts.CollectionType)
	} else {
		children, err = publishableChildren(fsys, path)
	}
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		if isMetadataFile(c) {
			args.MetadataFiles = append(args.MetadataFiles, c)
			continue
		}
		args.Children = append(args.Children, c)
	}

	return args, nil
}

// flattenPhysicalRoot enumerates two levels beneath the root so user-defined
// top-level groupings collapse into their actual leaf folders. Only pure
// groupings collapse: a directory holding any file of its own is a leaf
// (a movie folder, an artist folder marked by a sidecar) and is kept as a
// child itself. In a music collection a directory of directories is an artist
// holding albums, never a grouping. Shortcut targets are resolved, and a
// flattened entry that is a descendant of another already-listed directory is
// dropped so the same content never appears twice under different paths.
func flattenPhysicalRoot(ctx context.Context, fsys filesystem.FS, root, collectionType string) ([]*filesystem.Info, error) {
	log := logger.FromContext(ctx)

	top, err := publishableChildren(fsys, root)
	if err != nil {
		return nil, err
	}

	var flattened []*filesystem.Info
	for _, entry := range top {
		if !entry.IsDir {
			flattened = append(flattened, entry)
			continue
		}

		grandchildren, err := publishableChildren(fsys, entry.Path)
		if err != nil {
			if errors.Is(err, errNotFoundPath) {
				// The folder vanished mid-scan; skip it.
				continue
			}
			return nil, err
		}
		if !isGroupingFolder(grandchildren, collectionType) {
			flattened = append(flattened, entry)
			continue
		}
		for _, gc := range grandchildren {
			resolvedPath, err := fsys.ResolveShortcut(gc.Path)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			if resolvedPath != gc.Path {
				resolved, err := fsys.Stat(resolvedPath)
				if err != nil {
					if errors.Is(err, errNotFoundPath) {
						log.Warn("shortcut target missing, skipping", logger.Data{"path": gc.Path, "target": resolvedPath})
						continue
					}
					return nil, err
				}
				gc = resolved
			}
			flattened = append(flattened, gc)
		}
	}

	return dedupeDescendants(ctx, flattened), nil
}

// isGroupingFolder reports whether a top-level directory with the given
// children is a user grouping to collapse rather than a media leaf. Empty
// directories are leaves for the folder resolver to judge.
func isGroupingFolder(children []*filesystem.Info, collectionType string) bool {
	if len(children) == 0 || collectionType == CollectionMusic {
		return false
	}
	for _, c := range children {
		if !c.IsDir {
			return false
		}
	}
	return true
}

// dedupeDescendants drops entries located inside another listed directory.
// The check is a strict directory-prefix comparison on path segments, not raw
// text, so "/media/film" never swallows "/media/films-hd".
func dedupeDescendants(ctx context.Context, entries []*filesystem.Info) []*filesystem.Info {
	log := logger.FromContext(ctx)

	kept := make([]*filesystem.Info, 0, len(entries))
	for _, candidate := range entries {
		dropped := false
		for _, other := range entries {
			if other == candidate || !other.IsDir {
				continue
			}
			if isDescendantPath(candidate.Path, other.Path) {
				log.Info("dropping duplicate flattened path", logger.Data{"path": candidate.Path, "ancestor": other.Path})
				dropped = true
				break
			}
		}
		if !dropped {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func isDescendantPath(path, ancestor string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func publishableChildren(fsys filesystem.FS, path string) ([]*filesystem.Info, error) {
	entries, err := fsys.ReadDir(path)
	if err != nil {
		return nil, err
	}
	kept := make([]*filesystem.Info, 0, len(entries))
	for _, e := range entries {
		if !e.Publishable() {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

func isMetadataFile(info *filesystem.Info) bool {
	if info.IsDir {
		return false
	}
	name := strings.ToLower(info.Name)
	return strings.HasSuffix(name, MetadataFileSuffix) || strings.HasSuffix(name, ".nfo")
}
