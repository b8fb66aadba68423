// Package resolver turns resolve-args snapshots into typed media items.
// Strategies are tried in ascending priority order so specific ones (music
// folders) run before generic fallbacks (plain folders); the first acceptance
// wins. A resolver never touches the disk itself, it only inspects the
// snapshot it is handed, which keeps resolution a single file-system pass.
package resolver

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/kinoteka/kinoteka/pkg/filesystem"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/mediafile"
)

// Resolver is one resolution strategy. Resolve returns nil to decline.
type Resolver interface {
	Priority() int
	Resolve(args *media.ResolveArgs) *media.Item
}

// Chain tries resolvers in ascending priority order.
type Chain struct {
	fsys      filesystem.FS
	resolvers []Resolver
}

// NewChain builds a chain over the given strategies. Passing no strategies
// installs the default set.
func NewChain(fsys filesystem.FS, resolvers ...Resolver) *Chain {
	if len(resolvers) == 0 {
		resolvers = []Resolver{
			&MusicResolver{},
			&MovieResolver{},
			&FolderResolver{},
		}
	}
	sorted := make([]Resolver, len(resolvers))
	copy(sorted, resolvers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Chain{fsys: fsys, resolvers: sorted}
}

// ResolvePath captures the snapshot of path and runs it through the chain.
// All strategies declining yields (nil, nil): some files are intentionally
// inert, like artwork. The winning item gets the snapshot cached on it along
// with its name and parent linkage.
func (c *Chain) ResolvePath(ctx context.Context, path string, parent *media.Item, opts media.BuildOptions) (*media.Item, error) {
	opts.Parent = parent
	args, err := media.BuildResolveArgs(ctx, c.fsys, path, opts)
	if err != nil {
		return nil, err
	}
	return c.ResolveArgs(args, parent), nil
}

// ResolveArgs runs an already-captured snapshot through the chain.
func (c *Chain) ResolveArgs(args *media.ResolveArgs, parent *media.Item) *media.Item {
	for _, r := range c.resolvers {
		item := r.Resolve(args)
		if item == nil {
			continue
		}
		item.SetParent(parent)
		item.SetName(entryName(args))
		item.SetResolveArgs(args)
		return item
	}
	return nil
}

// ResolveMany resolves candidate paths into items of the wanted kind. Paths
// that resolve to nothing or to an incompatible kind are skipped; compatible
// items are re-typed (a plain video next to a movie becomes its trailer when
// the loader asks for trailers).
func (c *Chain) ResolveMany(ctx context.Context, paths []string, parent *media.Item, want media.Kind) ([]*media.Item, error) {
	items := make([]*media.Item, 0, len(paths))
	for _, path := range paths {
		item, err := c.ResolvePath(ctx, path, parent, media.BuildOptions{})
		if err != nil {
			return nil, err
		}
		if item == nil || !coerceKind(item, want) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// coerceKind re-types item to want when the underlying media is compatible.
// The identity is re-derived so the same path always reconciles to the same
// stored record for its final kind.
func coerceKind(item *media.Item, want media.Kind) bool {
	if item.Kind == want {
		return true
	}
	switch want {
	case media.KindTrailer, media.KindThemeVideo:
		if item.Kind != media.KindVideo && item.Kind != media.KindTrailer {
			return false
		}
	case media.KindThemeSong:
		if item.Kind != media.KindTrack {
			return false
		}
	default:
		return false
	}
	item.Kind = want
	item.ID = media.IDForPath(want, item.Path)
	return true
}

func entryName(args *media.ResolveArgs) string {
	if args.FileInfo == nil {
		return ""
	}
	if args.IsDirectory {
		return filepath.Base(args.Path)
	}
	return mediafile.Stem(args.FileInfo.Name)
}
