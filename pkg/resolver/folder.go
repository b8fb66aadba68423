package resolver

import (
	"github.com/kinoteka/kinoteka/pkg/media"
)

// FolderResolver is the generic fallback: any directory resolves to a plain
// folder. Files that reached this point are inert (artwork, subtitles,
// sidecars) and yield nothing.
type FolderResolver struct{}

func (*FolderResolver) Priority() int { return 100 }

func (*FolderResolver) Resolve(args *media.ResolveArgs) *media.Item {
	if args.IsEmpty() || !args.IsDirectory {
		return nil
	}
	return media.New(media.KindFolder, args.Path)
}
