package resolver

import (
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/mediafile"
)

// MovieResolver produces movies from directories holding video files, and
// trailer/video items from standalone video files.
type MovieResolver struct{}

func (*MovieResolver) Priority() int { return 20 }

func (*MovieResolver) Resolve(args *media.ResolveArgs) *media.Item {
	if args.IsEmpty() {
		return nil
	}

	if args.IsDirectory {
		// The physical root itself is never a movie.
		if args.IsPhysicalRoot {
			return nil
		}
		for _, c := range args.Children {
			if !c.IsDir && mediafile.IsVideo(c.Name) {
				return media.New(media.KindMovie, args.Path)
			}
		}
		return nil
	}

	if !mediafile.IsVideo(args.FileInfo.Name) {
		return nil
	}
	if mediafile.IsTrailerName(args.FileInfo.Name) {
		return media.New(media.KindTrailer, args.Path)
	}
	return media.New(media.KindVideo, args.Path)
}
