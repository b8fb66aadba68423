package resolver

import (
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/mediafile"
)

// MusicResolver produces albums, artists and tracks. It runs before the movie
// resolver so a folder of audio files never falls through to a generic type.
type MusicResolver struct{}

func (*MusicResolver) Priority() int { return 10 }

func (*MusicResolver) Resolve(args *media.ResolveArgs) *media.Item {
	if args.IsEmpty() {
		return nil
	}

	if args.IsDirectory {
		if args.IsPhysicalRoot {
			return nil
		}

		hasAudio := false
		hasVideo := false
		hasChildDir := false
		for _, c := range args.Children {
			switch {
			case c.IsDir:
				hasChildDir = true
			case mediafile.IsThemeName(c.Name):
				// A "theme" file belongs to the owning item, it is not album
				// evidence.
			case mediafile.IsAudio(c.Name):
				hasAudio = true
			case mediafile.IsVideo(c.Name):
				hasVideo = true
			}
		}

		if hasAudio && !hasVideo {
			return media.New(media.KindAlbum, args.Path)
		}

		parentKind := media.Kind("")
		if args.Parent != nil {
			parentKind = args.Parent.Kind
		}

		// Inside a music collection a folder without audio of its own is an
		// artist holding album folders; under an artist it is an album (a
		// disc set resolves the same way).
		if parentKind == media.KindArtist {
			return media.New(media.KindAlbum, args.Path)
		}
		if args.CollectionType == media.CollectionMusic && hasChildDir {
			return media.New(media.KindArtist, args.Path)
		}
		// Outside a declared music collection an explicit sidecar still
		// identifies an artist folder.
		if args.ContainsMetaFileByName("artist.nfo") {
			return media.New(media.KindArtist, args.Path)
		}
		return nil
	}

	if mediafile.IsAudio(args.FileInfo.Name) {
		return media.New(media.KindTrack, args.Path)
	}
	return nil
}
