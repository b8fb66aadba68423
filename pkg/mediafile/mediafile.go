// Package mediafile classifies library files by name and holds the folder and
// filename conventions the resolvers and the dependent-media loader share.
package mediafile

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Well-known sub-folders searched for dependent media.
const (
	FolderTrailers   = "trailers"
	FolderThemeMusic = "theme-music"
	FolderBackdrops  = "backdrops"
)

// TrailerSuffix is the xbmc filename convention for a trailer stored next to
// its owner ("Heat-trailer.mkv").
const TrailerSuffix = "-trailer"

// ThemeStem is the filename (without extension) of a theme song stored inside
// the item's own folder.
const ThemeStem = "theme"

var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".m4v":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".ts":   {},
	".webm": {},
	".mpg":  {},
	".mpeg": {},
}

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".m4a":  {},
	".ogg":  {},
	".oga":  {},
	".wma":  {},
	".aac":  {},
	".wav":  {},
	".opus": {},
}

// IsVideo reports whether the file name carries a known video extension.
func IsVideo(name string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// IsAudio reports whether the file name carries a known audio extension.
func IsAudio(name string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Stem returns the file name without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

// IsTrailerName reports whether a video file follows the "-trailer" suffix
// convention.
func IsTrailerName(name string) bool {
	return IsVideo(name) && strings.HasSuffix(strings.ToLower(Stem(name)), TrailerSuffix)
}

// IsThemeName reports whether an audio file is literally named "theme".
func IsThemeName(name string) bool {
	return IsAudio(name) && strings.EqualFold(Stem(name), ThemeStem)
}

// VerifyMime checks that the bytes on disk look like audio or video. Library
// files can carry any extension, so the scan double-checks content before
// admitting a file; an unreadable file simply fails verification.
func VerifyMime(afs afero.Fs, path string) bool {
	f, err := afs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return false
	}
	for t := mtype; t != nil; t = t.Parent() {
		s := t.String()
		if strings.HasPrefix(s, "video/") || strings.HasPrefix(s, "audio/") {
			return true
		}
	}
	return false
}
