package media

import (
	"path/filepath"
)

// Kind is the closed set of entity variants the resolver protocol can
// produce. Behavior differences between kinds are expressed through the
// capability methods below instead of a type hierarchy.
type Kind string

const (
	KindMovie      Kind = "movie"
	KindSeries     Kind = "series"
	KindEpisode    Kind = "episode"
	KindArtist     Kind = "artist"
	KindAlbum      Kind = "album"
	KindTrack      Kind = "track"
	KindTrailer    Kind = "trailer"
	KindThemeSong  Kind = "theme_song"
	KindThemeVideo Kind = "theme_video"
	KindVideo      Kind = "video"
	KindFolder     Kind = "folder"
)

// IsFolder reports whether items of this kind own resolved children on disk.
func (k Kind) IsFolder() bool {
	switch k {
	case KindMovie, KindSeries, KindArtist, KindAlbum, KindFolder:
		return true
	}
	return false
}

// HasDependentMedia reports whether items of this kind carry theme songs,
// theme videos and local trailers of their own. Dependent media items never
// nest further dependent media.
func (k Kind) HasDependentMedia() bool {
	switch k {
	case KindTrailer, KindThemeSong, KindThemeVideo:
		return false
	}
	return true
}

// Label returns the display media-type label for the kind.
func (k Kind) Label() string {
	switch k {
	case KindMovie:
		return "Movie"
	case KindSeries:
		return "Series"
	case KindEpisode:
		return "Episode"
	case KindArtist:
		return "Artist"
	case KindAlbum:
		return "Album"
	case KindTrack:
		return "Track"
	case KindTrailer:
		return "Trailer"
	case KindThemeSong:
		return "Theme Song"
	case KindThemeVideo:
		return "Theme Video"
	case KindVideo:
		return "Video"
	}
	return "Folder"
}

// LocationType describes where an item's content lives. It is derived purely
// from the item's path.
type LocationType string

const (
	LocationVirtual    LocationType = "virtual"
	LocationFileSystem LocationType = "filesystem"
	LocationRemote     LocationType = "remote"
)

func locationOf(path string) LocationType {
	if path == "" {
		return LocationVirtual
	}
	if filepath.IsAbs(path) {
		return LocationFileSystem
	}
	return LocationRemote
}
