package mediafile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name    string
		video   bool
		audio   bool
		trailer bool
		theme   bool
	}{
		{name: "Heat.mkv", video: true},
		{name: "Heat.MKV", video: true},
		{name: "Heat-trailer.mp4", video: true, trailer: true},
		{name: "Heat-Trailer.mp4", video: true, trailer: true},
		{name: "theme.mp3", audio: true, theme: true},
		{name: "Theme.flac", audio: true, theme: true},
		{name: "theme.mkv", video: true},
		{name: "Heat-trailer.mp3", audio: true},
		{name: "main-theme.mp3", audio: true},
		{name: "cover.jpg"},
		{name: "movie.nfo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.video, IsVideo(tt.name), "IsVideo")
			assert.Equal(t, tt.audio, IsAudio(tt.name), "IsAudio")
			assert.Equal(t, tt.trailer, IsTrailerName(tt.name), "IsTrailerName")
			assert.Equal(t, tt.theme, IsThemeName(tt.name), "IsThemeName")
		})
	}
}

func TestStem(t *testing.T) {
	assert.Equal(t, "Heat", Stem("/media/movies/Heat/Heat.mkv"))
	assert.Equal(t, "theme", Stem("theme.mp3"))
	assert.Equal(t, "noext", Stem("noext"))
}
