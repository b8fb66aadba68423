package worker

import (
	"testing"

	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessScanJob_CreatesItems(t *testing.T) {
	tc := newTestContext(t)
	tc.createLibrary([]string{"/media/movies"})

	tc.writeFile("/media/movies/Heat (1995)/Heat (1995).mkv", mkvBytes)
	tc.writeFile("/media/movies/Alien.mp4", mp4Bytes)

	err := tc.runScan()
	require.NoError(t, err)

	recs := tc.listItems()
	require.Len(t, recs, 2)

	movie := tc.itemByPath("/media/movies/Heat (1995)")
	require.NotNil(t, movie)
	assert.Equal(t, string(media.KindMovie), movie.Kind)
	assert.Equal(t, "Heat (1995)", movie.Name)
	assert.Equal(t, media.IDForPath(media.KindMovie, movie.Path), movie.ID)
	assert.NotEmpty(t, movie.Stamp)

	video := tc.itemByPath("/media/movies/Alien.mp4")
	require.NotNil(t, video)
	assert.Equal(t, string(media.KindVideo), video.Kind)
	assert.Equal(t, "Alien", video.Name)
}

func TestProcessScanJob_SecondScanSkipsUnchanged(t *testing.T) {
	tc := newTestContext(t)
	tc.createLibrary([]string{"/media/movies"})
	tc.writeFile("/media/movies/Heat (1995)/Heat (1995).mkv", mkvBytes)

	err := tc.runScan()
	require.NoError(t, err)

	before := tc.itemByPath("/media/movies/Heat (1995)")
	require.NotNil(t, before)
	require.NotEmpty(t, before.Stamp)

	err = tc.runScan()
	require.NoError(t, err)

	after := tc.itemByPath("/media/movies/Heat (1995)")
	require.NotNil(t, after)
	assert.Equal(t, before.Stamp, after.Stamp)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Len(t, tc.listItems(), 1)
}

func TestProcessScanJob_RemovesVanishedItems(t *testing.T) {
	tc := newTestContext(t)
	tc.createLibrary([]string{"/media/movies"})
	tc.writeFile("/media/movies/Alien.mp4", mp4Bytes)

	err := tc.runScan()
	require.NoError(t, err)
	require.Len(t, tc.listItems(), 1)

	err = tc.afs.Remove("/media/movies/Alien.mp4")
	require.NoError(t, err)

	err = tc.runScan()
	require.NoError(t, err)
	assert.Empty(t, tc.listItems())
}

func TestProcessScanJob_RejectsMislabeledFiles(t *testing.T) {
	tc := newTestContext(t)
	tc.createLibrary([]string{"/media/movies"})

	// Video extension, but the content is plain text.
	tc.writeFile("/media/movies/notes.mkv", []byte("shopping list"))

	err := tc.runScan()
	require.NoError(t, err)
	assert.Empty(t, tc.listItems())
}

func TestProcessScanJob_MissingLibraryPath(t *testing.T) {
	tc := newTestContext(t)
	tc.createLibrary([]string{"/media/offline"})

	err := tc.afs.RemoveAll("/media/offline")
	require.NoError(t, err)

	err = tc.runScan()
	require.NoError(t, err)
	assert.Empty(t, tc.listItems())
}

func TestProcessScanJob_MusicLibraryRecurses(t *testing.T) {
	tc := newTestContext(t)
	tc.createLibraryWithType([]string{"/media/music"}, models.CollectionTypeMusic)

	tc.writeFile("/media/music/Kraftwerk/Autobahn/Autobahn.mp3", mp3Bytes)
	tc.writeFile("/media/music/Kraftwerk/Autobahn/Kometenmelodie 1.mp3", mp3Bytes)

	err := tc.runScan()
	require.NoError(t, err)

	artist := tc.itemByPath("/media/music/Kraftwerk")
	require.NotNil(t, artist)
	assert.Equal(t, string(media.KindArtist), artist.Kind)

	album := tc.itemByPath("/media/music/Kraftwerk/Autobahn")
	require.NotNil(t, album)
	assert.Equal(t, string(media.KindAlbum), album.Kind)

	track := tc.itemByPath("/media/music/Kraftwerk/Autobahn/Autobahn.mp3")
	require.NotNil(t, track)
	assert.Equal(t, string(media.KindTrack), track.Kind)

	assert.Len(t, tc.listItems(), 4)
}

func TestProcessScanJob_SkipsDependentMediaEntries(t *testing.T) {
	tc := newTestContext(t)
	tc.createLibrary([]string{"/media/movies"})

	tc.writeFile("/media/movies/Heat (1995)/Heat (1995).mkv", mkvBytes)
	tc.writeFile("/media/movies/Heat (1995)/trailers/teaser.mkv", mkvBytes)
	tc.writeFile("/media/movies/Alien.mp4", mp4Bytes)
	tc.writeFile("/media/movies/Alien-trailer.mp4", mp4Bytes)

	err := tc.runScan()
	require.NoError(t, err)

	// The movie's trailer is cataloged by its refresh, not as a top-level
	// scan entry; the loose root-level trailer file belongs to nothing.
	recs := tc.listItems()
	require.Len(t, recs, 3)
	trailer := tc.itemByPath("/media/movies/Heat (1995)/trailers/teaser.mkv")
	require.NotNil(t, trailer)
	assert.Equal(t, string(media.KindTrailer), trailer.Kind)
	assert.Nil(t, tc.itemByPath("/media/movies/Alien-trailer.mp4"))
}

func TestProcessScanJob_ScopedToLibrary(t *testing.T) {
	tc := newTestContext(t)
	first := tc.createLibrary([]string{"/media/movies"})
	tc.createLibrary([]string{"/media/other"})

	tc.writeFile("/media/movies/Alien.mp4", mp4Bytes)
	tc.writeFile("/media/other/Blade.mp4", mp4Bytes)

	job := &models.Job{
		Type:       models.JobTypeScan,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobScanData{},
		LibraryID:  &first.ID,
	}
	err := tc.jobService.CreateJob(tc.ctx, job)
	require.NoError(t, err)

	err = tc.worker.ProcessScanJob(tc.ctx, job)
	require.NoError(t, err)

	require.Len(t, tc.listItems(), 1)
	assert.NotNil(t, tc.itemByPath("/media/movies/Alien.mp4"))
}
