package media

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationType(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected LocationType
	}{
		{name: "no path is virtual", path: "", expected: LocationVirtual},
		{name: "rooted path is filesystem", path: "/media/movies/Heat", expected: LocationFileSystem},
		{name: "anything else is remote", path: "https://example.com/trailer.mp4", expected: LocationRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := New(KindMovie, tt.path)
			assert.Equal(t, tt.expected, item.LocationType())
		})
	}
}

func TestSortNameInvalidatedBySetName(t *testing.T) {
	item := New(KindMovie, "/media/movies/Heat")
	item.SetName("The Matrix")
	assert.Equal(t, "matrix", item.SortName())

	item.SetName("A Beautiful Mind")
	assert.Equal(t, "beautiful mind", item.SortName())
}

func TestSortNameForcedOverrideWins(t *testing.T) {
	item := New(KindMovie, "/media/movies/Heat")
	item.SetName("The Matrix")
	item.ForceSortName("zzz last")
	assert.Equal(t, "zzz last", item.SortName())
}

func TestProviderIDsCaseInsensitive(t *testing.T) {
	item := New(KindMovie, "/media/movies/Heat")
	item.SetProviderID("Tmdb", "949")
	assert.Equal(t, "949", item.GetProviderID("TMDB"))
	assert.Equal(t, "949", item.GetProviderID("tmdb"))
}

func TestClearMetaValues(t *testing.T) {
	item := New(KindMovie, "/media/movies/Heat")
	item.SetName("Heat")
	item.SetParent(New(KindFolder, "/media/movies"))
	item.Genres = []string{"Crime"}
	item.Studios = []string{"Regency"}
	item.Taglines = []string{"A Los Angeles crime saga."}
	item.SetProviderID("tmdb", "949")
	item.DisplayMediaType = "Feature"

	id := item.ID
	parent := item.Parent()
	item.ClearMetaValues()

	assert.Empty(t, item.Genres)
	assert.Empty(t, item.Studios)
	assert.Empty(t, item.Taglines)
	assert.Empty(t, item.GetProviderID("tmdb"))
	assert.Equal(t, "Movie", item.DisplayMediaType)

	// Identity and hierarchy are untouched.
	assert.Equal(t, id, item.ID)
	assert.Same(t, parent, item.Parent())
	assert.Equal(t, "Heat", item.Name())
}

func TestResolveArgsLazyAndCached(t *testing.T) {
	afs, fsys := newTestFS(t)
	require.NoError(t, afs.MkdirAll("/media/movies/Heat", 0755))
	writeFile(t, afs, "/media/movies/Heat/Heat.mkv")

	item := New(KindMovie, "/media/movies/Heat")
	args, err := item.ResolveArgs(context.Background(), fsys)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Heat.mkv"}, args.ChildNames())

	// A new file on disk is invisible until the cache is reset.
	writeFile(t, afs, "/media/movies/Heat/extra.mkv")
	again, err := item.ResolveArgs(context.Background(), fsys)
	require.NoError(t, err)
	assert.Same(t, args, again)

	item.ResetResolveArgs()
	fresh, err := item.ResolveArgs(context.Background(), fsys)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Heat.mkv", "extra.mkv"}, fresh.ChildNames())
}

func TestResolveArgsErrorLeavesCacheEmpty(t *testing.T) {
	afs, fsys := newTestFS(t)

	item := New(KindMovie, "/media/movies/Heat")
	_, err := item.ResolveArgs(context.Background(), fsys)
	require.Error(t, err)
	assert.Nil(t, item.CachedResolveArgs())

	// Once the directory exists, a retry succeeds.
	require.NoError(t, afs.MkdirAll("/media/movies/Heat", 0755))
	args, err := item.ResolveArgs(context.Background(), fsys)
	require.NoError(t, err)
	assert.NotNil(t, args)
}

func TestResolveArgsConcurrentCallersShareResult(t *testing.T) {
	afs, fsys := newTestFS(t)
	require.NoError(t, afs.MkdirAll("/media/movies/Heat", 0755))

	item := New(KindMovie, "/media/movies/Heat")

	const callers = 16
	results := make([]*ResolveArgs, callers)
	var wg sync.WaitGroup
	for n := 0; n < callers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			args, err := item.ResolveArgs(context.Background(), fsys)
			assert.NoError(t, err)
			results[n] = args
		}(n)
	}
	wg.Wait()

	for n := 1; n < callers; n++ {
		assert.Same(t, results[0], results[n])
	}
}

func TestFileSystemStamp(t *testing.T) {
	afs, fsys := newTestFS(t)
	require.NoError(t, afs.MkdirAll("/media/movies/Heat", 0755))
	writeFile(t, afs, "/media/movies/Heat/Heat.mkv")

	item := New(KindMovie, "/media/movies/Heat")
	stamp, err := item.FileSystemStamp(context.Background(), fsys)
	require.NoError(t, err)
	assert.False(t, stamp.IsZero())

	// Unchanged directory, same value after a reset.
	item.ResetResolveArgs()
	same, err := item.FileSystemStamp(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, stamp, same)

	// A new child changes the stamp once the snapshot is rebuilt.
	writeFile(t, afs, "/media/movies/Heat/Heat-trailer.mkv")
	item.ResetResolveArgs()
	changed, err := item.FileSystemStamp(context.Background(), fsys)
	require.NoError(t, err)
	assert.NotEqual(t, stamp, changed)
}

func TestFileSystemStampSentinels(t *testing.T) {
	afs, fsys := newTestFS(t)

	virtual := New(KindFolder, "")
	stamp, err := virtual.FileSystemStamp(context.Background(), fsys)
	require.NoError(t, err)
	assert.True(t, stamp.IsZero())

	writeFile(t, afs, "/media/movies/heat.mkv")
	file := New(KindVideo, "/media/movies/heat.mkv")
	stamp, err = file.FileSystemStamp(context.Background(), fsys)
	require.NoError(t, err)
	assert.True(t, stamp.IsZero(), "plain files carry no stamp")
}
