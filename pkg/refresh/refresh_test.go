package refresh

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kinoteka/kinoteka/pkg/filesystem"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/resolver"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*media.Item
	upserts []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[uuid.UUID]*media.Item{}}
}

func (s *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*media.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id], nil
}

func (s *fakeStore) Upsert(_ context.Context, item *media.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	s.upserts = append(s.upserts, item.ID)
	return nil
}

func (s *fakeStore) DeleteItem(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

func (s *fakeStore) put(item *media.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

type fakeProvider struct {
	changed bool
	err     error
}

func (p *fakeProvider) EnrichMetadata(ctx context.Context, _ *media.Item, _, _ bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.changed, p.err
}

type fixture struct {
	afs      afero.Fs
	store    *fakeStore
	provider *fakeProvider
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	afs := afero.NewMemMapFs()
	fsys := filesystem.NewService(afs)
	store := newFakeStore()
	provider := &fakeProvider{}
	chain := resolver.NewChain(fsys)
	return &fixture{
		afs:      afs,
		store:    store,
		provider: provider,
		orch:     New(fsys, store, provider, chain),
	}
}

func (f *fixture) mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, f.afs.MkdirAll(path, 0755))
}

func (f *fixture) touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.afs, path, []byte("x"), 0644))
}

func (f *fixture) movie(t *testing.T, path string) *media.Item {
	t.Helper()
	f.mkdir(t, path)
	f.touch(t, path+"/main.mkv")
	return media.New(media.KindMovie, path)
}

func TestRefreshUnchangedSecondCall(t *testing.T) {
	f := newFixture(t)
	item := f.movie(t, "/media/movies/Heat")

	changed, err := f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.orch.Refresh(context.Background(), item, Options{ResetCache: true})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, f.store.upsertCount())
}

func TestRefreshEmptyDirectory(t *testing.T) {
	f := newFixture(t)
	f.mkdir(t, "/media/movies/Empty")
	item := media.New(media.KindFolder, "/media/movies/Empty")

	changed, err := f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, item.LocalTrailerIDs)
	assert.Empty(t, item.ThemeSongIDs)
	assert.Empty(t, item.ThemeVideoIDs)
}

func TestRefreshDiscoversDependentMedia(t *testing.T) {
	f := newFixture(t)
	item := f.movie(t, "/media/movies/Heat")
	f.touch(t, "/media/movies/Heat/trailers/teaser.mkv")
	f.touch(t, "/media/movies/Heat/theme-music/opening.mp3")
	f.touch(t, "/media/movies/Heat/backdrops/loop.mp4")
	f.touch(t, "/media/movies/Heat/Heat-trailer.mkv")
	item.ResetResolveArgs()

	changed, err := f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.True(t, changed)

	require.Len(t, item.LocalTrailerIDs, 2)
	require.Len(t, item.ThemeSongIDs, 1)
	require.Len(t, item.ThemeVideoIDs, 1)
	assert.Equal(t, media.IDForPath(media.KindThemeSong, "/media/movies/Heat/theme-music/opening.mp3"), item.ThemeSongIDs[0])
	assert.Equal(t, media.IDForPath(media.KindThemeVideo, "/media/movies/Heat/backdrops/loop.mp4"), item.ThemeVideoIDs[0])

	// The parent was persisted because its dependent sets changed.
	assert.GreaterOrEqual(t, f.store.upsertCount(), 1)
}

func TestRefreshDependentOrderMatters(t *testing.T) {
	f := newFixture(t)
	item := f.movie(t, "/media/movies/Heat")
	f.touch(t, "/media/movies/Heat/theme-music/01 opening.mp3")
	f.touch(t, "/media/movies/Heat/theme-music/02 credits.mp3")
	item.ResetResolveArgs()

	a := media.IDForPath(media.KindThemeSong, "/media/movies/Heat/theme-music/01 opening.mp3")
	b := media.IDForPath(media.KindThemeSong, "/media/movies/Heat/theme-music/02 credits.mp3")

	// Same membership, different stored order: counts as changed.
	item.ThemeSongIDs = []uuid.UUID{b, a}
	changed, err := f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []uuid.UUID{a, b}, item.ThemeSongIDs)

	// Matching order: unchanged.
	item.ResetResolveArgs()
	changed, err = f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRefreshReconcilesStoredTwin(t *testing.T) {
	f := newFixture(t)
	item := f.movie(t, "/media/movies/Heat")
	f.touch(t, "/media/movies/Heat/trailers/teaser.mkv")
	item.ResetResolveArgs()

	// A previous scan persisted this trailer and a provider enriched it.
	stored := media.New(media.KindTrailer, "/media/movies/Heat/trailers/teaser.mkv")
	stored.SetName("Teaser")
	stored.Overview = "Early teaser cut."
	stored.SetProviderID("tmdb", "949-t1")
	f.store.put(stored)

	changed, err := f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.True(t, changed)

	require.Len(t, item.LocalTrailerIDs, 1)
	assert.Equal(t, stored.ID, item.LocalTrailerIDs[0])

	// The stored instance was reused: enrichment history intact, snapshot
	// replaced with the freshly observed one.
	assert.Equal(t, "Early teaser cut.", stored.Overview)
	assert.Equal(t, "949-t1", stored.GetProviderID("tmdb"))
	assert.NotNil(t, stored.CachedResolveArgs())
	assert.Same(t, item, stored.Parent())
}

func TestRefreshPrunesVanishedDependents(t *testing.T) {
	f := newFixture(t)
	item := f.movie(t, "/media/movies/Heat")
	f.touch(t, "/media/movies/Heat/trailers/teaser.mkv")
	item.ResetResolveArgs()

	changed, err := f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, item.LocalTrailerIDs, 1)
	trailerID := item.LocalTrailerIDs[0]

	stored, err := f.store.FindByID(context.Background(), trailerID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	// The trailer file is gone on the next refresh: the record goes with it.
	require.NoError(t, f.afs.Remove("/media/movies/Heat/trailers/teaser.mkv"))
	item.ResetResolveArgs()

	changed, err = f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, item.LocalTrailerIDs)

	stored, err = f.store.FindByID(context.Background(), trailerID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRefreshForceSave(t *testing.T) {
	f := newFixture(t)
	item := f.movie(t, "/media/movies/Heat")

	changed, err := f.orch.Refresh(context.Background(), item, Options{ForceSave: true})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, f.store.upsertCount())
}

func TestRefreshProviderChangePersists(t *testing.T) {
	f := newFixture(t)
	f.provider.changed = true
	item := f.movie(t, "/media/movies/Heat")

	changed, err := f.orch.Refresh(context.Background(), item, Options{})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, f.store.upsertCount())
}

func TestRefreshProviderErrorSurfaces(t *testing.T) {
	f := newFixture(t)
	f.provider.err = assert.AnError
	item := f.movie(t, "/media/movies/Heat")

	_, err := f.orch.Refresh(context.Background(), item, Options{})
	require.Error(t, err)
	assert.Equal(t, 0, f.store.upsertCount())
}

func TestRefreshCancelledNeverPersists(t *testing.T) {
	f := newFixture(t)
	item := f.movie(t, "/media/movies/Heat")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Refresh(ctx, item, Options{ForceSave: true})
	require.Error(t, err)
	assert.Equal(t, 0, f.store.upsertCount())
}

func TestRefreshNilItem(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Refresh(context.Background(), nil, Options{})
	require.Error(t, err)
}

func TestRefreshMissingOwnPathSurfaces(t *testing.T) {
	f := newFixture(t)
	item := media.New(media.KindMovie, "/media/movies/Vanished")

	_, err := f.orch.Refresh(context.Background(), item, Options{})
	require.Error(t, err)
	assert.Equal(t, 0, f.store.upsertCount())
}
