package worker

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/kinoteka/kinoteka/pkg/config"
	"github.com/kinoteka/kinoteka/pkg/items"
	"github.com/kinoteka/kinoteka/pkg/jobs"
	"github.com/kinoteka/kinoteka/pkg/libraries"
	"github.com/kinoteka/kinoteka/pkg/migrations"
	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/spf13/afero"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Minimal magic bytes so content verification recognizes the fixtures as
// real media.
var (
	mkvBytes = []byte("\x1A\x45\xDF\xA3\x42\x82\x88matroska")
	mp4Bytes = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2avc1mp41")
	mp3Bytes = []byte("ID3\x03\x00\x00\x00\x00\x00\x00")
)

// testContext holds all the dependencies needed for testing the worker.
type testContext struct {
	t              *testing.T
	ctx            context.Context
	db             *bun.DB
	worker         *Worker
	afs            afero.Fs
	jobService     *jobs.Service
	libraryService *libraries.Service
	itemService    *items.Service
}

// newTestContext creates a new test context with an in-memory SQLite database,
// an in-memory filesystem and a fully wired worker.
func newTestContext(t *testing.T) *testContext {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	afs := afero.NewMemMapFs()
	cfg := &config.Config{
		WorkerProcesses: 1,
	}
	w := New(cfg, db, afs)

	ctx := logger.New().WithContext(context.Background())

	tc := &testContext{
		t:              t,
		ctx:            ctx,
		db:             db,
		worker:         w,
		afs:            afs,
		jobService:     w.jobService,
		libraryService: w.libraryService,
		itemService:    w.itemService,
	}

	t.Cleanup(func() {
		db.Close()
	})

	return tc
}

// createLibrary creates a movie library with the given paths and makes sure
// the directories exist on the test filesystem.
func (tc *testContext) createLibrary(paths []string) *models.Library {
	tc.t.Helper()
	return tc.createLibraryWithType(paths, models.CollectionTypeMovies)
}

// createLibraryWithType creates a library with the given collection type.
func (tc *testContext) createLibraryWithType(paths []string, collectionType string) *models.Library {
	tc.t.Helper()

	libraryPaths := make([]*models.LibraryPath, len(paths))
	for i, p := range paths {
		if err := tc.afs.MkdirAll(p, 0o755); err != nil {
			tc.t.Fatalf("failed to create library path: %v", err)
		}
		libraryPaths[i] = &models.LibraryPath{
			Filepath: p,
		}
	}

	library := &models.Library{
		Name:           "Test Library",
		CollectionType: collectionType,
		LibraryPaths:   libraryPaths,
	}

	err := tc.libraryService.CreateLibrary(tc.ctx, library)
	if err != nil {
		tc.t.Fatalf("failed to create library: %v", err)
	}
	return library
}

// writeFile writes a fixture file, creating parent directories as needed.
func (tc *testContext) writeFile(path string, data []byte) {
	tc.t.Helper()

	if err := tc.afs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tc.t.Fatalf("failed to create directory: %v", err)
	}
	if err := afero.WriteFile(tc.afs, path, data, 0o644); err != nil {
		tc.t.Fatalf("failed to write file: %v", err)
	}
}

// listItems returns all items in the database.
func (tc *testContext) listItems() []*models.Item {
	tc.t.Helper()

	recs, err := tc.itemService.ListItems(tc.ctx, items.ListItemsOptions{})
	if err != nil {
		tc.t.Fatalf("failed to list items: %v", err)
	}
	return recs
}

// itemByPath returns the stored item with the given path, or nil.
func (tc *testContext) itemByPath(path string) *models.Item {
	tc.t.Helper()

	for _, rec := range tc.listItems() {
		if rec.Path == path {
			return rec
		}
	}
	return nil
}

// runScan executes the scan job for all libraries.
func (tc *testContext) runScan() error {
	return tc.worker.ProcessScanJob(tc.ctx, nil)
}
