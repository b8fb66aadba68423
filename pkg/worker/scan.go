package worker

import (
	"context"
	"strings"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/kinoteka/kinoteka/pkg/items"
	"github.com/kinoteka/kinoteka/pkg/libraries"
	"github.com/kinoteka/kinoteka/pkg/media"
	"github.com/kinoteka/kinoteka/pkg/mediafile"
	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/kinoteka/kinoteka/pkg/refresh"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

var (
	errNotFoundPath = errcodes.NotFound("Path")
	errNotFoundItem = errcodes.NotFound("Item")
)

// ProcessScanJob walks every library root, resolves what it finds into typed
// items and refreshes each one. Entries that vanished from disk are removed
// from the catalog afterwards.
func (w *Worker) ProcessScanJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)
	log.Info("processing scan job")

	force := false
	if job != nil {
		if data, ok := job.DataParsed.(*models.JobScanData); ok {
			force = data.Force
		}
	}

	listOpts := libraries.ListLibrariesOptions{}
	allLibraries, err := w.libraryService.ListLibraries(ctx, listOpts)
	if err != nil {
		return errors.WithStack(err)
	}
	if job != nil && job.LibraryID != nil {
		filtered := allLibraries[:0]
		for _, library := range allLibraries {
			if library.ID == *job.LibraryID {
				filtered = append(filtered, library)
			}
		}
		allLibraries = filtered
	}

	log.Info("processing libraries", logger.Data{"count": len(allLibraries)})

	total := 0
	for _, library := range allLibraries {
		total += len(library.LibraryPaths)
	}

	done := 0
	for _, library := range allLibraries {
		log.Info("processing library", logger.Data{"library_id": library.ID})

		for _, libraryPath := range library.LibraryPaths {
			log := log.Data(logger.Data{"library_path_id": libraryPath.ID, "library_path": libraryPath.Filepath})
			log.Info("processing library path")

			err := w.scanLibraryPath(ctx, library, libraryPath, force)
			if err != nil {
				return err
			}

			done++
			w.updateProgress(ctx, job, done, total)
		}
	}

	log.Info("finished scan job")
	return nil
}

func (w *Worker) scanLibraryPath(ctx context.Context, library *models.Library, libraryPath *models.LibraryPath, force bool) error {
	log := logger.FromContext(ctx)

	collectionType := collectionTypeFor(library)
	root, err := media.BuildResolveArgs(ctx, w.fsys, libraryPath.Filepath, media.BuildOptions{
		IsPhysicalRoot: true,
		CollectionType: collectionType,
	})
	if err != nil {
		if errors.Is(err, errNotFoundPath) {
			// A configured root being offline is not fatal; its items are kept
			// until it comes back.
			log.Warn("library path does not exist, skipping")
			return nil
		}
		return err
	}

	container := media.New(media.KindFolder, libraryPath.Filepath)
	container.LibraryID = &library.ID
	container.SetName(library.Name)
	container.SetResolveArgs(root)

	err = w.scanChildren(ctx, container, collectionType, force)
	if err != nil {
		return err
	}

	return w.removeVanished(ctx, libraryPath.Filepath)
}

// scanChildren scans each entry under an already-resolved container.
// Dependent-media conventions (trailer and theme files, their well-known
// folders) are skipped here because the refresh protocol owns those.
func (w *Worker) scanChildren(ctx context.Context, container *media.Item, collectionType string, force bool) error {
	log := logger.FromContext(ctx)

	args := container.CachedResolveArgs()
	if args == nil {
		return nil
	}

	for _, child := range args.Children {
		if child.IsDir {
			if isDependentFolder(child.Name) {
				continue
			}
		} else {
			if mediafile.IsTrailerName(child.Name) || mediafile.IsThemeName(child.Name) {
				continue
			}
			if !mediafile.VerifyMime(w.afs, child.Path) {
				log.Warn("file does not look like media, skipping", logger.Data{"path": child.Path})
				continue
			}
		}

		err := w.scanEntry(ctx, container, child.Path, collectionType, force)
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) scanEntry(ctx context.Context, container *media.Item, path, collectionType string, force bool) error {
	log := logger.FromContext(ctx).Data(logger.Data{"path": path})

	item, err := w.chain.ResolvePath(ctx, path, container, media.BuildOptions{CollectionType: collectionType})
	if err != nil {
		return err
	}
	if item == nil {
		// Inert entry, like loose artwork.
		return nil
	}
	item.LibraryID = container.LibraryID

	// Reuse the stored record when one exists so provider-set metadata
	// survives the rescan; only the snapshot is replaced.
	isNew := true
	rec, err := w.itemService.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &item.ID})
	if err != nil && !errors.Is(err, errNotFoundItem) {
		return err
	}
	if rec != nil {
		stored, err := items.FromModel(rec)
		if err != nil {
			return err
		}
		stored.SetResolveArgs(item.CachedResolveArgs())
		stored.SetParent(container)
		item = stored
		isNew = false

		// Structural containers always recurse; a change two levels down
		// does not move the container's own fingerprint.
		if !force && !shouldRecurse(item.Kind) {
			stamp, err := item.FileSystemStamp(ctx, w.fsys)
			if err != nil {
				return err
			}
			if !stamp.IsZero() && stamp.String() == rec.Stamp {
				log.Info("item unchanged, skipping refresh", logger.Data{"item_id": item.ID})
				return nil
			}
		}
	}

	// Compute the stamp before persisting so change detection works on the
	// next scan.
	_, err = item.FileSystemStamp(ctx, w.fsys)
	if err != nil {
		return err
	}

	_, err = w.orchestrator.Refresh(ctx, item, refresh.Options{
		ForceSave:          isNew,
		ForceRefresh:       force,
		AllowSlowProviders: w.config.AllowSlowProviders,
	})
	if err != nil {
		return err
	}

	if isNew {
		log.Info("item created", logger.Data{"item_id": item.ID, "kind": string(item.Kind)})
	}

	if shouldRecurse(item.Kind) {
		return w.scanChildren(ctx, item, collectionType, force)
	}
	return nil
}

// shouldRecurse reports whether a kind is a structural container whose
// entries are catalog items in their own right. Movie folders do not recurse:
// the files inside belong to the movie itself.
func shouldRecurse(kind media.Kind) bool {
	switch kind {
	case media.KindFolder, media.KindArtist, media.KindAlbum:
		return true
	}
	return false
}

func isDependentFolder(name string) bool {
	switch strings.ToLower(name) {
	case mediafile.FolderTrailers, mediafile.FolderThemeMusic, mediafile.FolderBackdrops:
		return true
	}
	return false
}

// removeVanished drops catalog records under root whose paths no longer exist
// on disk.
func (w *Worker) removeVanished(ctx context.Context, root string) error {
	log := logger.FromContext(ctx)

	recs, err := w.itemService.ListItems(ctx, items.ListItemsOptions{PathPrefix: &root})
	if err != nil {
		return err
	}

	for _, rec := range recs {
		if w.fsys.Exists(rec.Path) {
			continue
		}
		deleted, err := w.itemService.DeleteItemTree(ctx, rec.Path)
		if err != nil {
			return err
		}
		if deleted > 0 {
			log.Info("removed vanished items", logger.Data{"path": rec.Path, "count": deleted})
		}
	}

	return nil
}

func collectionTypeFor(library *models.Library) string {
	switch library.CollectionType {
	case models.CollectionTypeMovies:
		return media.CollectionMovies
	case models.CollectionTypeMusic:
		return media.CollectionMusic
	}
	return ""
}
