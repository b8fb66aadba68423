package worker

import (
	"context"

	"github.com/kinoteka/kinoteka/pkg/items"
	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/kinoteka/kinoteka/pkg/provider"
	"github.com/robinjoseph08/golib/logger"
)

// ProcessSidecarExportJob writes every stored item's descriptive metadata out
// as sidecar files, so the catalog can be rebuilt from disk alone.
func (w *Worker) ProcessSidecarExportJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)
	log.Info("processing sidecar export job")

	listOpts := items.ListItemsOptions{LibraryID: job.LibraryID}
	recs, err := w.itemService.ListItems(ctx, listOpts)
	if err != nil {
		return err
	}

	for n, rec := range recs {
		item, err := items.FromModel(rec)
		if err != nil {
			return err
		}
		err = provider.WriteSidecar(w.afs, item)
		if err != nil {
			return err
		}
		w.updateProgress(ctx, job, n+1, len(recs))
	}

	log.Info("finished sidecar export job", logger.Data{"count": len(recs)})
	return nil
}
