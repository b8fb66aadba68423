package worker

import (
	"context"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/kinoteka/kinoteka/pkg/refresh"
	"github.com/robinjoseph08/golib/logger"
)

// ProcessRefreshJob re-runs the refresh protocol on a single stored item,
// dropping its cached snapshot first so the file system is re-read.
func (w *Worker) ProcessRefreshJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)

	data, ok := job.DataParsed.(*models.JobRefreshData)
	if !ok {
		return errcodes.Invariant("refresh job is missing its data")
	}
	log.Info("processing refresh job", logger.Data{"item_id": data.ItemID})

	item, err := w.itemService.FindByID(ctx, data.ItemID)
	if err != nil {
		return err
	}
	if item == nil {
		return errcodes.NotFound("Item")
	}

	changed, err := w.orchestrator.Refresh(ctx, item, refresh.Options{
		ForceRefresh:       data.ForceRefresh,
		AllowSlowProviders: data.AllowSlowProviders || w.config.AllowSlowProviders,
		ResetCache:         true,
	})
	if err != nil {
		return err
	}

	log.Info("finished refresh job", logger.Data{"changed": changed})
	return nil
}
