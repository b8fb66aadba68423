package worker

import (
	"context"
	"time"

	"github.com/kinoteka/kinoteka/pkg/libraries"
	"github.com/kinoteka/kinoteka/pkg/models"
)

// scheduleJobs periodically enqueues a scan job for the whole catalog. A scan
// is only scheduled when at least one library exists and no other scan job is
// already pending or in progress, so a slow scan never piles up behind itself.
func (w *Worker) scheduleJobs() {
	if w.config.ScanIntervalMinutes <= 0 {
		// Scheduling is disabled; scans can still be enqueued manually.
		<-w.shutdown
		w.doneScheduling <- struct{}{}
		return
	}

	duration := time.Duration(w.config.ScanIntervalMinutes) * time.Minute
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			w.doneScheduling <- struct{}{}
			return
		case <-timer.C:
			w.scheduleScan(context.Background())
			timer.Reset(duration)
		}
	}
}

func (w *Worker) scheduleScan(ctx context.Context) {
	libs, err := w.libraryService.ListLibraries(ctx, libraries.ListLibrariesOptions{})
	if err != nil {
		w.log.Err(err).Error("list libraries error")
		return
	}
	if len(libs) == 0 {
		w.log.Info("no libraries configured, skipping scheduled scan")
		return
	}

	hasActive, err := w.jobService.HasActiveJobByType(ctx, models.JobTypeScan)
	if err != nil {
		w.log.Err(err).Error("check active scan job error")
		return
	}
	if hasActive {
		w.log.Info("scan job already active, skipping scheduled scan")
		return
	}

	job := &models.Job{
		Type:       models.JobTypeScan,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobScanData{},
	}
	err = w.jobService.CreateJob(ctx, job)
	if err != nil {
		w.log.Err(err).Error("create scan job error")
		return
	}
	w.log.Info("scheduled scan job")
}
