// Package worker runs the background job queue: periodic library scans,
// targeted metadata refreshes and sidecar exports. Jobs are claimed from the
// database so multiple processes can share a queue without double-processing.
package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kinoteka/kinoteka/pkg/config"
	"github.com/kinoteka/kinoteka/pkg/filesystem"
	"github.com/kinoteka/kinoteka/pkg/items"
	"github.com/kinoteka/kinoteka/pkg/jobs"
	"github.com/kinoteka/kinoteka/pkg/libraries"
	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/kinoteka/kinoteka/pkg/provider"
	"github.com/kinoteka/kinoteka/pkg/refresh"
	"github.com/kinoteka/kinoteka/pkg/resolver"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/spf13/afero"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

type Worker struct {
	config *config.Config
	log    logger.Logger
	afs    afero.Fs
	fsys   filesystem.FS

	processFuncs map[string]func(ctx context.Context, job *models.Job) error

	jobService     *jobs.Service
	libraryService *libraries.Service
	itemService    *items.Service
	chain          *resolver.Chain
	orchestrator   *refresh.Orchestrator

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
	doneScheduling chan struct{}
}

func New(cfg *config.Config, db *bun.DB, afs afero.Fs) *Worker {
	fsys := filesystem.NewService(afs)
	jobService := jobs.NewService(db)
	libraryService := libraries.NewService(db)
	itemService := items.NewService(db)
	chain := resolver.NewChain(fsys)
	providers := provider.NewSet(provider.NewSidecarSource(afs))
	orchestrator := refresh.New(fsys, itemService, providers, chain)

	w := &Worker{
		config: cfg,
		log:    logger.New(),
		afs:    afs,
		fsys:   fsys,

		jobService:     jobService,
		libraryService: libraryService,
		itemService:    itemService,
		chain:          chain,
		orchestrator:   orchestrator,

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
		doneScheduling: make(chan struct{}),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *models.Job) error{
		models.JobTypeScan:          w.ProcessScanJob,
		models.JobTypeRefresh:       w.ProcessRefreshJob,
		models.JobTypeSidecarExport: w.ProcessSidecarExportJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	go w.scheduleJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := 5 * time.Second
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(duration)
				continue
			}
			for _, job := range j {
				w.queue <- job
			}
			timer.Reset(duration)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			// Prep the context to be passed down to the process function.
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
			ctx := log.WithContext(context.Background())

			// Claim the job for this process before working on it.
			err = w.jobService.ClaimJob(ctx, job, processID)
			if err != nil {
				log.Err(err).Error("claim job error")
				continue
			}

			// Find and invoke the appropriate process function.
			fn, ok := w.processFuncs[job.Type]
			if !ok {
				log.Error("can't find process function for type")
				w.finishJob(ctx, job, models.JobStatusFailed)
				continue
			}
			status := models.JobStatusCompleted
			err = fn(ctx, job)
			if err != nil {
				log.Err(err).Error("process error")
				status = models.JobStatusFailed
			}

			// Update the job's final status so that it's not picked up
			// anymore.
			w.finishJob(ctx, job, status)
		}
	}
}

func (w *Worker) finishJob(ctx context.Context, job *models.Job, status string) {
	log := logger.FromContext(ctx)

	err := w.jobService.FinishJob(ctx, job, status)
	if err != nil {
		log.Err(err).Error("finish job error")
	}
}

func (w *Worker) updateProgress(ctx context.Context, job *models.Job, done, total int) {
	if job == nil || total == 0 {
		return
	}
	log := logger.FromContext(ctx)

	err := w.jobService.RecordProgress(ctx, job, done*100/total)
	if err != nil {
		log.Err(err).Error("record job progress error")
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	<-w.doneScheduling
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
