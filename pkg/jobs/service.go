// Package jobs persists the background job queue. Jobs are rows in SQLite so
// the queue survives restarts and multiple processes can share it: each
// process claims a job by stamping its process ID before working on it.
package jobs

import (
	"context"
	"time"

	"github.com/kinoteka/kinoteka/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

type ListJobsOptions struct {
	Limit    *int
	Statuses []string

	// ProcessIDToExclude hides jobs already claimed by the given process so a
	// worker never re-fetches its own in-progress work.
	ProcessIDToExclude *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateJob inserts a new job. When DataParsed is set it is serialized into
// the data column so the payload round-trips through the database.
func (svc *Service) CreateJob(ctx context.Context, job *models.Job) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	if job.Data == "" && job.DataParsed != nil {
		data, err := json.Marshal(job.DataParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		job.Data = string(data)
	}

	_, err := svc.db.
		NewInsert().
		Model(job).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// ListJobs returns jobs oldest-first, with their data payloads parsed.
func (svc *Service) ListJobs(ctx context.Context, opts ListJobsOptions) ([]*models.Job, error) {
	jobs := []*models.Job{}

	q := svc.db.
		NewSelect().
		Model(&jobs).
		Order("j.created_at ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("j.status = ?", s)
			}
			return sq
		})
	}
	if opts.ProcessIDToExclude != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("j.process_id IS NULL").
				WhereOr("j.process_id != ?", *opts.ProcessIDToExclude)
		})
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, job := range jobs {
		err := job.UnmarshalData()
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return jobs, nil
}

// HasActiveJobByType reports whether a pending or in-progress job of the
// given type exists. The scheduler uses it to avoid stacking duplicate scans.
func (svc *Service) HasActiveJobByType(ctx context.Context, jobType string) (bool, error) {
	count, err := svc.db.NewSelect().
		Model((*models.Job)(nil)).
		Where("type = ?", jobType).
		WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("status = ?", models.JobStatusPending).
				WhereOr("status = ?", models.JobStatusInProgress)
		}).
		Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count > 0, nil
}

// ClaimJob marks the job as in progress under the given process ID.
func (svc *Service) ClaimJob(ctx context.Context, job *models.Job, processID string) error {
	job.Status = models.JobStatusInProgress
	job.ProcessID = &processID
	return svc.updateColumns(ctx, job, "status", "process_id")
}

// FinishJob records the job's terminal status so it is not picked up again.
func (svc *Service) FinishJob(ctx context.Context, job *models.Job, status string) error {
	job.Status = status
	return svc.updateColumns(ctx, job, "status")
}

// RecordProgress persists the job's completion percentage.
func (svc *Service) RecordProgress(ctx context.Context, job *models.Job, progress int) error {
	job.Progress = progress
	return svc.updateColumns(ctx, job, "progress")
}

func (svc *Service) updateColumns(ctx context.Context, job *models.Job, columns ...string) error {
	job.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(job).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}
