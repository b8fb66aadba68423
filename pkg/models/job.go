package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobTypeScan          = "scan"
	JobTypeRefresh       = "refresh"
	JobTypeSidecarExport = "sidecar_export"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
	LibraryID  *int        `json:"library_id,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeScan:
		job.DataParsed = &JobScanData{}
	case JobTypeRefresh:
		job.DataParsed = &JobRefreshData{}
	case JobTypeSidecarExport:
		job.DataParsed = &JobSidecarExportData{}
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

type JobScanData struct {
	Force bool `json:"force"`
}

type JobRefreshData struct {
	ItemID             uuid.UUID `json:"item_id"`
	ForceRefresh       bool      `json:"force_refresh"`
	AllowSlowProviders bool      `json:"allow_slow_providers"`
}

type JobSidecarExportData struct{}
