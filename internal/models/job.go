package models

import (
	"time"
)

// JobStatus represents the status of an export job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Export formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
)

// Exportable resources
const (
	ResourcePeople   = "people"
	ResourceArticles = "articles"
	ResourceComments = "comments"
)

// Job represents an asynchronous export job
type Job struct {
	ID             string     `json:"job_id" gorm:"primaryKey;type:varchar(36)"`
	Resource       string     `json:"resource" gorm:"type:varchar(32);not null"`
	Format         string     `json:"format" gorm:"type:varchar(16);not null"`
	Status         JobStatus  `json:"status" gorm:"type:varchar(16);index;not null"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" gorm:"type:varchar(255);index"`
	RequestedBy    string     `json:"requested_by,omitempty" gorm:"type:varchar(36)"`
	TotalRecords   int        `json:"total_records"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
	RowsPerSec     float64    `json:"rows_per_sec,omitempty"`
	FilePath       string     `json:"-" gorm:"type:varchar(500)"`
	DownloadURL    string     `json:"download_url,omitempty" gorm:"type:varchar(500)"`
	Error          string     `json:"error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (Job) TableName() string { return "jobs" }

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// ExportRequest represents an export job request
type ExportRequest struct {
	Resource       string `json:"resource" form:"resource"` // people, articles, comments
	Format         string `json:"format" form:"format"`     // ndjson, json, csv, xlsx
	IdempotencyKey string `json:"-"`                        // From header
	RequestedBy    string `json:"-"`
}

// ValidResources lists the exportable resources
var ValidResources = map[string]bool{
	ResourcePeople:   true,
	ResourceArticles: true,
	ResourceComments: true,
}

// ValidFormats lists the supported export formats
var ValidFormats = map[string]bool{
	FormatNDJSON: true,
	FormatJSON:   true,
	FormatCSV:    true,
	FormatXLSX:   true,
}
