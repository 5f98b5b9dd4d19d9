package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"gorm.io/gorm"
)

// jobRepo is the concrete implementation of JobRepository
type jobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) JobRepository {
	return &jobRepo{db: db}
}

// Create inserts a new job
func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	return conn(ctx, r.db).Create(job).Error
}

// Update updates job status and counters
func (r *jobRepo) Update(ctx context.Context, job *models.Job) error {
	return conn(ctx, r.db).Model(job).Select(
		"status", "total_records", "duration_ms", "rows_per_sec",
		"file_path", "download_url", "error", "started_at", "completed_at",
	).Updates(job).Error
}

// GetByID retrieves a job by ID, nil when it does not exist
func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByIdempotencyKey retrieves a job by idempotency key, nil when none exists
func (r *jobRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	return r.first(ctx, "idempotency_key = ?", key)
}

func (r *jobRepo) first(ctx context.Context, query string, arg any) (*models.Job, error) {
	var job models.Job
	err := conn(ctx, r.db).Where(query, arg).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetPendingJobs retrieves all pending jobs, oldest first
func (r *jobRepo) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	err := conn(ctx, r.db).
		Where("status = ?", models.JobStatusPending).
		Order("created_at").
		Find(&jobs).Error
	return jobs, err
}

// MarkJobAsProcessing atomically marks a pending job as processing. It
// returns false when another worker claimed the job first.
func (r *jobRepo) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Updates(map[string]any{
			"status":     models.JobStatusProcessing,
			"started_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FinishedBefore returns terminal jobs completed before the cutoff
func (r *jobRepo) FinishedBefore(ctx context.Context, before time.Time) ([]*models.Job, error) {
	var jobs []*models.Job
	err := conn(ctx, r.db).
		Where("status IN ?", []models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled}).
		Where("completed_at < ?", before).
		Find(&jobs).Error
	return jobs, err
}

// Delete removes a job row
func (r *jobRepo) Delete(ctx context.Context, id string) error {
	return conn(ctx, r.db).Delete(&models.Job{}, "id = ?", id).Error
}
