package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const pollInterval = 2 * time.Second

// jobService is the concrete implementation of JobService
type jobService struct {
	jobRepo repository.JobRepository
	export  ExportService
	dir     string
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
	// Semaphore: buffered channel to limit concurrent job processing
	sem chan struct{}
}

// newJobService creates a new JobService with worker pool sized for I/O-bound work
func newJobService(jobRepo repository.JobRepository, export ExportService, cfg config.ExportConfig, log zerolog.Logger) *jobService {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		// Exports mostly wait on the database and the disk
		maxWorkers = runtime.NumCPU() * 4
		if maxWorkers < 4 {
			maxWorkers = 4
		}
		if maxWorkers > 32 {
			maxWorkers = 32
		}
	}

	log.Info().Int("max_workers", maxWorkers).Msg("Initializing export job worker pool")

	return &jobService{
		jobRepo: jobRepo,
		export:  export,
		dir:     cfg.Dir,
		log:     log.With().Str("service", "job").Logger(),
		ctx:     context.Background(),
		sem:     make(chan struct{}, maxWorkers),
	}
}

// CreateExportJob queues an export. A request repeating an idempotency key
// returns the job created for it, with existing set to true.
func (s *jobService) CreateExportJob(ctx context.Context, req *models.ExportRequest) (*models.Job, bool, error) {
	if err := validateExport(req.Resource, req.Format); err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.jobRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	job := &models.Job{
		ID:             uuid.NewString(),
		Resource:       req.Resource,
		Format:         req.Format,
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		RequestedBy:    req.RequestedBy,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, false, fmt.Errorf("create export job: %w", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("resource", job.Resource).
		Str("format", job.Format).
		Msg("Export job queued")
	return job, false, nil
}

// StartProcessor starts the background job processor
func (s *jobService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	procCtx := s.ctx
	s.mu.Unlock()

	s.log.Info().Msg("Job processor started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-procCtx.Done():
			s.log.Info().Msg("Job processor stopping")
			return
		case <-ticker.C:
			s.processPendingJobs(procCtx)
		}
	}
}

// StopProcessor stops the background job processor
func (s *jobService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Job processor stopped")
}

// RunPending processes the currently pending jobs and waits for them.
func (s *jobService) RunPending(ctx context.Context) {
	s.processPendingJobs(ctx)
	s.wg.Wait()
}

// processPendingJobs processes all pending jobs
func (s *jobService) processPendingJobs(ctx context.Context) {
	jobs, err := s.jobRepo.GetPendingJobs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending jobs")
		return
	}

	for _, job := range jobs {
		// Acquire semaphore slot - blocks if all workers are busy (backpressure)
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		// Mark as processing atomically
		marked, err := s.jobRepo.MarkJobAsProcessing(ctx, job.ID)
		if err != nil || !marked {
			<-s.sem  // Release slot since we're not processing this job
			continue // Another worker already picked it up
		}

		s.wg.Add(1)
		go func(j *models.Job) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			// Panic recovery - prevents runtime panics from crashing the entire process
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("job_id", j.ID).
						Msg("Job processing panicked - recovered")
					s.fail(context.WithoutCancel(ctx), j, fmt.Errorf("panic: %v", r))
				}
			}()
			s.processJob(ctx, j)
		}(job)
	}
}

// processJob writes one export to <dir>/<job id>.<format>
func (s *jobService) processJob(ctx context.Context, job *models.Job) {
	select {
	case <-ctx.Done():
		s.log.Warn().Str("job_id", job.ID).Msg("Job processing cancelled due to shutdown")
		s.requeue(context.WithoutCancel(ctx), job)
		return
	default:
	}

	s.log.Info().Str("job_id", job.ID).Str("resource", job.Resource).Msg("Processing export job")

	start := time.Now()
	started := start.UTC()
	job.StartedAt = &started
	job.Status = models.JobStatusProcessing

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.fail(ctx, job, err)
		return
	}
	path := filepath.Join(s.dir, job.ID+"."+job.Format)
	f, err := os.Create(path)
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	count, err := s.export.Stream(ctx, f, job.Resource, job.Format)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		s.fail(ctx, job, err)
		return
	}

	elapsed := time.Since(start)
	completed := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.TotalRecords = count
	job.DurationMs = elapsed.Milliseconds()
	if secs := elapsed.Seconds(); secs > 0 {
		job.RowsPerSec = float64(count) / secs
	}
	job.FilePath = path
	job.DownloadURL = "/v1/exports/" + job.ID + "/download"
	job.CompletedAt = &completed

	if err := s.jobRepo.Update(context.WithoutCancel(ctx), job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job completion")
		return
	}

	s.log.Info().
		Str("job_id", job.ID).
		Int("total_records", count).
		Int64("duration_ms", job.DurationMs).
		Float64("rows_per_sec", job.RowsPerSec).
		Msg("Export job completed")
}

// requeue hands a claimed but unstarted job back to the queue.
func (s *jobService) requeue(ctx context.Context, job *models.Job) {
	job.Status = models.JobStatusPending
	job.StartedAt = nil
	if err := s.jobRepo.Update(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to requeue job")
	}
}

func (s *jobService) fail(ctx context.Context, job *models.Job, cause error) {
	completed := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()
	job.CompletedAt = &completed
	if err := s.jobRepo.Update(context.WithoutCancel(ctx), job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job failure")
	}
	s.log.Error().Err(cause).Str("job_id", job.ID).Msg("Export job failed")
}

// GetJob retrieves a job by ID
func (s *jobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", id, apperr.ErrResourceNotFound)
	}
	return job, nil
}

// GetJobByIdempotencyKey retrieves a job by idempotency key
func (s *jobService) GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	return s.jobRepo.GetByIdempotencyKey(ctx, key)
}

// OpenDownload opens the file of a completed job. The caller closes it.
func (s *jobService) OpenDownload(ctx context.Context, id string) (*models.Job, *os.File, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return job, nil, fmt.Errorf("job %s is %s: %w", id, job.Status, apperr.ErrIllegalArgument)
	}
	f, err := os.Open(job.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return job, nil, fmt.Errorf("job %s file: %w", id, apperr.ErrResourceNotFound)
	}
	if err != nil {
		return job, nil, err
	}
	return job, f, nil
}

// PurgeFinished deletes finished jobs completed before the cutoff, with their files.
func (s *jobService) PurgeFinished(ctx context.Context, before time.Time) (int, error) {
	jobs, err := s.jobRepo.FinishedBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, job := range jobs {
		if job.FilePath != "" {
			if err := os.Remove(job.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to remove export file")
				continue
			}
		}
		if err := s.jobRepo.Delete(ctx, job.ID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
