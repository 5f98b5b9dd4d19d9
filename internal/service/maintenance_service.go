package service

import (
	"context"
	"time"

	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/filecache"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// MaintenanceSchedule runs housekeeping at the top of every hour.
const MaintenanceSchedule = "0 * * * *"

// MaintenanceReport counts what one housekeeping run removed
type MaintenanceReport struct {
	Sessions   int `json:"sessions"`
	CacheFiles int `json:"cache_files"`
	Exports    int `json:"exports"`
}

type maintenanceService struct {
	sessions  session.Store
	cache     *filecache.Cache
	jobs      JobService
	cacheAge  time.Duration
	retention time.Duration
	cron      *cron.Cron
	log       zerolog.Logger
}

func newMaintenanceService(sessions session.Store, cache *filecache.Cache, jobs JobService, cfg *config.Config, log zerolog.Logger) *maintenanceService {
	l := log.With().Str("service", "maintenance").Logger()
	return &maintenanceService{
		sessions:  sessions,
		cache:     cache,
		jobs:      jobs,
		cacheAge:  cfg.Cache.MaxAge,
		retention: cfg.Export.Retention,
		cron:      cron.New(cron.WithLogger(cron.PrintfLogger(&l))),
		log:       l,
	}
}

// Start schedules housekeeping in the background.
func (s *maintenanceService) Start() error {
	_, err := s.cron.AddFunc(MaintenanceSchedule, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", MaintenanceSchedule).Msg("Maintenance scheduled")
	return nil
}

// Stop halts the scheduler; the returned context is done when a running
// job has finished.
func (s *maintenanceService) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce removes expired sessions, stale cache files and old export files.
// Failures are logged and do not stop the other steps.
func (s *maintenanceService) RunOnce(ctx context.Context) MaintenanceReport {
	var report MaintenanceReport
	var err error

	if s.sessions != nil {
		if report.Sessions, err = s.sessions.DeleteExpired(ctx); err != nil {
			s.log.Error().Err(err).Msg("Session purge failed")
		}
	}
	if s.cache != nil && s.cacheAge > 0 {
		if report.CacheFiles, err = s.cache.Purge(s.cacheAge); err != nil {
			s.log.Error().Err(err).Msg("Cache purge failed")
		}
	}
	if s.jobs != nil && s.retention > 0 {
		if report.Exports, err = s.jobs.PurgeFinished(ctx, time.Now().Add(-s.retention)); err != nil {
			s.log.Error().Err(err).Msg("Export purge failed")
		}
	}

	s.log.Info().
		Int("sessions", report.Sessions).
		Int("cache_files", report.CacheFiles).
		Int("exports", report.Exports).
		Msg("Maintenance run completed")
	return report
}

// ClearCache empties the render cache.
func (s *maintenanceService) ClearCache() (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.Clear()
	if err != nil {
		return n, err
	}
	s.log.Info().Int("files", n).Msg("Cache cleared")
	return n, nil
}
