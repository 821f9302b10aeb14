package gtfs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SchedulerConfig holds configuration for the sync scheduler.
type SchedulerConfig struct {
	// Loader performs the actual sync.
	Loader *Loader

	// Repository is queried for the latest committed feed.
	Repository Repository

	// StalenessThreshold is the maximum feed age before a refresh
	// (default: 30 days).
	StalenessThreshold time.Duration

	// CheckInterval is how often staleness is re-evaluated
	// (default: the staleness threshold).
	CheckInterval time.Duration

	// Logger for scheduler operations.
	Logger zerolog.Logger
}

// Scheduler refreshes the transit dataset when it goes stale. It runs on its
// own goroutine and never blocks request traffic.
type Scheduler struct {
	loader    *Loader
	repo      Repository
	staleness time.Duration
	interval  time.Duration
	logger    zerolog.Logger

	// syncing is the re-entrancy guard: at most one sync at a time, even
	// when a periodic check races a manual trigger.
	syncing atomic.Bool
}

// NewScheduler creates a sync scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	staleness := cfg.StalenessThreshold
	if staleness == 0 {
		staleness = 30 * 24 * time.Hour
	}
	interval := cfg.CheckInterval
	if interval == 0 {
		interval = staleness
	}

	return &Scheduler{
		loader:    cfg.Loader,
		repo:      cfg.Repository,
		staleness: staleness,
		interval:  interval,
		logger:    cfg.Logger,
	}
}

// Run performs the initial staleness check and then repeats it on the
// configured interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().
		Dur("staleness_threshold", s.staleness).
		Dur("check_interval", s.interval).
		Msg("feed sync scheduler started")

	if _, err := s.CheckAndSync(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial feed sync failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("feed sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.CheckAndSync(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduled feed sync failed")
			}
		}
	}
}

// CheckAndSync triggers one sync when no feed exists or the latest feed's
// age exceeds the staleness threshold. Returns whether a sync ran.
func (s *Scheduler) CheckAndSync(ctx context.Context) (bool, error) {
	feed, err := s.repo.LatestFeed(ctx)
	switch {
	case errors.Is(err, ErrNoFeed):
		s.logger.Info().Msg("no transit feed present, starting initial sync")
	case err != nil:
		return false, err
	default:
		age := time.Since(feed.DownloadedAt)
		if age <= s.staleness {
			s.logger.Info().
				Time("downloaded_at", feed.DownloadedAt).
				Dur("age", age).
				Msg("transit dataset is current")
			return false, nil
		}
		s.logger.Info().
			Time("downloaded_at", feed.DownloadedAt).
			Dur("age", age).
			Msg("transit dataset is stale, starting sync")
	}

	_, err = s.TriggerSync(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		// Another sync beat this check; nothing to do.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TriggerSync runs one sync now, for manual invocations. Returns
// ErrSyncInProgress when another sync already holds the guard.
func (s *Scheduler) TriggerSync(ctx context.Context) (*Summary, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	return s.loader.Sync(ctx)
}

// Syncing reports whether a sync is currently running.
func (s *Scheduler) Syncing() bool {
	return s.syncing.Load()
}
