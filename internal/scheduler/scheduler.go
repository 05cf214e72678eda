// Package scheduler runs each sync-enabled community on its own interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"terrarium_jobs/internal/config"
	"terrarium_jobs/internal/domain"
	"terrarium_jobs/internal/service"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	SyncJobs(ctx context.Context, communityID string) (*domain.SyncStats, error)
}

type CommunityLister interface {
	ListSyncEnabled(ctx context.Context) ([]domain.Community, error)
}

type entry struct {
	id       cron.EntryID
	interval time.Duration
}

type Scheduler struct {
	syncer          Syncer
	communities     CommunityLister
	runTimeout      time.Duration
	refreshInterval time.Duration
	logger          *slog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]entry
	wg      sync.WaitGroup
}

const (
	defaultRunTimeout      = 10 * time.Minute
	defaultRefreshInterval = 5 * time.Minute
)

func NewScheduler(syncer Syncer, communities CommunityLister, cfg config.SyncConfig, logger *slog.Logger) *Scheduler {
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	refreshInterval := cfg.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}

	cl := cronLogger{logger: logger}
	return &Scheduler{
		syncer:          syncer,
		communities:     communities,
		runTimeout:      runTimeout,
		refreshInterval: refreshInterval,
		logger:          logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		entries: make(map[string]entry),
	}
}

// Start schedules every enabled community, runs each once immediately and
// keeps the schedule in step with the community list until ctx is done.
// It waits for in-flight runs before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return fmt.Errorf("load communities: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"communities", len(s.Entries()),
		"refresh_interval", s.refreshInterval,
	)

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger.Error("failed to refresh communities", "error", err)
			}
		}
	}
}

// Entries reports the scheduled interval per community.
func (s *Scheduler) Entries() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Duration, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.interval
	}
	return out
}

func (s *Scheduler) refresh(ctx context.Context) error {
	communities, err := s.communities.ListSyncEnabled(ctx)
	if err != nil {
		return err
	}

	wanted := make(map[string]time.Duration, len(communities))
	for _, c := range communities {
		wanted[c.ID] = c.RecruitCRM.Interval()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(s.entries))
	for id := range s.entries {
		known[id] = true
	}

	for id, e := range s.entries {
		if interval, ok := wanted[id]; !ok || interval != e.interval {
			s.cron.Remove(e.id)
			delete(s.entries, id)
			if !ok {
				s.logger.Info("unscheduled community", "community_id", id)
			}
		}
	}

	for id, interval := range wanted {
		if _, ok := s.entries[id]; ok {
			continue
		}

		communityID := id
		entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
			s.run(ctx, communityID)
		})
		if err != nil {
			s.logger.Error("failed to schedule community", "community_id", id, "error", err)
			continue
		}

		s.entries[id] = entry{id: entryID, interval: interval}
		s.logger.Info("scheduled community", "community_id", id, "interval", interval)

		if !known[id] {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.run(ctx, communityID)
			}()
		}
	}

	return nil
}

func (s *Scheduler) run(ctx context.Context, communityID string) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	stats, err := s.syncer.SyncJobs(runCtx, communityID)
	if err != nil {
		s.logger.Error("scheduled sync failed",
			"community_id", communityID,
			"retryable", service.IsRetryable(err),
			"error", err,
		)
		return
	}

	s.logger.Info("scheduled sync finished",
		"community_id", communityID,
		"run_id", stats.RunID,
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"errors", len(stats.Errors),
	)
}

// cronLogger routes robfig/cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
