package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"terrarium_jobs/internal/config"
	"terrarium_jobs/internal/domain"
)

type SyncService struct {
	sources     SourceFactory
	jobs        JobStore
	companies   CompanyStore
	communities CommunityStore
	txManager   TransactionManager
	publisher   Publisher
	locker      Locker
	logger      *slog.Logger
	config      config.SyncConfig
	now         func() time.Time
}

func NewSyncService(
	sources SourceFactory,
	jobs JobStore,
	companies CompanyStore,
	communities CommunityStore,
	txManager TransactionManager,
	publisher Publisher,
	locker Locker,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		sources:     sources,
		jobs:        jobs,
		companies:   companies,
		communities: communities,
		txManager:   txManager,
		publisher:   publisher,
		locker:      locker,
		logger:      logger,
		config:      cfg,
		now:         time.Now,
	}
}

// SyncJobs reconciles the community's local jobs with every page of its
// remote source. Records that fail individually are reported in
// SyncStats.Errors; anything else aborts the run with a
// *domain.SyncFailedError. Upserts from earlier pages are not rolled back.
func (s *SyncService) SyncJobs(ctx context.Context, communityID string) (*domain.SyncStats, error) {
	release, err := s.locker.Acquire(ctx, lockKey(communityID))
	if err != nil {
		return nil, &domain.SyncFailedError{CommunityID: communityID, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	defer release()

	community, source, err := s.resolve(ctx, communityID)
	if err != nil {
		return nil, &domain.SyncFailedError{CommunityID: communityID, Err: err}
	}
	if !community.RecruitCRM.Enabled {
		return nil, &domain.SyncFailedError{CommunityID: communityID, Err: domain.ErrIntegrationOff}
	}

	stats := &domain.SyncStats{
		RunID:       uuid.NewString(),
		CommunityID: communityID,
		Source:      source.ID(),
		Errors:      []domain.RecordError{},
	}
	logger := s.logger.With(
		"community_id", communityID,
		"run_id", stats.RunID,
		"source", source.ID(),
	)

	startTime := s.now()
	logger.Info("starting sync",
		"source_name", source.Name(),
		"page_size", s.config.PageSize,
		"max_pages", s.config.MaxPages,
	)

	err = s.run(ctx, logger, community, source, stats)
	stats.Duration = s.now().Sub(startTime)
	if err != nil {
		logger.Error("sync failed",
			"error", err,
			"pages", stats.Pages,
			"added", stats.Added,
			"updated", stats.Updated,
			"record_errors", len(stats.Errors),
		)
		return nil, &domain.SyncFailedError{CommunityID: communityID, Err: err}
	}

	logger.Info("sync completed",
		"pages", stats.Pages,
		"fetched", stats.Fetched,
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"filtered", stats.Filtered,
		"errors", len(stats.Errors),
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *SyncService) run(
	ctx context.Context,
	logger *slog.Logger,
	community *domain.Community,
	source JobSource,
	stats *domain.SyncStats,
) error {
	existingIDs, err := s.jobs.ListExternalIDs(ctx, community.ID, source.ID())
	if err != nil {
		return fmt.Errorf("list existing jobs: %w", err)
	}
	existing := make(map[string]struct{}, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = struct{}{}
	}

	// seen drives the sweep; upserted drives added-vs-updated so that a
	// record repeated across pages is only ever counted as added once.
	seen := make(map[string]struct{})
	upserted := make(map[string]struct{})
	filter := community.RecruitCRM.Filters

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before page %d: %w", page, err)
		}
		if s.config.MaxPages > 0 && page > s.config.MaxPages {
			return fmt.Errorf("%w (%d)", domain.ErrTooManyPages, s.config.MaxPages)
		}

		result, err := source.FetchPage(ctx, page, s.config.PageSize)
		if err != nil {
			return err
		}
		stats.Pages++

		if len(result.Jobs) == 0 {
			break
		}
		stats.Fetched += len(result.Jobs)

		for i := range result.Jobs {
			remote := &result.Jobs[i]
			if !Matches(filter, remote) {
				stats.Filtered++
				continue
			}

			externalID := ExternalID(source.ID(), remote.ID)
			seen[externalID] = struct{}{}

			job, err := s.saveJob(ctx, community.ID, source.ID(), remote)
			if err != nil {
				recErr := &domain.RecordSyncError{RecordID: remote.ID, ExternalID: externalID, Err: err}
				logger.Warn("failed to sync job", "external_id", externalID, "error", recErr)
				stats.Errors = append(stats.Errors, recErr.Record())
				continue
			}

			_, wasExisting := existing[externalID]
			_, wasUpserted := upserted[externalID]
			upserted[externalID] = struct{}{}

			action := domain.EventUpdate
			if !wasExisting && !wasUpserted {
				action = domain.EventCreate
				stats.Added++
			} else {
				stats.Updated++
			}

			s.publish(ctx, logger, stats, &domain.JobEvent{
				Action:      action,
				RunID:       stats.RunID,
				CommunityID: community.ID,
				ExternalID:  externalID,
				Job:         job,
			})
		}

		logger.Debug("processed page",
			"page", page,
			"last_page", result.TotalPages,
			"jobs", len(result.Jobs),
		)

		if page >= result.TotalPages {
			break
		}
	}

	removed, err := s.jobs.DeleteUnseen(ctx, community.ID, source.ID(), slices.Sorted(maps.Keys(seen)))
	if err != nil {
		return fmt.Errorf("remove stale jobs: %w", err)
	}
	stats.Removed = len(removed)

	for _, externalID := range removed {
		s.publish(ctx, logger, stats, &domain.JobEvent{
			Action:      domain.EventDelete,
			RunID:       stats.RunID,
			CommunityID: community.ID,
			ExternalID:  externalID,
		})
	}

	if err := s.communities.MarkSynced(ctx, community.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("mark community synced: %w", err)
	}

	return nil
}

func (s *SyncService) saveJob(ctx context.Context, communityID, sourceID string, remote *domain.RemoteJob) (*domain.Job, error) {
	job, err := MapJob(communityID, sourceID, remote)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		companyID, err := s.companies.GetOrCreate(txCtx, MapCompany(sourceID, remote.Company))
		if err != nil {
			return fmt.Errorf("resolve company: %w", err)
		}
		job.CompanyID = &companyID

		id, err := s.jobs.Upsert(txCtx, job)
		if err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}
		job.ID = id

		return nil
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (s *SyncService) publish(ctx context.Context, logger *slog.Logger, stats *domain.SyncStats, event *domain.JobEvent) {
	if s.publisher == nil {
		return
	}

	event.Timestamp = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish job event",
			"action", event.Action,
			"external_id", event.ExternalID,
			"error", err,
		)
		return
	}
	stats.Published++
}

func (s *SyncService) resolve(ctx context.Context, communityID string) (*domain.Community, JobSource, error) {
	community, err := s.communities.Get(ctx, communityID)
	if err != nil {
		return nil, nil, fmt.Errorf("load community: %w", err)
	}

	source, err := s.sources.ForCommunity(community)
	if err != nil {
		return nil, nil, fmt.Errorf("build job source: %w", err)
	}

	return community, source, nil
}

// TestConnection checks the community's credential against the source.
func (s *SyncService) TestConnection(ctx context.Context, communityID string) error {
	_, source, err := s.resolve(ctx, communityID)
	if err != nil {
		return err
	}
	return source.TestConnection(ctx)
}

func (s *SyncService) ListJobTypes(ctx context.Context, communityID string) ([]domain.JobType, error) {
	_, source, err := s.resolve(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return source.ListJobTypes(ctx)
}

func (s *SyncService) ListLocations(ctx context.Context, communityID string) ([]domain.Location, error) {
	_, source, err := s.resolve(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return source.ListLocations(ctx)
}

// IsRetryable reports whether a failed run is worth re-running before the
// next scheduled tick.
func IsRetryable(err error) bool {
	var timeoutErr *domain.TimeoutError
	var remoteErr *domain.RemoteServiceError
	switch {
	case errors.As(err, &timeoutErr):
		return true
	case errors.As(err, &remoteErr):
		return remoteErr.Temporary()
	default:
		return false
	}
}

func lockKey(communityID string) string {
	return "jobsync:" + communityID
}
