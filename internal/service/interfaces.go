package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"terrarium_jobs/internal/domain"
)

// JobSource is a paginated remote job listing. The live RecruitCRM client
// and the fixture source both implement it.
type JobSource interface {
	ID() string
	Name() string
	FetchPage(ctx context.Context, page, perPage int) (*domain.Page, error)
	ListJobTypes(ctx context.Context) ([]domain.JobType, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	TestConnection(ctx context.Context) error
}

// SourceFactory builds the JobSource for one community's credential.
type SourceFactory interface {
	ForCommunity(community *domain.Community) (JobSource, error)
}

type JobStore interface {
	Upsert(ctx context.Context, job *domain.Job) (int64, error)
	ListExternalIDs(ctx context.Context, communityID, source string) ([]string, error)
	DeleteUnseen(ctx context.Context, communityID, source string, seen []string) ([]string, error)
}

type CompanyStore interface {
	GetOrCreate(ctx context.Context, company *domain.Company) (int64, error)
}

type CommunityStore interface {
	Get(ctx context.Context, communityID string) (*domain.Community, error)
	ListSyncEnabled(ctx context.Context) ([]domain.Community, error)
	MarkSynced(ctx context.Context, communityID string, at time.Time) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, event *domain.JobEvent) error
	Close() error
}

// Locker serialises sync runs per key. The returned release func must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
