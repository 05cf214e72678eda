//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"terrarium_jobs/internal/domain"
	"terrarium_jobs/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_communities.up.sql"),
			filepath.Join(migrationsPath, "002_create_companies_jobs.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM jobs")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM companies")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM communities")

	communities := NewCommunityStore(s.db)
	for _, id := range []string{"c1", "c2"} {
		s.Require().NoError(communities.Save(s.ctx, &domain.Community{
			ID:         id,
			Name:       "Community " + id,
			RecruitCRM: domain.RecruitCRMSettings{Enabled: true, APIKey: "key-" + id},
		}))
	}
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func newJob(communityID, externalID, title string) *domain.Job {
	return &domain.Job{
		ExternalID:   externalID,
		CommunityID:  communityID,
		Title:        title,
		Description:  "desc",
		Status:       "Open",
		Type:         "Full-time",
		Location:     "Remote",
		Requirements: []string{"Go", "SQL"},
		Source:       "recruitcrm",
		RawData:      json.RawMessage(`{"id":1}`),
	}
}

func (s *PostgresIntegrationSuite) TestJobStore_Upsert_Insert() {
	store := NewJobStore(s.db)

	job := newJob("c1", "recruitcrm_1", "Engineer")
	job.Salary = json.RawMessage(`{"min":1,"max":2,"currency":"USD"}`)

	id, err := store.Upsert(s.ctx, job)
	s.Require().NoError(err)
	s.Greater(id, int64(0))

	got, err := store.GetByExternalID(s.ctx, "c1", "recruitcrm_1")
	s.Require().NoError(err)
	s.Equal(id, got.ID)
	s.Equal("Engineer", got.Title)
	s.Equal([]string{"Go", "SQL"}, got.Requirements)
	s.JSONEq(`{"min":1,"max":2,"currency":"USD"}`, string(got.Salary))
	s.JSONEq(`{"id":1}`, string(got.RawData))
}

func (s *PostgresIntegrationSuite) TestJobStore_Upsert_Overwrites() {
	store := NewJobStore(s.db)

	job := newJob("c1", "recruitcrm_1", "Original")
	id1, err := store.Upsert(s.ctx, job)
	s.Require().NoError(err)

	job.Title = "Updated"
	job.Requirements = nil
	id2, err := store.Upsert(s.ctx, job)
	s.Require().NoError(err)
	s.Equal(id1, id2)

	got, err := store.GetByExternalID(s.ctx, "c1", "recruitcrm_1")
	s.Require().NoError(err)
	s.Equal("Updated", got.Title)
	s.Empty(got.Requirements)
	s.Nil(got.Salary)
}

func (s *PostgresIntegrationSuite) TestJobStore_GetByExternalIDNotFound() {
	store := NewJobStore(s.db)
	_, err := store.Upsert(s.ctx, newJob("c1", "recruitcrm_1", "Engineer"))
	s.Require().NoError(err)

	_, err = store.GetByExternalID(s.ctx, "c2", "recruitcrm_1")
	s.ErrorIs(err, domain.ErrJobNotFound)
}

func (s *PostgresIntegrationSuite) TestJobStore_SameExternalIDInTwoCommunities() {
	store := NewJobStore(s.db)

	id1, err := store.Upsert(s.ctx, newJob("c1", "recruitcrm_1", "A"))
	s.Require().NoError(err)
	id2, err := store.Upsert(s.ctx, newJob("c2", "recruitcrm_1", "B"))
	s.Require().NoError(err)
	s.NotEqual(id1, id2)
}

func (s *PostgresIntegrationSuite) TestJobStore_DeleteUnseen() {
	store := NewJobStore(s.db)

	for _, id := range []string{"recruitcrm_1", "recruitcrm_2", "recruitcrm_3"} {
		_, err := store.Upsert(s.ctx, newJob("c1", id, "job"))
		s.Require().NoError(err)
	}
	_, err := store.Upsert(s.ctx, newJob("c2", "recruitcrm_9", "other community"))
	s.Require().NoError(err)

	removed, err := store.DeleteUnseen(s.ctx, "c1", "recruitcrm", []string{"recruitcrm_2"})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"recruitcrm_1", "recruitcrm_3"}, removed)

	ids, err := store.ListExternalIDs(s.ctx, "c1", "recruitcrm")
	s.Require().NoError(err)
	s.Equal([]string{"recruitcrm_2"}, ids)

	ids, err = store.ListExternalIDs(s.ctx, "c2", "recruitcrm")
	s.Require().NoError(err)
	s.Equal([]string{"recruitcrm_9"}, ids)
}

func (s *PostgresIntegrationSuite) TestJobStore_DeleteUnseen_EmptyRemovesAll() {
	store := NewJobStore(s.db)

	_, err := store.Upsert(s.ctx, newJob("c1", "recruitcrm_1", "job"))
	s.Require().NoError(err)

	removed, err := store.DeleteUnseen(s.ctx, "c1", "recruitcrm", nil)
	s.Require().NoError(err)
	s.Equal([]string{"recruitcrm_1"}, removed)

	count, err := store.CountByCommunity(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestCompanyStore_GetOrCreate() {
	store := NewCompanyStore(s.db)

	company := &domain.Company{ExternalID: "recruitcrm_1", Name: "Tech Corp", LogoURL: utils.Ptr("https://example.com/logo.png")}
	id1, err := store.GetOrCreate(s.ctx, company)
	s.Require().NoError(err)
	s.Greater(id1, int64(0))

	id2, err := store.GetOrCreate(s.ctx, &domain.Company{ExternalID: "recruitcrm_1", Name: "Renamed"})
	s.Require().NoError(err)
	s.Equal(id1, id2)

	var name string
	err = s.db.GetContext(s.ctx, &name, "SELECT name FROM companies WHERE id = $1", id1)
	s.Require().NoError(err)
	s.Equal("Tech Corp", name)
}

func (s *PostgresIntegrationSuite) TestCommunityStore_GetAndMarkSynced() {
	store := NewCommunityStore(s.db)

	err := store.Save(s.ctx, &domain.Community{
		ID:   "c1",
		Name: "Renamed",
		RecruitCRM: domain.RecruitCRMSettings{
			Enabled:      true,
			APIKey:       "k",
			Filters:      domain.JobFilter{Statuses: []string{"Open"}, Locations: []string{"Austin"}},
			SyncInterval: 15 * time.Minute,
		},
	})
	s.Require().NoError(err)

	c, err := store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal("Renamed", c.Name)
	s.Nil(c.LastJobSync)
	s.Equal(15*time.Minute, c.RecruitCRM.Interval())
	s.Equal([]string{"Open"}, c.RecruitCRM.Filters.Statuses)
	s.Equal([]string{"Austin"}, c.RecruitCRM.Filters.Locations)

	at := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(store.MarkSynced(s.ctx, "c1", at))

	c, err = store.Get(s.ctx, "c1")
	s.Require().NoError(err)
	s.Require().NotNil(c.LastJobSync)
	s.WithinDuration(at, *c.LastJobSync, time.Millisecond)
}

func (s *PostgresIntegrationSuite) TestCommunityStore_NotFound() {
	store := NewCommunityStore(s.db)

	_, err := store.Get(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrCommunityNotFound)

	err = store.MarkSynced(s.ctx, "missing", time.Now())
	s.ErrorIs(err, domain.ErrCommunityNotFound)
}

func (s *PostgresIntegrationSuite) TestCommunityStore_ListSyncEnabled() {
	store := NewCommunityStore(s.db)

	s.Require().NoError(store.Save(s.ctx, &domain.Community{ID: "c3", Name: "Off"}))

	communities, err := store.ListSyncEnabled(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(communities, 2)
	s.Equal("c1", communities[0].ID)
	s.Equal("c2", communities[1].ID)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	jobs := NewJobStore(s.db)
	companies := NewCompanyStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		companyID, err := companies.GetOrCreate(ctx, &domain.Company{ExternalID: "recruitcrm_5", Name: "Acme"})
		if err != nil {
			return err
		}
		job := newJob("c1", "recruitcrm_99", "Transaction Job")
		job.CompanyID = &companyID
		_, err = jobs.Upsert(ctx, job)
		return err
	})
	s.Require().NoError(err)

	got, err := jobs.GetByExternalID(s.ctx, "c1", "recruitcrm_99")
	s.Require().NoError(err)
	s.NotNil(got.CompanyID)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	jobs := NewJobStore(s.db)
	companies := NewCompanyStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := companies.GetOrCreate(ctx, &domain.Company{ExternalID: "recruitcrm_6", Name: "Rolled back"}); err != nil {
			return err
		}
		if _, err := jobs.Upsert(ctx, newJob("c1", "recruitcrm_77", "Should Rollback")); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM jobs WHERE external_id = $1", "recruitcrm_77")
	s.NoError(err)
	s.Equal(0, count)

	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM companies WHERE external_id = $1", "recruitcrm_6")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_NestedJoinsOuter() {
	tm := NewTransactionManager(s.db)
	jobs := NewJobStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		outer := GetTxFromContext(ctx)
		if err := tm.WithTransaction(ctx, func(inner context.Context) error {
			s.Same(outer, GetTxFromContext(inner))
			_, err := jobs.Upsert(inner, newJob("c1", "recruitcrm_55", "Nested"))
			return err
		}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM jobs WHERE external_id = $1", "recruitcrm_55"))
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_PanicRollsBack() {
	tm := NewTransactionManager(s.db)
	jobs := NewJobStore(s.db)

	s.Panics(func() {
		_ = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
			if _, err := jobs.Upsert(ctx, newJob("c1", "recruitcrm_56", "Panics")); err != nil {
				return err
			}
			panic("boom")
		})
	})

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM jobs WHERE external_id = $1", "recruitcrm_56"))
	s.Equal(0, count)
}
