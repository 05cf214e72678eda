package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"terrarium_jobs/internal/domain"
)

type CommunityStore struct {
	db *sqlx.DB
}

func NewCommunityStore(db *sqlx.DB) *CommunityStore {
	return &CommunityStore{db: db}
}

const communityColumns = `
	id, name, last_job_sync, recruitcrm_enabled, recruitcrm_api_key,
	recruitcrm_filters, recruitcrm_sync_interval`

type communityRow struct {
	ID           string     `db:"id"`
	Name         string     `db:"name"`
	LastJobSync  *time.Time `db:"last_job_sync"`
	Enabled      bool       `db:"recruitcrm_enabled"`
	APIKey       string     `db:"recruitcrm_api_key"`
	Filters      []byte     `db:"recruitcrm_filters"`
	SyncInterval int        `db:"recruitcrm_sync_interval"` // minutes
}

func (r communityRow) toDomain() (*domain.Community, error) {
	c := &domain.Community{
		ID:          r.ID,
		Name:        r.Name,
		LastJobSync: r.LastJobSync,
		RecruitCRM: domain.RecruitCRMSettings{
			Enabled:      r.Enabled,
			APIKey:       r.APIKey,
			SyncInterval: time.Duration(r.SyncInterval) * time.Minute,
		},
	}
	if len(r.Filters) > 0 {
		if err := json.Unmarshal(r.Filters, &c.RecruitCRM.Filters); err != nil {
			return nil, fmt.Errorf("decode filters of community %s: %w", r.ID, err)
		}
	}
	return c, nil
}

func (s *CommunityStore) Get(ctx context.Context, communityID string) (*domain.Community, error) {
	var row communityRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row,
		"SELECT"+communityColumns+" FROM communities WHERE id = $1", communityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCommunityNotFound, communityID)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *CommunityStore) ListSyncEnabled(ctx context.Context) ([]domain.Community, error) {
	var rows []communityRow
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows,
		"SELECT"+communityColumns+" FROM communities WHERE recruitcrm_enabled ORDER BY id")
	if err != nil {
		return nil, err
	}

	communities := make([]domain.Community, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		communities = append(communities, *c)
	}
	return communities, nil
}

func (s *CommunityStore) MarkSynced(ctx context.Context, communityID string, at time.Time) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE communities SET last_job_sync = $2, updated_at = NOW() WHERE id = $1",
		communityID, at,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCommunityNotFound, communityID)
	}
	return nil
}

// Save creates or replaces a community's integration settings.
func (s *CommunityStore) Save(ctx context.Context, c *domain.Community) error {
	filters, err := json.Marshal(c.RecruitCRM.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}

	_, err = GetExecutor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO communities (
			id, name, recruitcrm_enabled, recruitcrm_api_key,
			recruitcrm_filters, recruitcrm_sync_interval
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			recruitcrm_enabled = EXCLUDED.recruitcrm_enabled,
			recruitcrm_api_key = EXCLUDED.recruitcrm_api_key,
			recruitcrm_filters = EXCLUDED.recruitcrm_filters,
			recruitcrm_sync_interval = EXCLUDED.recruitcrm_sync_interval,
			updated_at = NOW()`,
		c.ID, c.Name, c.RecruitCRM.Enabled, c.RecruitCRM.APIKey,
		string(filters), int(c.RecruitCRM.Interval()/time.Minute),
	)
	return err
}
