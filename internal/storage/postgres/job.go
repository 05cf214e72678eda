package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"terrarium_jobs/internal/domain"
)

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

// Upsert inserts or overwrites the job keyed by (community_id, external_id).
// created_at and company are only set on insert.
func (s *JobStore) Upsert(ctx context.Context, job *domain.Job) (int64, error) {
	query := `
		INSERT INTO jobs (
			external_id, community_id, company_id, title, description, status,
			type, location, salary, requirements, source, raw_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12::jsonb
		)
		ON CONFLICT (community_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			type = EXCLUDED.type,
			location = EXCLUDED.location,
			salary = EXCLUDED.salary,
			requirements = EXCLUDED.requirements,
			source = EXCLUDED.source,
			raw_data = EXCLUDED.raw_data,
			updated_at = NOW()
		RETURNING id`

	requirements := job.Requirements
	if requirements == nil {
		requirements = []string{}
	}

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		job.ExternalID,
		job.CommunityID,
		job.CompanyID,
		job.Title,
		job.Description,
		job.Status,
		job.Type,
		job.Location,
		jsonParam(job.Salary),
		pq.Array(requirements),
		job.Source,
		jsonParam(job.RawData),
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (s *JobStore) ListExternalIDs(ctx context.Context, communityID, source string) ([]string, error) {
	query := `SELECT external_id FROM jobs WHERE community_id = $1 AND source = $2 ORDER BY external_id`

	var ids []string
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &ids, query, communityID, source); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteUnseen removes the community's jobs from source whose external id
// is not in seen and returns the removed ids. An empty seen removes all.
func (s *JobStore) DeleteUnseen(ctx context.Context, communityID, source string, seen []string) ([]string, error) {
	if seen == nil {
		seen = []string{}
	}

	query := `
		DELETE FROM jobs
		WHERE community_id = $1 AND source = $2 AND NOT (external_id = ANY($3))
		RETURNING external_id`

	var removed []string
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &removed, query, communityID, source, pq.Array(seen)); err != nil {
		return nil, err
	}
	return removed, nil
}

type jobRow struct {
	ID           int64          `db:"id"`
	ExternalID   string         `db:"external_id"`
	CommunityID  string         `db:"community_id"`
	CompanyID    *int64         `db:"company_id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Status       string         `db:"status"`
	Type         string         `db:"type"`
	Location     string         `db:"location"`
	Salary       []byte         `db:"salary"`
	Requirements pq.StringArray `db:"requirements"`
	Source       string         `db:"source"`
	RawData      []byte         `db:"raw_data"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r jobRow) toDomain() *domain.Job {
	return &domain.Job{
		ID:           r.ID,
		ExternalID:   r.ExternalID,
		CommunityID:  r.CommunityID,
		CompanyID:    r.CompanyID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       r.Status,
		Type:         r.Type,
		Location:     r.Location,
		Salary:       r.Salary,
		Requirements: []string(r.Requirements),
		Source:       r.Source,
		RawData:      r.RawData,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *JobStore) GetByExternalID(ctx context.Context, communityID, externalID string) (*domain.Job, error) {
	query := `
		SELECT id, external_id, community_id, company_id, title, description, status,
		       type, location, salary, requirements, source, raw_data, created_at, updated_at
		FROM jobs
		WHERE community_id = $1 AND external_id = $2`

	var row jobRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, communityID, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrJobNotFound, externalID, communityID)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *JobStore) CountByCommunity(ctx context.Context, communityID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count,
		`SELECT COUNT(*) FROM jobs WHERE community_id = $1`, communityID)
	return count, err
}

// jsonParam passes raw JSON as text; lib/pq would send []byte as bytea.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
