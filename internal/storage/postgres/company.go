package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"terrarium_jobs/internal/domain"
)

type CompanyStore struct {
	db *sqlx.DB
}

func NewCompanyStore(db *sqlx.DB) *CompanyStore {
	return &CompanyStore{db: db}
}

// GetOrCreate returns the id of the company with the given external id,
// inserting it first if needed. Existing rows are never updated.
func (s *CompanyStore) GetOrCreate(ctx context.Context, company *domain.Company) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	var id int64
	err := sqlx.GetContext(ctx, exec, &id, `
		INSERT INTO companies (external_id, name, logo_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id`,
		company.ExternalID, company.Name, company.LogoURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = sqlx.GetContext(ctx, exec, &id,
			"SELECT id FROM companies WHERE external_id = $1", company.ExternalID)
	}
	if err != nil {
		return 0, err
	}

	company.ID = id
	return id, nil
}
