package domain

import (
	"encoding/json"
	"time"
)

type Job struct {
	ID           int64           `db:"id" json:"id"`
	ExternalID   string          `db:"external_id" json:"externalId"` // "<source>_<remote id>"
	CommunityID  string          `db:"community_id" json:"communityId"`
	CompanyID    *int64          `db:"company_id" json:"companyId"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	Status       string          `db:"status" json:"status"`
	Type         string          `db:"type" json:"type"`
	Location     string          `db:"location" json:"location"`
	Salary       json.RawMessage `db:"salary" json:"salary,omitempty"`
	Requirements []string        `db:"-" json:"requirements"`
	Source       string          `db:"source" json:"source"`
	RawData      json.RawMessage `db:"raw_data" json:"rawData,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

type Company struct {
	ID         int64   `db:"id" json:"id"`
	ExternalID string  `db:"external_id" json:"externalId"`
	Name       string  `db:"name" json:"name"`
	LogoURL    *string `db:"logo_url" json:"logoUrl,omitempty"`
}

// JobType and Location are auxiliary lookups served by the job source.
type JobType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Location struct {
	City    string  `json:"city"`
	State   *string `json:"state,omitempty"`
	Country string  `json:"country"`
}
