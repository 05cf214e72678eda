package domain

import (
	"encoding/json"
	"time"
)

// SyncStats holds statistics about one sync run for one community.
type SyncStats struct {
	RunID       string        `json:"runId"`
	CommunityID string        `json:"communityId"`
	Source      string        `json:"source"`
	Pages       int           `json:"pages"`
	Fetched     int           `json:"fetched"`
	Added       int           `json:"added"`
	Updated     int           `json:"updated"`
	Removed     int           `json:"removed"`
	Filtered    int           `json:"filtered"`
	Published   int           `json:"published"`
	Errors      []RecordError `json:"errors"`
	Duration    time.Duration `json:"durationNs"`
}

// RecordError describes a single remote record that failed to sync
// without aborting the run.
type RecordError struct {
	RecordID int64  `json:"recordId"`
	Message  string `json:"errorMessage"`
}

// Page is one page of remote jobs as returned by a JobSource.
type Page struct {
	Jobs       []RemoteJob
	Number     int
	PerPage    int
	TotalPages int
	TotalCount int
}

// RemoteJob is a validated snapshot of a job as the external source
// describes it. Raw keeps the original payload for pass-through storage.
type RemoteJob struct {
	ID          int64
	Slug        string
	Name        string
	Description string
	Status      string
	JobType     JobType
	Locations   []Location
	Skills      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Company     RemoteCompany
	Salary      *SalaryRange
	Raw         json.RawMessage
}

type RemoteCompany struct {
	ID      int64
	Name    string
	LogoURL *string
}

type SalaryRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// JobEvent is emitted to downstream consumers for every change a sync
// run makes to the local job board.
type JobEvent struct {
	Action      string    `json:"action"` // "create", "update" or "delete"
	RunID       string    `json:"runId"`
	CommunityID string    `json:"communityId"`
	ExternalID  string    `json:"externalId"`
	Job         *Job      `json:"job,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)
