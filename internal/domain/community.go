package domain

import "time"

const DefaultSyncInterval = 60 * time.Minute

type Community struct {
	ID          string
	Name        string
	LastJobSync *time.Time
	RecruitCRM  RecruitCRMSettings
}

// RecruitCRMSettings is the per-community integration setup. An empty
// APIKey means the process-wide key is used.
type RecruitCRMSettings struct {
	Enabled      bool
	APIKey       string
	Filters      JobFilter
	SyncInterval time.Duration
}

func (s RecruitCRMSettings) Interval() time.Duration {
	if s.SyncInterval <= 0 {
		return DefaultSyncInterval
	}
	return s.SyncInterval
}

// JobFilter restricts which remote jobs are kept locally. Empty lists
// match everything.
type JobFilter struct {
	Statuses  []string `json:"status,omitempty" yaml:"status"`
	JobTypes  []string `json:"jobTypes,omitempty" yaml:"job_types"`
	Locations []string `json:"locations,omitempty" yaml:"locations"`
}

func (f JobFilter) IsEmpty() bool {
	return len(f.Statuses) == 0 && len(f.JobTypes) == 0 && len(f.Locations) == 0
}
