// Package fixture serves jobs from a static data set with the same paging
// and credential rules as the live RecruitCRM client. It backs local runs
// without network access and end-to-end tests of the sync engine.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"terrarium_jobs/internal/domain"
	"terrarium_jobs/internal/source/recruitcrm"
)

const SourceName = "RecruitCRM (fixture)"

// File is the on-disk fixture layout. Jobs use the RecruitCRM wire shape
// so that fixtures go through the same schema validation as live pages.
type File struct {
	PageSize  int              `yaml:"page_size"`
	JobTypes  []domain.JobType `yaml:"job_types"`
	Locations []struct {
		City    string `yaml:"city"`
		State   string `yaml:"state"`
		Country string `yaml:"country"`
	} `yaml:"locations"`
	Jobs []map[string]any `yaml:"jobs"`
}

type Source struct {
	apiKey    string
	pageSize  int
	jobTypes  []domain.JobType
	locations []domain.Location

	mu         sync.Mutex
	jobs       []domain.RemoteJob
	pageErrors map[int]error
	fetches    int
}

// New builds a fixture source over jobs. pageSize <= 0 uses the live
// client's default.
func New(apiKey string, pageSize int, jobs []domain.RemoteJob) *Source {
	if pageSize <= 0 {
		pageSize = recruitcrm.DefaultPageSize
	}
	return &Source{
		apiKey:     apiKey,
		pageSize:   pageSize,
		jobs:       jobs,
		pageErrors: make(map[int]error),
	}
}

// LoadFile reads a YAML fixture, validating every job.
func LoadFile(path, apiKey string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	jobs := make([]domain.RemoteJob, 0, len(f.Jobs))
	for i, item := range f.Jobs {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("fixture job %d: %w", i, err)
		}
		job, err := recruitcrm.ValidateJob(raw)
		if err != nil {
			return nil, fmt.Errorf("fixture job %d: %w", i, err)
		}
		jobs = append(jobs, recruitcrm.ToRemote(*job, raw))
	}

	src := New(apiKey, f.PageSize, jobs)
	src.jobTypes = f.JobTypes
	for _, l := range f.Locations {
		loc := domain.Location{City: l.City, Country: l.Country}
		if l.State != "" {
			state := l.State
			loc.State = &state
		}
		src.locations = append(src.locations, loc)
	}
	return src, nil
}

func (s *Source) ID() string {
	return recruitcrm.SourceID
}

func (s *Source) Name() string {
	return SourceName
}

// SetJobs replaces the served data set, simulating upstream changes
// between runs.
func (s *Source) SetJobs(jobs []domain.RemoteJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = jobs
}

// FailPage makes every fetch of page return err.
func (s *Source) FailPage(page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageErrors[page] = err
}

// Fetches reports how many page fetches reached the data set.
func (s *Source) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *Source) FetchPage(ctx context.Context, page, perPage int) (*domain.Page, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", domain.ErrInvalidPageRequest, page)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if perPage <= 0 {
		perPage = s.pageSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	if err := s.pageErrors[page]; err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}

	total := len(s.jobs)
	lastPage := (total + perPage - 1) / perPage
	if lastPage == 0 {
		lastPage = 1
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	jobs := make([]domain.RemoteJob, end-start)
	copy(jobs, s.jobs[start:end])

	return &domain.Page{
		Jobs:       jobs,
		Number:     page,
		PerPage:    perPage,
		TotalPages: lastPage,
		TotalCount: total,
	}, nil
}

func (s *Source) ListJobTypes(ctx context.Context) ([]domain.JobType, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	return s.jobTypes, nil
}

func (s *Source) ListLocations(ctx context.Context) ([]domain.Location, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}
	return s.locations, nil
}

func (s *Source) TestConnection(ctx context.Context) error {
	return s.checkCredential()
}

func (s *Source) checkCredential() error {
	switch strings.TrimSpace(s.apiKey) {
	case "":
		return &domain.AuthenticationError{Reason: "api key is required"}
	case recruitcrm.InvalidAPIKey:
		return &domain.AuthenticationError{Reason: "invalid api key"}
	}
	return nil
}
