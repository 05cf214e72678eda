package service

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"terrarium_jobs/internal/domain"
)

// RemoteLocationFallback is stored when a job lists no usable city.
const RemoteLocationFallback = "Remote"

// ExternalID derives the local key of a remote record.
func ExternalID(source string, id int64) string {
	return fmt.Sprintf("%s_%d", source, id)
}

// MapJob maps a remote job onto the local job record. The company
// reference is resolved separately.
func MapJob(communityID, source string, remote *domain.RemoteJob) (*domain.Job, error) {
	job := &domain.Job{
		ExternalID:   ExternalID(source, remote.ID),
		CommunityID:  communityID,
		Title:        remote.Name,
		Description:  remote.Description,
		Status:       remote.Status,
		Type:         remote.JobType.Name,
		Location:     resolveLocation(remote.Locations),
		Requirements: slices.Clone(remote.Skills),
		Source:       source,
		RawData:      remote.Raw,
	}
	if job.Requirements == nil {
		job.Requirements = []string{}
	}

	if remote.Salary != nil {
		salary, err := json.Marshal(remote.Salary)
		if err != nil {
			return nil, fmt.Errorf("encode salary: %w", err)
		}
		job.Salary = salary
	}

	if len(job.RawData) == 0 {
		raw, err := json.Marshal(remote)
		if err != nil {
			return nil, fmt.Errorf("encode raw data: %w", err)
		}
		job.RawData = raw
	}

	return job, nil
}

func MapCompany(source string, remote domain.RemoteCompany) *domain.Company {
	return &domain.Company{
		ExternalID: ExternalID(source, remote.ID),
		Name:       remote.Name,
		LogoURL:    remote.LogoURL,
	}
}

func resolveLocation(locations []domain.Location) string {
	if len(locations) == 0 {
		return RemoteLocationFallback
	}
	if city := strings.TrimSpace(locations[0].City); city != "" {
		return city
	}
	return RemoteLocationFallback
}
