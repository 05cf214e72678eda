package service

import (
	"strings"

	"terrarium_jobs/internal/domain"
)

// Matches reports whether a remote job passes the community filter. Each
// non-empty list must match; comparison ignores case.
func Matches(f domain.JobFilter, job *domain.RemoteJob) bool {
	if len(f.Statuses) > 0 && !containsFold(f.Statuses, job.Status) {
		return false
	}
	if len(f.JobTypes) > 0 && !containsFold(f.JobTypes, job.JobType.Name) {
		return false
	}
	if len(f.Locations) > 0 {
		for _, loc := range job.Locations {
			if containsFold(f.Locations, loc.City) {
				return true
			}
		}
		return false
	}
	return true
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}
