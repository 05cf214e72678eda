package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"terrarium_jobs/internal/domain"
)

// printer renders command results as text or indented JSON.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) print(v any, text func(w io.Writer)) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}

func writeStats(w io.Writer, stats *domain.SyncStats) {
	fmt.Fprintf(w, "community %s synced from %s in %s (run %s)\n",
		stats.CommunityID, stats.Source, stats.Duration.Round(time.Millisecond), stats.RunID)
	fmt.Fprintf(w, "  pages:    %d\n", stats.Pages)
	fmt.Fprintf(w, "  fetched:  %s\n", humanize.Comma(int64(stats.Fetched)))
	fmt.Fprintf(w, "  added:    %s\n", humanize.Comma(int64(stats.Added)))
	fmt.Fprintf(w, "  updated:  %s\n", humanize.Comma(int64(stats.Updated)))
	fmt.Fprintf(w, "  removed:  %s\n", humanize.Comma(int64(stats.Removed)))
	if stats.Filtered > 0 {
		fmt.Fprintf(w, "  filtered: %s\n", humanize.Comma(int64(stats.Filtered)))
	}
	fmt.Fprintf(w, "  errors:   %d\n", len(stats.Errors))
	for _, e := range stats.Errors {
		fmt.Fprintf(w, "    - record %d: %s\n", e.RecordID, e.Message)
	}
}

type communityStatus struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Enabled      bool             `json:"enabled"`
	HasOwnAPIKey bool             `json:"hasOwnApiKey"`
	SyncInterval string           `json:"syncInterval"`
	Filters      domain.JobFilter `json:"filters"`
	LastJobSync  *time.Time       `json:"lastJobSync"`
	Jobs         int              `json:"jobs"`
}

func newCommunityStatus(c *domain.Community, jobs int) communityStatus {
	return communityStatus{
		ID:           c.ID,
		Name:         c.Name,
		Enabled:      c.RecruitCRM.Enabled,
		HasOwnAPIKey: c.RecruitCRM.APIKey != "",
		SyncInterval: c.RecruitCRM.Interval().String(),
		Filters:      c.RecruitCRM.Filters,
		LastJobSync:  c.LastJobSync,
		Jobs:         jobs,
	}
}

func writeStatus(w io.Writer, s communityStatus, now time.Time) {
	lastSync := "never"
	if s.LastJobSync != nil {
		lastSync = humanize.RelTime(*s.LastJobSync, now, "ago", "from now")
	}

	fmt.Fprintf(w, "%s (%s)\n", s.Name, s.ID)
	fmt.Fprintf(w, "  recruitcrm:    %s\n", enabledLabel(s.Enabled))
	fmt.Fprintf(w, "  sync interval: %s\n", s.SyncInterval)
	fmt.Fprintf(w, "  last sync:     %s\n", lastSync)
	fmt.Fprintf(w, "  jobs:          %s\n", humanize.Comma(int64(s.Jobs)))
	if f := s.Filters; !f.IsEmpty() {
		fmt.Fprintf(w, "  filters:       %s\n", describeFilter(f))
	}
}

func writeJob(w io.Writer, job *domain.Job, now time.Time) {
	fmt.Fprintf(w, "%s (%s)\n", job.Title, job.ExternalID)
	fmt.Fprintf(w, "  status:   %s\n", job.Status)
	fmt.Fprintf(w, "  type:     %s\n", job.Type)
	fmt.Fprintf(w, "  location: %s\n", job.Location)
	if len(job.Requirements) > 0 {
		fmt.Fprintf(w, "  skills:   %s\n", strings.Join(job.Requirements, ", "))
	}
	fmt.Fprintf(w, "  updated:  %s\n", humanize.RelTime(job.UpdatedAt, now, "ago", "from now"))
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func describeFilter(f domain.JobFilter) string {
	var parts []string
	if len(f.Statuses) > 0 {
		parts = append(parts, "status="+strings.Join(f.Statuses, ","))
	}
	if len(f.JobTypes) > 0 {
		parts = append(parts, "job_type="+strings.Join(f.JobTypes, ","))
	}
	if len(f.Locations) > 0 {
		parts = append(parts, "location="+strings.Join(f.Locations, ","))
	}
	return strings.Join(parts, " ")
}
