package recruitcrm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"terrarium_jobs/internal/domain"
)

// object is a decoded JSON object whose members are checked one by one so
// that every violation is reported, not just the first.
type object struct {
	path    string
	members map[string]json.RawMessage
	errs    *domain.SchemaValidationError
}

func newObject(path string, raw json.RawMessage, errs *domain.SchemaValidationError) (*object, bool) {
	var members map[string]json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &members) != nil || members == nil {
		field := path
		if field == "" {
			field = "record"
		}
		errs.Add(field, "must be an object")
		return nil, false
	}
	return &object{path: path, members: members, errs: errs}, true
}

func (o *object) field(name string) string {
	if o.path == "" {
		return name
	}
	return o.path + "." + name
}

func (o *object) get(name string, required bool) (json.RawMessage, bool) {
	raw, ok := o.members[name]
	if !ok || isNull(raw) {
		if required {
			o.errs.Add(o.field(name), "is required")
		}
		return nil, false
	}
	return raw, true
}

func (o *object) int(name string) int64 {
	raw, ok := o.get(name, true)
	if !ok {
		return 0
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		o.errs.Add(o.field(name), "must be an integer")
	}
	return v
}

func (o *object) number(name string) float64 {
	raw, ok := o.get(name, true)
	if !ok {
		return 0
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		o.errs.Add(o.field(name), "must be a number")
	}
	return v
}

func (o *object) string(name string) string {
	raw, ok := o.get(name, true)
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		o.errs.Add(o.field(name), "must be a string")
	}
	return v
}

func (o *object) optionalString(name string) *string {
	raw, ok := o.get(name, false)
	if !ok {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		o.errs.Add(o.field(name), "must be a string")
		return nil
	}
	return &v
}

func (o *object) object(name string, required bool) (*object, bool) {
	raw, ok := o.get(name, required)
	if !ok {
		return nil, false
	}
	return newObject(o.field(name), raw, o.errs)
}

func (o *object) array(name string) []json.RawMessage {
	raw, ok := o.get(name, true)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		o.errs.Add(o.field(name), "must be an array")
		return nil
	}
	return items
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ValidateJob checks one raw job record against the RecruitCRM job
// schema. The returned error is a *domain.SchemaValidationError listing
// every violated field.
func ValidateJob(raw json.RawMessage) (*Job, error) {
	errs := &domain.SchemaValidationError{}
	job := validateJob("", raw, errs)
	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return job, nil
}

func validateJob(path string, raw json.RawMessage, errs *domain.SchemaValidationError) *Job {
	o, ok := newObject(path, raw, errs)
	if !ok {
		return nil
	}

	job := &Job{
		ID:          o.int("id"),
		Slug:        o.string("slug"),
		Name:        o.string("name"),
		Description: o.string("description"),
		Status:      o.string("status"),
		CreatedAt:   o.string("created_at"),
		UpdatedAt:   o.string("updated_at"),
	}

	if jt, ok := o.object("job_type", true); ok {
		job.JobType = validateJobType(jt)
	}

	for i, item := range o.array("locations") {
		if lo, ok := newObject(fmt.Sprintf("%s[%d]", o.field("locations"), i), item, errs); ok {
			job.Locations = append(job.Locations, validateLocation(lo))
		}
	}

	for i, item := range o.array("skills") {
		if so, ok := newObject(fmt.Sprintf("%s[%d]", o.field("skills"), i), item, errs); ok {
			job.Skills = append(job.Skills, Skill{ID: so.int("id"), Name: so.string("name")})
		}
	}

	if co, ok := o.object("company", true); ok {
		job.Company = Company{
			ID:      co.int("id"),
			Name:    co.string("name"),
			LogoURL: co.optionalString("logo_url"),
		}
	}

	if so, ok := o.object("salary_range", false); ok {
		job.SalaryRange = &SalaryRange{
			Min:      so.number("min"),
			Max:      so.number("max"),
			Currency: so.string("currency"),
		}
	}

	return job
}

func validateJobType(o *object) JobType {
	return JobType{ID: o.int("id"), Name: o.string("name")}
}

func validateLocation(o *object) Location {
	return Location{
		City:    o.string("city"),
		State:   o.optionalString("state"),
		Country: o.string("country"),
	}
}

func validateJobs(data json.RawMessage) ([]Job, []json.RawMessage, error) {
	errs := &domain.SchemaValidationError{}

	var items []json.RawMessage
	if isNull(data) || json.Unmarshal(data, &items) != nil {
		errs.Add("data", "must be an array")
		return nil, nil, errs
	}

	jobs := make([]Job, 0, len(items))
	for i, item := range items {
		if job := validateJob(fmt.Sprintf("data[%d]", i), item, errs); job != nil {
			jobs = append(jobs, *job)
		}
	}

	if err := errs.OrNil(); err != nil {
		return nil, nil, err
	}
	return jobs, items, nil
}

// validateMeta checks the pagination block. last_page decides when a run
// stops paging, so it must be at least 1 whenever the page carries records.
func validateMeta(raw json.RawMessage, records int) (Meta, error) {
	errs := &domain.SchemaValidationError{}

	o, ok := newObject("meta", raw, errs)
	if !ok {
		return Meta{}, errs
	}

	meta := Meta{
		Total:       int(o.int("total")),
		PerPage:     int(o.int("per_page")),
		CurrentPage: int(o.int("current_page")),
	}

	before := len(errs.Violations)
	meta.LastPage = int(o.int("last_page"))
	if len(errs.Violations) == before {
		minimum := 1
		if records == 0 {
			minimum = 0
		}
		if meta.LastPage < minimum {
			errs.Add("meta.last_page", fmt.Sprintf("must be at least %d", minimum))
		}
	}

	if err := errs.OrNil(); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

func validateJobTypes(data json.RawMessage) ([]JobType, error) {
	errs := &domain.SchemaValidationError{}

	var items []json.RawMessage
	if isNull(data) || json.Unmarshal(data, &items) != nil {
		errs.Add("data", "must be an array")
		return nil, errs
	}

	types := make([]JobType, 0, len(items))
	for i, item := range items {
		if o, ok := newObject(fmt.Sprintf("data[%d]", i), item, errs); ok {
			types = append(types, validateJobType(o))
		}
	}
	return types, errs.OrNil()
}

func validateLocations(data json.RawMessage) ([]Location, error) {
	errs := &domain.SchemaValidationError{}

	var items []json.RawMessage
	if isNull(data) || json.Unmarshal(data, &items) != nil {
		errs.Add("data", "must be an array")
		return nil, errs
	}

	locations := make([]Location, 0, len(items))
	for i, item := range items {
		if o, ok := newObject(fmt.Sprintf("data[%d]", i), item, errs); ok {
			locations = append(locations, validateLocation(o))
		}
	}
	return locations, errs.OrNil()
}
