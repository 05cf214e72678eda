package recruitcrm

import "encoding/json"

// envelope is the common RecruitCRM list response shape. Records stay raw
// until each one is validated.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta json.RawMessage `json:"meta"`
}

type Meta struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type Job struct {
	ID          int64        `json:"id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	JobType     JobType      `json:"job_type"`
	Locations   []Location   `json:"locations"`
	Skills      []Skill      `json:"skills"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
	Company     Company      `json:"company"`
	SalaryRange *SalaryRange `json:"salary_range,omitempty"`
}

type JobType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Location struct {
	City    string  `json:"city"`
	State   *string `json:"state,omitempty"`
	Country string  `json:"country"`
}

type Skill struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Company struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	LogoURL *string `json:"logo_url,omitempty"`
}

type SalaryRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

type errorBody struct {
	Message string `json:"message"`
}
