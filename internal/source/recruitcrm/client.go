package recruitcrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"terrarium_jobs/internal/domain"
)

const (
	SourceID   = "recruitcrm"
	SourceName = "RecruitCRM"

	DefaultBaseURL  = "https://api.recruitcrm.io/v1"
	DefaultPageSize = 100
	DefaultTimeout  = 10 * time.Second

	// InvalidAPIKey is the placeholder value that is never sent upstream.
	InvalidAPIKey = "invalid"

	AuthBearer  = "bearer"
	AuthXAPIKey = "x-api-key"
)

// Config holds RecruitCRM client configuration. One Config describes one
// credential, so communities with their own keys get their own Client.
type Config struct {
	BaseURL        string
	APIKey         string
	AuthScheme     string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	HTTPClient     *http.Client
}

// Client implements service.JobSource against the RecruitCRM REST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	authScheme     string
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new RecruitCRM client.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	scheme := strings.ToLower(cfg.AuthScheme)
	if scheme == "" {
		scheme = AuthBearer
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		authScheme:     scheme,
		pageSize:       pageSize,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// FetchPage fetches one page of jobs. Pages are 1-based; perPage <= 0
// uses the configured page size.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) (*domain.Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", domain.ErrInvalidPageRequest, page)
	}
	if perPage <= 0 {
		perPage = c.pageSize
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	env, err := c.get(ctx, "/jobs", query)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}

	jobs, raws, err := validateJobs(env.Data)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	meta, err := validateMeta(env.Meta, len(jobs))
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}

	result := &domain.Page{
		Jobs:       make([]domain.RemoteJob, len(jobs)),
		Number:     page,
		PerPage:    perPage,
		TotalPages: meta.LastPage,
		TotalCount: meta.Total,
	}
	for i := range jobs {
		result.Jobs[i] = ToRemote(jobs[i], raws[i])
	}

	c.logger.Debug("fetched page",
		"page", page,
		"jobs", len(result.Jobs),
		"last_page", result.TotalPages,
	)

	return result, nil
}

// ListJobTypes returns the job types configured in RecruitCRM.
func (c *Client) ListJobTypes(ctx context.Context) ([]domain.JobType, error) {
	env, err := c.get(ctx, "/job-types", nil)
	if err != nil {
		return nil, fmt.Errorf("list job types: %w", err)
	}

	types, err := validateJobTypes(env.Data)
	if err != nil {
		return nil, fmt.Errorf("list job types: %w", err)
	}

	result := make([]domain.JobType, len(types))
	for i, t := range types {
		result[i] = domain.JobType{ID: t.ID, Name: t.Name}
	}
	return result, nil
}

// ListLocations returns the locations known to RecruitCRM.
func (c *Client) ListLocations(ctx context.Context) ([]domain.Location, error) {
	env, err := c.get(ctx, "/locations", nil)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	locations, err := validateLocations(env.Data)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	result := make([]domain.Location, len(locations))
	for i, l := range locations {
		result[i] = domain.Location{City: l.City, State: l.State, Country: l.Country}
	}
	return result, nil
}

// TestConnection verifies the credential with the cheapest possible call.
func (c *Client) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("page", "1")
	query.Set("per_page", "1")

	if _, err := c.get(ctx, "/jobs", query); err != nil {
		return fmt.Errorf("test connection: %w", err)
	}
	return nil
}

func (c *Client) checkCredential() error {
	switch strings.TrimSpace(c.apiKey) {
	case "":
		return &domain.AuthenticationError{Reason: "api key is required"}
	case InvalidAPIKey:
		return &domain.AuthenticationError{Reason: "invalid api key"}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*envelope, error) {
	if err := c.checkCredential(); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var env *envelope
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		env, err = c.doRequest(ctx, endpoint)
		if err == nil || !retryable(err) {
			return env, err
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"path", path,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if c.maxAttempts > 1 {
		return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
	}
	return nil, err
}

func (c *Client) doRequest(ctx context.Context, endpoint string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TerrariumJobSync/1.0")
	if c.authScheme == AuthXAPIKey {
		req.Header.Set("X-API-KEY", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &domain.TimeoutError{Op: "GET " + req.URL.Path, Err: err}
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		return nil, &domain.RemoteServiceError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    strings.TrimSpace(eb.Message),
		}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if isTimeout(err) {
			return nil, &domain.TimeoutError{Op: "GET " + req.URL.Path, Err: err}
		}
		verr := &domain.SchemaValidationError{}
		verr.Add("body", "must be a JSON object: "+err.Error())
		return nil, verr
	}

	return &env, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func retryable(err error) bool {
	var timeoutErr *domain.TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var remoteErr *domain.RemoteServiceError
	return errors.As(err, &remoteErr) && remoteErr.Temporary()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ToRemote converts a validated wire record into the source-neutral
// representation. raw is kept as the pass-through payload.
func ToRemote(job Job, raw json.RawMessage) domain.RemoteJob {
	remote := domain.RemoteJob{
		ID:          job.ID,
		Slug:        job.Slug,
		Name:        job.Name,
		Description: job.Description,
		Status:      job.Status,
		JobType:     domain.JobType{ID: job.JobType.ID, Name: job.JobType.Name},
		CreatedAt:   parseTime(job.CreatedAt),
		UpdatedAt:   parseTime(job.UpdatedAt),
		Company: domain.RemoteCompany{
			ID:      job.Company.ID,
			Name:    job.Company.Name,
			LogoURL: job.Company.LogoURL,
		},
		Raw: raw,
	}

	for _, l := range job.Locations {
		remote.Locations = append(remote.Locations, domain.Location{City: l.City, State: l.State, Country: l.Country})
	}
	for _, s := range job.Skills {
		remote.Skills = append(remote.Skills, s.Name)
	}
	if job.SalaryRange != nil {
		remote.Salary = &domain.SalaryRange{
			Min:      job.SalaryRange.Min,
			Max:      job.SalaryRange.Max,
			Currency: job.SalaryRange.Currency,
		}
	}

	return remote
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// parseTime accepts the formats RecruitCRM has been seen to emit. The
// schema only requires a string, so unknown formats yield the zero time.
func parseTime(value string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
