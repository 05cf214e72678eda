package recruitcrm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"terrarium_jobs/internal/domain"
)

const validJob = `{
	"id": 1001,
	"slug": "senior-product-manager",
	"name": "Senior Product Manager",
	"description": "Drive the payments roadmap",
	"status": "active",
	"job_type": {"id": 1, "name": "Full Time"},
	"locations": [{"city": "London", "state": "England", "country": "United Kingdom"}],
	"skills": [{"id": 1, "name": "Product Management"}, {"id": 2, "name": "Fintech"}],
	"created_at": "2024-03-15T10:30:00Z",
	"updated_at": "2024-03-16T08:00:00Z",
	"company": {"id": 789, "name": "PayTech Solutions", "logo_url": "https://example.com/paytech.png"},
	"salary_range": {"min": 85000, "max": 120000, "currency": "GBP"}
}`

type ClientTestSuite struct {
	suite.Suite
	logger   *slog.Logger
	server   *httptest.Server
	requests atomic.Int32

	mu      sync.Mutex
	handler http.HandlerFunc
	lastReq *http.Request
}

func (s *ClientTestSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.requests.Store(0)
	s.setHandler(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		s.lastReq = r
		handler := s.handler
		s.mu.Unlock()
		handler(w, r)
	}))
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) newClient(apiKey string) *Client {
	return New(Config{
		BaseURL: s.server.URL,
		APIKey:  apiKey,
		Timeout: time.Second,
	}, s.logger)
}

func (s *ClientTestSuite) setHandler(h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *ClientTestSuite) last() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

func (s *ClientTestSuite) respond(status int, body string) {
	s.setHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (s *ClientTestSuite) TestFetchPage_DecodesJobs() {
	s.respond(http.StatusOK, fmt.Sprintf(`{"data": [%s], "meta": {"total": 1, "per_page": 100, "current_page": 1, "last_page": 1}}`, validJob))

	page, err := s.newClient("secret").FetchPage(context.Background(), 1, 0)

	s.Require().NoError(err)
	s.Equal(1, page.TotalPages)
	s.Equal(1, page.TotalCount)
	s.Equal(100, page.PerPage)
	s.Require().Len(page.Jobs, 1)

	job := page.Jobs[0]
	s.Equal(int64(1001), job.ID)
	s.Equal("Senior Product Manager", job.Name)
	s.Equal("Full Time", job.JobType.Name)
	s.Equal([]string{"Product Management", "Fintech"}, job.Skills)
	s.Equal("London", job.Locations[0].City)
	s.Equal(int64(789), job.Company.ID)
	s.Require().NotNil(job.Salary)
	s.Equal("GBP", job.Salary.Currency)
	s.Equal(2024, job.CreatedAt.Year())
	s.JSONEq(validJob, string(job.Raw))

	s.Equal("/jobs", s.last().URL.Path)
	s.Equal("1", s.last().URL.Query().Get("page"))
	s.Equal("100", s.last().URL.Query().Get("per_page"))
	s.Equal("Bearer secret", s.last().Header.Get("Authorization"))
}

func (s *ClientTestSuite) TestFetchPage_XAPIKeyScheme() {
	s.respond(http.StatusOK, `{"data": [], "meta": {"total": 0, "per_page": 10, "current_page": 1, "last_page": 1}}`)

	client := New(Config{BaseURL: s.server.URL, APIKey: "secret", AuthScheme: "X-API-KEY"}, s.logger)
	_, err := client.FetchPage(context.Background(), 1, 10)

	s.Require().NoError(err)
	s.Equal("secret", s.last().Header.Get("X-API-KEY"))
	s.Empty(s.last().Header.Get("Authorization"))
}

func (s *ClientTestSuite) TestCredentialPrecondition() {
	for _, key := range []string{"", "  ", InvalidAPIKey} {
		client := s.newClient(key)
		ctx := context.Background()

		_, err := client.FetchPage(ctx, 1, 100)
		var authErr *domain.AuthenticationError
		s.ErrorAs(err, &authErr, "key %q", key)

		_, err = client.ListJobTypes(ctx)
		s.ErrorAs(err, &authErr)

		_, err = client.ListLocations(ctx)
		s.ErrorAs(err, &authErr)

		s.ErrorAs(client.TestConnection(ctx), &authErr)
	}

	s.Equal(int32(0), s.requests.Load())
}

func (s *ClientTestSuite) TestFetchPage_RemoteError() {
	s.respond(http.StatusUnauthorized, `{"message": "Token is expired"}`)

	_, err := s.newClient("secret").FetchPage(context.Background(), 1, 100)

	var remoteErr *domain.RemoteServiceError
	s.Require().ErrorAs(err, &remoteErr)
	s.Equal(http.StatusUnauthorized, remoteErr.StatusCode)
	s.Equal("Token is expired", remoteErr.Message)
	s.Contains(err.Error(), "Token is expired")
}

func (s *ClientTestSuite) TestFetchPage_RemoteErrorWithoutBody() {
	s.respond(http.StatusBadGateway, `<html>bad gateway</html>`)

	_, err := s.newClient("secret").FetchPage(context.Background(), 1, 100)

	var remoteErr *domain.RemoteServiceError
	s.Require().ErrorAs(err, &remoteErr)
	s.Empty(remoteErr.Message)
	s.Contains(remoteErr.Status, "502")
}

func (s *ClientTestSuite) TestFetchPage_Timeout() {
	s.setHandler(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client := New(Config{BaseURL: s.server.URL, APIKey: "secret", Timeout: 50 * time.Millisecond}, s.logger)
	_, err := client.FetchPage(context.Background(), 1, 100)

	var timeoutErr *domain.TimeoutError
	s.ErrorAs(err, &timeoutErr)
	var remoteErr *domain.RemoteServiceError
	s.False(errors.As(err, &remoteErr))
}

func (s *ClientTestSuite) TestFetchPage_RetriesTemporaryFailures() {
	s.setHandler(func(w http.ResponseWriter, r *http.Request) {
		if s.requests.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data": [], "meta": {"total": 0, "per_page": 100, "current_page": 1, "last_page": 1}}`))
	})

	client := New(Config{
		BaseURL:        s.server.URL,
		APIKey:         "secret",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, s.logger)

	page, err := client.FetchPage(context.Background(), 1, 100)

	s.Require().NoError(err)
	s.Empty(page.Jobs)
	s.Equal(int32(3), s.requests.Load())
}

func (s *ClientTestSuite) TestFetchPage_DoesNotRetryClientErrors() {
	s.respond(http.StatusForbidden, `{"message": "forbidden"}`)

	client := New(Config{BaseURL: s.server.URL, APIKey: "secret", MaxAttempts: 3, InitialBackoff: time.Millisecond}, s.logger)
	_, err := client.FetchPage(context.Background(), 1, 100)

	s.Error(err)
	s.Equal(int32(1), s.requests.Load())
}

func (s *ClientTestSuite) TestFetchPage_MalformedRecordFailsWholePage() {
	bad := `{"id": "abc", "slug": "x", "name": "x", "status": "active",
		"job_type": {"id": 1}, "locations": [], "skills": [],
		"created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z",
		"company": {"id": 1, "name": "x"}}`
	s.respond(http.StatusOK, fmt.Sprintf(`{"data": [%s, %s], "meta": {"total": 2, "per_page": 100, "current_page": 1, "last_page": 1}}`, validJob, bad))

	page, err := s.newClient("secret").FetchPage(context.Background(), 1, 100)

	s.Nil(page)
	var schemaErr *domain.SchemaValidationError
	s.Require().ErrorAs(err, &schemaErr)

	fields := make([]string, 0, len(schemaErr.Violations))
	for _, v := range schemaErr.Violations {
		fields = append(fields, v.Field)
	}
	s.ElementsMatch([]string{"data[1].id", "data[1].description", "data[1].job_type.name"}, fields)
}

func (s *ClientTestSuite) TestFetchPage_MissingMeta() {
	s.respond(http.StatusOK, `{"data": []}`)

	_, err := s.newClient("secret").FetchPage(context.Background(), 1, 100)

	var schemaErr *domain.SchemaValidationError
	s.Require().ErrorAs(err, &schemaErr)
	s.Equal("meta", schemaErr.Violations[0].Field)
}

func (s *ClientTestSuite) TestFetchPage_InvalidMeta() {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "empty meta with records",
			body:  fmt.Sprintf(`{"data": [%s], "meta": {}}`, validJob),
			field: "meta.last_page",
		},
		{
			name:  "last page zero with records",
			body:  fmt.Sprintf(`{"data": [%s], "meta": {"total": 1, "per_page": 100, "current_page": 1, "last_page": 0}}`, validJob),
			field: "meta.last_page",
		},
		{
			name:  "last page not an integer",
			body:  `{"data": [], "meta": {"total": 0, "per_page": 100, "current_page": 1, "last_page": "2"}}`,
			field: "meta.last_page",
		},
		{
			name:  "meta not an object",
			body:  `{"data": [], "meta": [1]}`,
			field: "meta",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.respond(http.StatusOK, tt.body)

			_, err := s.newClient("secret").FetchPage(context.Background(), 1, 100)

			var schemaErr *domain.SchemaValidationError
			s.Require().ErrorAs(err, &schemaErr)
			fields := make([]string, 0, len(schemaErr.Violations))
			for _, v := range schemaErr.Violations {
				fields = append(fields, v.Field)
			}
			s.Contains(fields, tt.field)
		})
	}
}

func (s *ClientTestSuite) TestFetchPage_EmptyLastPageZero() {
	s.respond(http.StatusOK, `{"data": [], "meta": {"total": 0, "per_page": 100, "current_page": 1, "last_page": 0}}`)

	page, err := s.newClient("secret").FetchPage(context.Background(), 1, 100)

	s.Require().NoError(err)
	s.Empty(page.Jobs)
	s.Equal(0, page.TotalPages)
}

func (s *ClientTestSuite) TestFetchPage_RejectsPageZero() {
	_, err := s.newClient("secret").FetchPage(context.Background(), 0, 100)

	s.ErrorIs(err, domain.ErrInvalidPageRequest)
	s.Equal(int32(0), s.requests.Load())
}

func (s *ClientTestSuite) TestListJobTypes() {
	s.respond(http.StatusOK, `{"data": [{"id": 1, "name": "Full Time"}, {"id": 2, "name": "Contract"}]}`)

	types, err := s.newClient("secret").ListJobTypes(context.Background())

	s.Require().NoError(err)
	s.Equal([]domain.JobType{{ID: 1, Name: "Full Time"}, {ID: 2, Name: "Contract"}}, types)
	s.Equal("/job-types", s.last().URL.Path)
}

func (s *ClientTestSuite) TestListLocations() {
	s.respond(http.StatusOK, `{"data": [{"city": "Berlin", "country": "Germany"}]}`)

	locations, err := s.newClient("secret").ListLocations(context.Background())

	s.Require().NoError(err)
	s.Require().Len(locations, 1)
	s.Equal("Berlin", locations[0].City)
	s.Nil(locations[0].State)
}

func (s *ClientTestSuite) TestTestConnection() {
	s.respond(http.StatusOK, `{"data": [], "meta": {"total": 0, "per_page": 1, "current_page": 1, "last_page": 1}}`)

	err := s.newClient("secret").TestConnection(context.Background())

	s.NoError(err)
	s.Equal("1", s.last().URL.Query().Get("per_page"))
}

func TestValidateJob(t *testing.T) {
	job, err := ValidateJob([]byte(validJob))
	if err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
	if job.Company.LogoURL == nil || !strings.HasSuffix(*job.Company.LogoURL, "paytech.png") {
		t.Fatalf("logo url not decoded: %+v", job.Company)
	}

	_, err = ValidateJob([]byte(`[1, 2]`))
	if err == nil || !strings.Contains(err.Error(), "record must be an object") {
		t.Fatalf("expected object violation, got %v", err)
	}
}
