package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCommunityNotFound  = errors.New("community not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrIntegrationOff     = errors.New("recruitcrm integration disabled for community")
	ErrTooManyPages       = errors.New("remote source exceeded page limit")
	ErrInvalidPageRequest = errors.New("invalid page request")
)

// AuthenticationError is returned before any network call when the
// configured credential is missing or known to be invalid.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication: " + e.Reason
}

// RemoteServiceError is a non-success HTTP response from the source.
type RemoteServiceError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *RemoteServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote service error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote service error (%d): %s", e.StatusCode, e.Status)
}

// Temporary reports whether the upstream failure is worth retrying.
func (e *RemoteServiceError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// SchemaValidationError lists every field of a payload that did not
// match the expected shape.
type SchemaValidationError struct {
	Violations []FieldViolation
}

type FieldViolation struct {
	Field   string
	Problem string
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + " " + v.Problem
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

func (e *SchemaValidationError) Add(field, problem string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Problem: problem})
}

// OrNil returns e when it holds violations, else nil.
func (e *SchemaValidationError) OrNil() error {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}
	return e
}

// RecordSyncError is the non-fatal failure of a single record.
type RecordSyncError struct {
	RecordID   int64
	ExternalID string
	Err        error
}

func (e *RecordSyncError) Error() string {
	return fmt.Sprintf("sync record %d: %v", e.RecordID, e.Err)
}

func (e *RecordSyncError) Unwrap() error { return e.Err }

func (e *RecordSyncError) Record() RecordError {
	return RecordError{RecordID: e.RecordID, Message: e.Err.Error()}
}

// SyncFailedError is what callers see when a run aborts.
type SyncFailedError struct {
	CommunityID string
	Err         error
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("failed to sync jobs for community %s: %v", e.CommunityID, e.Err)
}

func (e *SyncFailedError) Unwrap() error { return e.Err }

// UserMessage is safe to show to end users.
func (e *SyncFailedError) UserMessage() string {
	return "The job board integration could not be refreshed this cycle. Please try again later."
}
