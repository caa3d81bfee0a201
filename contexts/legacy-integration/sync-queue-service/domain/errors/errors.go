package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrItemNotFound           = errors.New("queue item not found")
	ErrItemNotFailed          = errors.New("queue item is not in failed state")
	ErrInvalidTransition      = errors.New("queue item status transition not allowed")
	ErrClaimLost              = errors.New("queue item claim no longer held by this worker")
	ErrUnknownEntity          = errors.New("entity type has no sync config")
	ErrLegacyObjectNotFound   = errors.New("legacy object not found")
	ErrMissingLegacyReference = errors.New("legacy reference not yet available")
	ErrInvalidProcessAction   = errors.New("unsupported processor action")
)

// ValidationError rejects malformed enqueue input. It is returned to the
// caller synchronously and nothing is queued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func NewValidationError(field string, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransientNetworkError reports that the legacy platform could not be reached.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("legacy platform unreachable during %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// LegacyAPIError reports that the legacy platform answered but rejected the call.
type LegacyAPIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *LegacyAPIError) Error() string {
	return fmt.Sprintf("legacy platform rejected %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// ReconciliationError wraps a failed write of canonical state into the primary database.
type ReconciliationError struct {
	Target   string
	RecordID string
	Err      error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s/%s: %v", e.Target, e.RecordID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// StaleClaimError records that a worker abandoned an item mid-processing.
// It is only ever logged by the staleness sweep.
type StaleClaimError struct {
	ItemID    string
	ClaimedBy string
	ClaimedAt time.Time
}

func (e *StaleClaimError) Error() string {
	return fmt.Sprintf("stale claim on item %s by %s since %s", e.ItemID, e.ClaimedBy, e.ClaimedAt.UTC().Format(time.RFC3339))
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
