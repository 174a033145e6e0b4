package services

import (
	"errors"
	"fmt"
)

// ============================================================================
// ERROR TAXONOMY
// ============================================================================

// ValidationError rejects a malformed request or product line.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DataUnavailableError means a collaborator returned nothing usable. It is
// recovered locally and recorded as a data limitation.
type DataUnavailableError struct {
	Source string
	Reason string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Source, e.Reason)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// ExternalServiceError is a failed collaborator call. Retryable errors are
// retried with backoff before being downgraded to DataUnavailableError.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ComputationError fails a single product pipeline.
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed during %s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

var (
	ErrEmptyProductList = &ValidationError{Field: "products", Message: "at least one product is required"}
	ErrNoPriceData      = errors.New("no price data")
)

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return ext.Retryable
	}
	return false
}
