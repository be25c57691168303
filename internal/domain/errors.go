package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Matching errors (MATCH_*)
	ErrorCodeMatchNoCriteria ErrorCode = "MATCH_NO_CRITERIA"
	ErrorCodeMatchBelowFloor ErrorCode = "MATCH_BELOW_CONFIDENCE_FLOOR"

	// Dispute case errors (CASE_*)
	ErrorCodeCaseNotFound      ErrorCode = "CASE_NOT_FOUND"
	ErrorCodeCaseDuplicate     ErrorCode = "CASE_DUPLICATE_EXTERNAL_ID"
	ErrorCodeCaseStatusInvalid ErrorCode = "CASE_STATUS_INVALID"
	ErrorCodeCaseRegression    ErrorCode = "CASE_STATUS_REGRESSION"

	// Stay record errors (STAY_*)
	ErrorCodeStayNotFound ErrorCode = "STAY_NOT_FOUND"

	// Evidence errors (EVIDENCE_*)
	ErrorCodeEvidenceExists       ErrorCode = "EVIDENCE_ALREADY_COLLECTED"
	ErrorCodeEvidenceStoreFailed  ErrorCode = "EVIDENCE_STORE_FAILED"
	ErrorCodeEvidenceFetchFailed  ErrorCode = "EVIDENCE_FETCH_FAILED"
	ErrorCodeEvidenceNotAvailable ErrorCode = "EVIDENCE_NOT_AVAILABLE"

	// Sync / adapter errors (SYNC_*, ADAPTER_*)
	ErrorCodeSyncSkipped             ErrorCode = "SYNC_SKIPPED"
	ErrorCodeAdapterUnsupported      ErrorCode = "ADAPTER_UNSUPPORTED_SOURCE"
	ErrorCodeAdapterTimeout          ErrorCode = "ADAPTER_TIMEOUT"
	ErrorCodeAdapterUnavailable      ErrorCode = "ADAPTER_UNAVAILABLE"
	ErrorCodeAdapterInvalidSignature ErrorCode = "ADAPTER_INVALID_SIGNATURE"
	ErrorCodeAdapterBadPayload       ErrorCode = "ADAPTER_BAD_PAYLOAD"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
	ErrorCodeStorageError  ErrorCode = "INTERNAL_STORAGE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string
// if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition.
// Not-found outcomes are terminal success states for the pipeline, never
// retried.
func IsNotFoundError(err error) bool {
	if errors.Is(err, ErrStayRecordNotFound) ||
		errors.Is(err, ErrDisputeCaseNotFound) ||
		errors.Is(err, ErrEvidenceItemNotFound) ||
		errors.Is(err, ErrGuestProfileNotFound) {
		return true
	}
	code := GetErrorCode(err)
	return code == ErrorCodeCaseNotFound ||
		code == ErrorCodeStayNotFound ||
		code == ErrorCodeEvidenceNotAvailable
}

// IsRetryable checks if an error represents a transient infrastructure
// failure worth re-delivering through the job transport
func IsRetryable(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAdapterTimeout ||
		code == ErrorCodeAdapterUnavailable ||
		code == ErrorCodeDatabaseError ||
		code == ErrorCodeStorageError
}

// IsConfigError checks if an error is a programmer/config error that should
// surface as a skipped job rather than a retried failure
func IsConfigError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAdapterUnsupported ||
		code == ErrorCodeSyncSkipped
}

// Common domain errors
var (
	// Stay record errors
	ErrStayRecordNotFound = errors.New("stay record not found")

	// Dispute case errors
	ErrDisputeCaseNotFound   = errors.New("dispute case not found")
	ErrDuplicateExternalID   = errors.New("dispute case with external dispute id already exists")
	ErrInvalidDisputeStatus  = errors.New("invalid dispute status")
	ErrStatusRegression      = errors.New("incoming status is earlier than current status")

	// Evidence errors
	ErrEvidenceItemNotFound = errors.New("evidence item not found")
	ErrEvidenceExists       = errors.New("evidence item already collected for this type")

	// Guest profile errors
	ErrGuestProfileNotFound = errors.New("guest profile not found")

	// Adapter errors
	ErrUnsupportedSourceSystem = errors.New("unsupported source system")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrAdapterTimeout          = errors.New("adapter request timed out")
	ErrAdapterUnavailable      = errors.New("adapter is unavailable")
)
