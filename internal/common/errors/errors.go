// Package errors provides the standardized error taxonomy of the onboarding flow.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Flow errors surfaced to the user.
const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeStructuralInvalid  ErrorCode = "STRUCTURAL_INVALID"
	ErrCodeUniquenessConflict ErrorCode = "UNIQUENESS_CONFLICT"
	ErrCodePersistenceFailed  ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeNavigationInvalid  ErrorCode = "NAVIGATION_INVALID"
)

// Infrastructure and API errors.
const (
	ErrCodeCacheUnavailable  ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeCatalogInvalid    ErrorCode = "CATALOG_INVALID"
	ErrCodeFlowNotFound      ErrorCode = "FLOW_NOT_FOUND"
	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodeDatabaseFailed    ErrorCode = "DATABASE_FAILED"
	ErrCodeExternalService   ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Field     string                 `json:"field,omitempty"`
	SubErrors map[string]string      `json:"subErrors,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("StandardError[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches another StandardError by code, so errors.Is works with sentinels.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if stderrors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a local, non-retryable required/rule failure.
func NewValidationError(field, message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Field:     field,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStructuralError creates a composite-answer failure carrying one message per subfield.
func NewStructuralError(field string, subErrors map[string]string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStructuralInvalid,
		Message:   "Some fields are incomplete",
		Field:     field,
		SubErrors: subErrors,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError creates a remote uniqueness decline; editing the value and retrying is allowed.
func NewConflictError(field, message string) *StandardError {
	if message == "" {
		message = "This value is already registered"
	}
	return &StandardError{
		Code:      ErrCodeUniquenessConflict,
		Message:   message,
		Field:     field,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError creates a retryable completion save failure.
func NewPersistenceError(field, message string, err error) *StandardError {
	if message == "" {
		message = "We could not save your answers, please try again"
	}
	stdErr := &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   message,
		Field:     field,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		stdErr.Details = err.Error()
	}
	return stdErr
}

// NewNavigationError creates an internal error for an unresolvable position.
func NewNavigationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNavigationInvalid,
		Message:   "The requested question is not available",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable durable cache failure.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Durable cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogInvalidError creates a non-retryable catalog misconfiguration error.
func NewCatalogInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogInvalid,
		Message:   "Question catalog is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewFlowNotFoundError(flowType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFlowNotFound,
		Message:   "Unknown flow",
		Details:   fmt.Sprintf("flowType: %s", flowType),
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseFailed,
		Message:   "Database error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service %s failed", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard extracts a StandardError from err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeUniquenessConflict, ErrCodePersistenceFailed, ErrCodeCacheUnavailable,
		ErrCodeDatabaseFailed, ErrCodeExternalService:
		return true
	}
	return false
}

// GetErrorCategory returns where an error originates: local, remote or internal.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeStructuralInvalid:
		return "local"
	case ErrCodeUniquenessConflict, ErrCodePersistenceFailed, ErrCodeExternalService:
		return "remote"
	case ErrCodeInvalidRequest, ErrCodeFlowNotFound, ErrCodeSessionNotFound:
		return "client"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error code to the status the REST layer answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeStructuralInvalid:
		return http.StatusUnprocessableEntity
	case ErrCodeUniquenessConflict:
		return http.StatusConflict
	case ErrCodeInvalidRequest, ErrCodeNavigationInvalid:
		return http.StatusBadRequest
	case ErrCodeFlowNotFound, ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodePersistenceFailed, ErrCodeExternalService:
		return http.StatusBadGateway
	case ErrCodeCacheUnavailable, ErrCodeDatabaseFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
