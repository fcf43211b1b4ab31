// Package errors provides the error taxonomy shared by the HTTP surface and the job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"

	ErrCodeQuotaExceeded    ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeQuotaUnavailable ErrorCode = "QUOTA_UNAVAILABLE"

	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeNotificationConflict ErrorCode = "NOTIFICATION_CONFLICT"
	ErrCodeDispatchInProgress   ErrorCode = "DISPATCH_IN_PROGRESS"
	ErrCodeDispatchFailed       ErrorCode = "DISPATCH_FAILED"
	ErrCodeLockUnavailable      ErrorCode = "LOCK_UNAVAILABLE"

	ErrCodeModerationNotConfigured ErrorCode = "MODERATION_NOT_CONFIGURED"
	ErrCodeModerationUnavailable   ErrorCode = "MODERATION_UNAVAILABLE"
	ErrCodeModerationMalformed     ErrorCode = "MODERATION_MALFORMED"

	ErrCodeDatabaseQueryFailed ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeSubscriptionInvalid ErrorCode = "SUBSCRIPTION_INVALID"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError carries field-level messages in Metadata["fields"].
func NewValidationError(fields map[string]string) *StandardError {
	parts := make([]string, 0, len(fields))
	for f, msg := range fields {
		parts = append(parts, f+": "+msg)
	}
	return newError(ErrCodeValidationFailed, "Validation failed", strings.Join(parts, "; "), false).
		WithMetadata("fields", fields)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Actor is not an owner or admin of the organization", details, false)
}

// NewQuotaExceededError attaches the quota snapshot so callers can show when it resets.
func NewQuotaExceededError(organizationID string, snapshot interface{}) *StandardError {
	return newError(ErrCodeQuotaExceeded, "Notification limit reached",
		fmt.Sprintf("organizationId: %s", organizationID), false).
		WithMetadata("quota", snapshot)
}

func NewQuotaUnavailableError(organizationID string, err error) *StandardError {
	return newError(ErrCodeQuotaUnavailable, "Organization quota record could not be loaded or created",
		fmt.Sprintf("organizationId: %s, error: %v", organizationID, err), false)
}

func NewNotificationNotFoundError(notificationID string) *StandardError {
	return newError(ErrCodeNotificationNotFound, "Notification not found",
		fmt.Sprintf("notificationId: %s", notificationID), false)
}

func NewNotificationConflictError(notificationID, status string) *StandardError {
	return newError(ErrCodeNotificationConflict, "Notification cannot change state",
		fmt.Sprintf("notificationId: %s, status: %s", notificationID, status), false)
}

func NewDispatchInProgressError(details string) *StandardError {
	return newError(ErrCodeDispatchInProgress, "A dispatch is already running", details, false)
}

func NewDispatchFailedError(notificationID string, err error) *StandardError {
	return newError(ErrCodeDispatchFailed, "Dispatch could not complete",
		fmt.Sprintf("notificationId: %s, error: %v", notificationID, err), true)
}

func NewLockUnavailableError(err error) *StandardError {
	return newError(ErrCodeLockUnavailable, "Dispatch lock service unavailable", err.Error(), true)
}

func NewModerationNotConfiguredError(details string) *StandardError {
	return newError(ErrCodeModerationNotConfigured, "Content moderation service is not configured", details, false)
}

func NewModerationUnavailableError(err error) *StandardError {
	return newError(ErrCodeModerationUnavailable, "Content moderation service call failed", err.Error(), true)
}

func NewModerationMalformedError(details string) *StandardError {
	return newError(ErrCodeModerationMalformed, "Content moderation response was not a valid verdict", details, false)
}

func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true)
}

func NewSubscriptionInvalidError(details string) *StandardError {
	return newError(ErrCodeSubscriptionInvalid, "Push subscription is invalid", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Inspection helpers
// ==========================

// As returns the StandardError in err's chain, if any.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// Normalize converts any error into a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps an error code to the response status of the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeSubscriptionInvalid:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotificationNotFound:
		return http.StatusNotFound
	case ErrCodeNotificationConflict, ErrCodeDispatchInProgress:
		return http.StatusConflict
	case ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case ErrCodeModerationUnavailable, ErrCodeLockUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeModerationMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseQueryFailed,
		ErrCodeModerationUnavailable,
		ErrCodeLockUnavailable:
		return 3

	case ErrCodeDispatchFailed:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if q, ok := stdErr.Metadata["quota"]; ok {
		vars["quota"] = q
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "QUOTA"):
		return "QUOTA"
	case strings.HasPrefix(codeStr, "MODERATION"):
		return "MODERATION"
	case strings.HasPrefix(codeStr, "NOTIFICATION") || strings.HasPrefix(codeStr, "DISPATCH") || codeStr == string(ErrCodeLockUnavailable):
		return "DISPATCH"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case codeStr == string(ErrCodeAuthentication) || codeStr == string(ErrCodeForbidden):
		return "AUTH"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}
