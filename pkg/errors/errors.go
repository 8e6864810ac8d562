package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Map editing errors
	ErrorTypeInvalidReference ErrorType = "INVALID_REFERENCE"
	ErrorTypeRootProtected    ErrorType = "ROOT_PROTECTED"

	// Collaborator errors
	ErrorTypeMalformedPayload ErrorType = "MALFORMED_PAYLOAD"
	ErrorTypeExternal         ErrorType = "EXTERNAL"

	// Application errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeInternal   ErrorType = "INTERNAL"
	ErrorTypeTimeout    ErrorType = "TIMEOUT"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// callerStack records the frames above the error constructor
func callerStack() string {
	var pcs [32]uintptr
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs[:])])

	var b strings.Builder
	for frame, more := frames.Next(); ; frame, more = frames.Next() {
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			return b.String()
		}
	}
}

func newError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: callerStack(),
	}
}

// Constructor functions for common error types

// NewInvalidReferenceError reports a mutation naming an unknown node id
func NewInvalidReferenceError(nodeID string) *AppError {
	return newError(ErrorTypeInvalidReference, http.StatusNotFound,
		fmt.Sprintf("node '%s' does not exist in the map", nodeID)).
		WithDetail("nodeId", nodeID)
}

// NewRootProtectedError reports a refused deletion of the root or the last node
func NewRootProtectedError(nodeID, reason string) *AppError {
	return newError(ErrorTypeRootProtected, http.StatusUnprocessableEntity,
		fmt.Sprintf("node '%s' cannot be deleted: %s", nodeID, reason)).
		WithDetail("nodeId", nodeID)
}

// NewMalformedPayloadError reports a collaborator payload of the wrong shape
func NewMalformedPayloadError(what string, err error) *AppError {
	return newError(ErrorTypeMalformedPayload, http.StatusBadGateway,
		fmt.Sprintf("malformed %s payload", what)).WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service)).WithCause(err)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout,
		fmt.Sprintf("operation '%s' timed out", operation))
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsInvalidReference checks if an error names an unknown node
func IsInvalidReference(err error) bool {
	return IsType(err, ErrorTypeInvalidReference)
}

// IsRootProtected checks if an error is a refused root deletion
func IsRootProtected(err error) bool {
	return IsType(err, ErrorTypeRootProtected)
}

// IsMalformedPayload checks if an error is a malformed collaborator payload
func IsMalformedPayload(err error) bool {
	return IsType(err, ErrorTypeMalformedPayload)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// AppErrors keep their type; the prefix goes on a copy
	if appErr := GetAppError(err); appErr != nil {
		wrapped := *appErr
		wrapped.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		if appErr.Details != nil {
			wrapped.Details = make(map[string]interface{}, len(appErr.Details))
			for k, v := range appErr.Details {
				wrapped.Details[k] = v
			}
		}
		return &wrapped
	}

	return NewInternalError(message).WithCause(err)
}

// HTTPStatusOf returns the HTTP status carried by err, 500 for foreign errors
func HTTPStatusOf(err error) int {
	if appErr := GetAppError(err); appErr != nil && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
