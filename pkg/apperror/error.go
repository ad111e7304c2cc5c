// Package apperror defines the errors surfaced to HTTP clients and the
// echo error handler that renders them.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error is an application error carrying the HTTP status and a stable code
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches another *Error by code, so errors.Is(err, ErrNotFound) holds for
// any copy produced by WithMessage or WithInternal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.HTTPStatus == t.HTTPStatus
}

// ToEchoError converts the error to an echo.HTTPError
func (e *Error) ToEchoError() *echo.HTTPError {
	return echo.NewHTTPError(e.HTTPStatus, map[string]any{"error": e.body()})
}

func (e *Error) body() map[string]any {
	body := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return body
}

// WithInternal returns a copy with the underlying cause attached
func (e *Error) WithInternal(err error) *Error {
	cp := *e
	cp.Internal = err
	return &cp
}

// WithMessage returns a copy with a client-facing message
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

// WithDetails returns a copy with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	ErrNotFound = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrConflict = New(http.StatusConflict, "conflict", "Resource already exists")

	ErrBadRequest   = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrInvalidInput = New(http.StatusBadRequest, "invalid_input", "Invalid input")

	// ErrDependencyUnavailable is returned when a required collaborator
	// (queue, bucket) is not configured or cannot be resolved.
	ErrDependencyUnavailable = New(http.StatusNotFound, "dependency_unavailable", "Dependency unavailable")
	// ErrDependencyFailed is returned when a collaborator was reachable but
	// the operation against it failed.
	ErrDependencyFailed = New(http.StatusInternalServerError, "dependency_unavailable", "Dependency operation failed")

	ErrInternal = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase = New(http.StatusInternalServerError, "database_error", "Database operation failed")
)

// ToHTTPError maps any error to a status code and response body.
// Errors that are not *Error become a generic 500.
func ToHTTPError(err error) (int, map[string]any) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, map[string]any{"error": appErr.body()}
	}
	return ErrInternal.HTTPStatus, map[string]any{"error": ErrInternal.body()}
}

func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewInvalidInput reports a rejected field value
func NewInvalidInput(field, message string) *Error {
	return ErrInvalidInput.WithMessage(message).WithDetails(map[string]any{"field": field})
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewDependencyUnavailable names the missing collaborator, e.g. "Queue not found"
func NewDependencyUnavailable(message string, err error) *Error {
	return ErrDependencyUnavailable.WithMessage(message).WithInternal(err)
}

func NewDependencyFailed(message string, err error) *Error {
	return ErrDependencyFailed.WithMessage(message).WithInternal(err)
}

func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}
