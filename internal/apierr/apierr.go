// Package apierr holds the errors handlers raise to produce a structured
// failure envelope.
package apierr

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/radif/envelope/internal/response"
)

// ErrUnauthorized marks an error as an unauthorized access attempt. Wrap it to
// get a 401 envelope.
var ErrUnauthorized = errors.New("unauthorized access")

// Error is an intentional, API-facing failure. The translator sends its
// message, status and validation errors to the caller unchanged.
type Error struct {
	Message               string
	StatusCode            int
	Errors                []response.ValidationError
	ReferenceErrorCode    string
	ReferenceDocumentLink string
}

// Option customizes an Error.
type Option func(*Error)

// New returns an Error with the given message and status. A zero status means 500.
func New(message string, statusCode int, opts ...Option) *Error {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	e := &Error{Message: message, StatusCode: statusCode}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithValidation appends a validation error.
func WithValidation(field, message string) Option {
	return func(e *Error) {
		e.Errors = append(e.Errors, response.NewValidationError(field, message))
	}
}

// WithErrors appends validation errors.
func WithErrors(errs ...response.ValidationError) Option {
	return func(e *Error) {
		e.Errors = append(e.Errors, errs...)
	}
}

// WithReference sets the reference code and documentation link.
func WithReference(code, link string) Option {
	return func(e *Error) {
		e.ReferenceErrorCode = code
		e.ReferenceDocumentLink = link
	}
}

func (e *Error) Error() string {
	return e.Message
}

// APIError converts e into its wire form.
func (e *Error) APIError() *response.APIError {
	return response.NewAPIError(e.Message).
		WithValidation(e.Errors).
		WithReference(e.ReferenceErrorCode, e.ReferenceDocumentLink)
}

// NotFound returns a 404 Error.
func NotFound(message string, opts ...Option) *Error {
	return New(message, http.StatusNotFound, opts...)
}

// BadRequest returns a 400 Error.
func BadRequest(message string, opts ...Option) *Error {
	return New(message, http.StatusBadRequest, opts...)
}

// Unauthorized wraps ErrUnauthorized with a reason for the server log.
func Unauthorized(reason string) error {
	return errors.Wrap(ErrUnauthorized, reason)
}
