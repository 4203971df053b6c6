// Package response defines the uniform API envelope and the JSON writers
// handlers use to emit it.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Version is the envelope schema version sent with every response.
const Version = "1.0.0.0"

// Outcome labels carried in Envelope.Message.
const (
	MessageSuccess   = "Request successful."
	MessageFailure   = "Unable to process the request."
	MessageException = "Request responded with exceptions."
)

// ContentTypeJSON is the content type written with every envelope.
const ContentTypeJSON = "application/json; charset=utf-8"

// Envelope is the standard API response envelope.
type Envelope struct {
	StatusCode        int       `json:"statusCode"`
	Message           string    `json:"message"`
	Result            any       `json:"result"`
	ResponseException *APIError `json:"responseException"`
	Version           string    `json:"version"`
}

// APIError describes a failed request inside an Envelope.
type APIError struct {
	IsError               bool              `json:"isError"`
	ExceptionMessage      string            `json:"exceptionMessage"`
	ValidationErrors      []ValidationError `json:"validationErrors"`
	ReferenceErrorCode    *string           `json:"referenceErrorCode"`
	ReferenceDocumentLink *string           `json:"referenceDocumentLink"`
	Details               *string           `json:"details,omitempty"`
}

// ValidationError is a single field-level (or, with an empty Field,
// request-level) validation failure.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// NewAPIError returns an APIError with an empty validation list.
func NewAPIError(message string) *APIError {
	return &APIError{
		IsError:          true,
		ExceptionMessage: message,
		ValidationErrors: []ValidationError{},
	}
}

// WithValidation replaces the validation errors. A nil slice is stored as empty
// so the wire form is always a list.
func (e *APIError) WithValidation(errs []ValidationError) *APIError {
	if errs == nil {
		errs = []ValidationError{}
	}
	e.ValidationErrors = errs
	return e
}

// WithReference sets the documentation reference code and link. Empty values
// are sent as null.
func (e *APIError) WithReference(code, link string) *APIError {
	e.ReferenceErrorCode = optional(code)
	e.ReferenceDocumentLink = optional(link)
	return e
}

// WithDetails sets diagnostic details. Empty details are omitted.
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = optional(details)
	return e
}

// Success wraps result in a success envelope.
func Success(status int, result any) Envelope {
	return Envelope{StatusCode: status, Message: MessageSuccess, Result: result, Version: Version}
}

// Failure wraps apiErr in a failure envelope with a null result.
func Failure(status int, apiErr *APIError) Envelope {
	return Envelope{StatusCode: status, Message: MessageFailure, ResponseException: apiErr, Version: Version}
}

// Exception wraps apiErr in the envelope produced for raised errors.
func Exception(status int, apiErr *APIError) Envelope {
	return Envelope{StatusCode: status, Message: MessageException, ResponseException: apiErr, Version: Version}
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("response: encode payload", "error", err)
	}
}

// Write writes env using its own status code.
func Write(w http.ResponseWriter, env Envelope) {
	JSON(w, env.StatusCode, env)
}

// OK writes a 200 response with data. The envelope is added on the way out.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response with data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a status with no body.
func NoContent(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// Text writes a plain text body.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
