// Package errors defines the typed API errors rendered by pkg/response.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes carried in error bodies.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyResolved     = "ALREADY_RESOLVED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
	CodeUploadFailed        = "UPLOAD_FAILED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

// Error is a domain error that knows its HTTP status.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code, so a clone or wrapper compares equal to its template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs wraps err with the code and status of template.
func WrapAs(err error, template *Error, message string) *Error {
	if message == "" {
		message = template.Message
	}
	return Wrap(err, template.Code, template.Status, message)
}

var (
	ErrValidation          = New(CodeValidation, http.StatusBadRequest, "validation failed")
	ErrUnauthorized        = New(CodeUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrForbidden           = New(CodeForbidden, http.StatusForbidden, "forbidden")
	ErrNotFound            = New(CodeNotFound, http.StatusNotFound, "resource not found")
	ErrAlreadyResolved     = New(CodeAlreadyResolved, http.StatusConflict, "request already resolved")
	ErrRateLimited         = New(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded")
	ErrInternal            = New(CodeInternal, http.StatusInternalServerError, "internal server error")
	ErrUploadFailed        = New(CodeUploadFailed, http.StatusBadGateway, "failed to store approved document")
	ErrUpstreamUnavailable = New(CodeUpstreamUnavailable, http.StatusServiceUnavailable, "upstream unavailable")
)

// FromError normalises any error into an *Error; unknown errors become ErrInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapAs(err, ErrInternal, "")
}

// Clone copies err, replacing the message when one is given.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
