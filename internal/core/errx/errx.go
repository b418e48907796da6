package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable reason codes surfaced in the JSON error envelope. The
// widget renders a canned message per code, so these are part of the API.
const (
	CodeBadRequest     = "bad_request"
	CodeUnauthorized   = "unauthorized"
	CodeOriginDenied   = "origin_forbidden"
	CodeBotNotFound    = "bot_not_found"
	CodeRateLimited    = "rate_limited"
	CodeBudgetExceeded = "budget_exceeded"
	CodeUpstream       = "upstream_error"
	CodeInternal       = "internal_error"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// StoreErrorMessage describes key-value store related failures.
	StoreErrorMessage = "store operation failed"
	// UpstreamErrorMessage is returned when the inference service fails.
	UpstreamErrorMessage = "the assistant is temporarily unavailable, please try again"
)

// AppError wraps an underlying error with an HTTP status, a reason code and
// a message that is safe to show to the end user.
type AppError struct {
	Err     error
	Status  int
	Code    string
	Message string

	// RetryAfter, when > 0, is surfaced as the Retry-After header in seconds.
	RetryAfter int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, code, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Retryable attaches a Retry-After hint, for rate limit and budget rejections.
func (e *AppError) Retryable(seconds int) *AppError {
	e.RetryAfter = seconds
	return e
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// From extracts an AppError from an error chain, defaulting unknown errors to
// an opaque 500 so internals never leak into a client-visible message.
func From(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return New(err, http.StatusInternalServerError, CodeInternal, SystemErrorMessage)
}
