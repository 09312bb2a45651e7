package common

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error

	// RetryAfter is set on rate-limit errors when the wait is known.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDatabase        = errors.New("database error")
	ErrValidation      = errors.New("validation failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrNotConfigured   = errors.New("not configured")
	ErrProvider        = errors.New("provider error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// RetryAfterOf returns the wait attached to a rate-limit error, or 0.
func RetryAfterOf(err error) time.Duration {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.RetryAfter
	}
	return 0
}

// HTTPStatus maps an error chain to the status code returned to API clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidFileType), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the "detail" text shown to API clients for err.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusTooManyRequests:
		return "Too many requests. Please wait a moment and try again."
	case http.StatusBadRequest:
		if errors.Is(err, ErrInvalidFileType) {
			return "Invalid file type"
		}
		return messageOf(err)
	case http.StatusNotFound:
		return "Not found"
	default:
		return "Error: " + messageOf(err)
	}
}

func messageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
