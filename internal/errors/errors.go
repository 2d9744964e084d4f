package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents a structured application error with context
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	HTTPCode int    `json:"-"`
	Cause    error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeConfigError      = "CONFIG_ERROR"
	CodeRateLimited      = "RATE_LIMITED"

	// Moodle web-service outcomes
	CodeAuthRejected        = "AUTH_REJECTED"
	CodeUnexpectedResponse  = "UNEXPECTED_RESPONSE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInvalidToken        = "INVALID_TOKEN"

	// Cache-specific error codes
	CodeCacheError       = "CACHE_ERROR"
	CodeCacheUnavailable = "CACHE_UNAVAILABLE"
)

func newError(code string, httpCode int, message string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: httpCode,
		Cause:    cause,
	}
}

func ValidationError(message string, cause error) *AppError {
	return newError(CodeValidationFailed, http.StatusBadRequest, message, cause)
}

func InternalError(message string, cause error) *AppError {
	return newError(CodeInternalError, http.StatusInternalServerError, message, cause)
}

func DatabaseError(message string, cause error) *AppError {
	return newError(CodeDatabaseError, http.StatusInternalServerError, message, cause)
}

func ConfigError(message string, cause error) *AppError {
	return newError(CodeConfigError, http.StatusInternalServerError, message, cause)
}

func RateLimitedError(message string, cause error) *AppError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, message, cause)
}

// AuthRejectedError carries the error text reported by the token endpoint.
func AuthRejectedError(message string, cause error) *AppError {
	return newError(CodeAuthRejected, http.StatusUnauthorized, message, cause)
}

func UnexpectedResponseError(message string, cause error) *AppError {
	return newError(CodeUnexpectedResponse, http.StatusBadGateway, message, cause)
}

func UpstreamUnavailableError(message string, cause error) *AppError {
	return newError(CodeUpstreamUnavailable, http.StatusBadGateway, message, cause)
}

func InvalidTokenError(message string, cause error) *AppError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, message, cause)
}

func CacheError(message string, cause error) *AppError {
	return newError(CodeCacheError, http.StatusInternalServerError, message, cause)
}

func CacheUnavailableError(message string, cause error) *AppError {
	return newError(CodeCacheUnavailable, http.StatusServiceUnavailable, message, cause)
}

// IsType checks if an error is of a specific type/code
func IsType(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code returns the code of the first AppError in the chain, or CodeInternalError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// GetHTTPCode extracts the HTTP status code from an error
func GetHTTPCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode
	}
	return http.StatusInternalServerError
}
