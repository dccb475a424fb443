package core

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeConfiguration indicates a missing or invalid provider setup
	// (e.g. no API key). Fails before any network call.
	ErrorTypeConfiguration ErrorType = "configuration_error"
	// ErrorTypeProvider indicates an upstream provider failure (HTTP
	// 4xx/5xx/timeout). Triggers fallback to the next candidate.
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates the caller exceeded their quota (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeCacheUnavailable indicates a durable cache failure; callers
	// degrade to memory-only caching.
	ErrorTypeCacheUnavailable ErrorType = "cache_unavailable"
	// ErrorTypeExhausted indicates every candidate provider failed or was
	// unavailable. This is the only terminal hard failure.
	ErrorTypeExhausted ErrorType = "exhausted_providers"
)

// UnavailableMessage is the user-facing text for exhausted-provider
// failures. Vendor-internal error text must never reach callers.
const UnavailableMessage = "AI features are temporarily unavailable, please try again later"

// GatewayError is the base error type for all orchestration errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeConfiguration:
		return http.StatusInternalServerError
	case ErrorTypeExhausted:
		return http.StatusServiceUnavailable
	case ErrorTypeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns text safe to show to end users. Provider and
// exhaustion failures are masked behind a generic message.
func (e *GatewayError) UserMessage() string {
	switch e.Type {
	case ErrorTypeProvider, ErrorTypeExhausted, ErrorTypeConfiguration:
		return UnavailableMessage
	default:
		return e.Message
	}
}

// NewConfigurationError creates an error for missing/invalid provider setup
func NewConfigurationError(provider, message string) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeConfiguration,
		Message:  message,
		Provider: provider,
	}
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewCacheUnavailableError creates an error for durable cache failures
func NewCacheUnavailableError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeCacheUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewExhaustedError creates the terminal error returned when every
// candidate provider failed or was unavailable.
func NewExhaustedError(attempts int, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeExhausted,
		Message:    fmt.Sprintf("no provider available after %d attempts", attempts),
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// IsRateLimited reports whether the error is a provider-side 429.
func IsRateLimited(err error) bool {
	if ge, ok := err.(*GatewayError); ok {
		return ge.Type == ErrorTypeRateLimit || ge.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// ParseProviderError parses an error response body from a provider and
// returns an appropriate GatewayError. Vendors wrap messages differently
// ({"error":{"message":...}} vs {"error":...} vs {"message":...}), so the
// lookup is tolerant.
func ParseProviderError(provider string, statusCode int, body []byte) *GatewayError {
	message := string(body)
	for _, path := range []string{"error.message", "error", "message"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			message = v.Str
			break
		}
	}

	ge := &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
	}
	if statusCode == http.StatusTooManyRequests {
		ge.Type = ErrorTypeRateLimit
	}
	return ge
}
