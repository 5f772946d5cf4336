package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Code classifies a gateway failure. The class decides both the retry policy
// and the remediation message shown to the user.
type Code string

const (
	CodeRateLimited        Code = "rate_limited"
	CodeQuotaExceeded      Code = "quota_exceeded"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeNetworkError       Code = "network_error"
	CodeTimeout            Code = "timeout"
	CodeInvalidResponse    Code = "invalid_response"
	CodeContentPolicy      Code = "content_policy"
	CodeServerError        Code = "server_error"
	CodeValidationError    Code = "validation_error"
	CodeUnknown            Code = "unknown"
)

// Error is a classified gateway failure.
type Error struct {
	Code       Code
	Message    string
	Provider   string
	StatusCode int
	// RetryAfter carries a provider-supplied backoff hint (Retry-After header).
	RetryAfter time.Duration
	// Transient marks failures worth retrying locally. Provider 429s are
	// transient; the local rate limiter's refusal is not, since the caller
	// must wait out the window, not hammer it.
	Transient bool
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the gateway should retry this failure locally.
func (e *Error) Retryable() bool {
	return e.Transient
}

// Remediation returns a user-actionable hint for terminal failures.
func (e *Error) Remediation() string {
	switch e.Code {
	case CodeInvalidCredentials:
		return "check the API key for the selected backend and update it in your config"
	case CodeQuotaExceeded:
		return "the provider account is out of quota; add credit or switch backends"
	case CodeContentPolicy:
		return "the model refused this story on safety grounds; rephrase and retry"
	case CodeRateLimited:
		if !e.Transient {
			return "local rate limit reached; wait for the window to pass or raise the ceiling in your config"
		}
	}
	return ""
}

// AsError extracts a classified *Error from err, wrapping unclassified errors
// as CodeUnknown.
func AsError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Code: CodeUnknown, Message: err.Error()}
}

// classifyTransport classifies an error returned by the HTTP client itself
// (no response was received).
func classifyTransport(provider string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeTimeout, Message: "request timed out", Provider: provider, Transient: true}
	case errors.Is(err, context.Canceled):
		return &Error{Code: CodeTimeout, Message: "request canceled", Provider: provider}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Code: CodeTimeout, Message: err.Error(), Provider: provider, Transient: true}
	}
	return &Error{Code: CodeNetworkError, Message: err.Error(), Provider: provider, Transient: true}
}

// classifyHTTP classifies a non-200 provider response.
func classifyHTTP(provider string, status int, body string, retryAfter time.Duration) *Error {
	e := &Error{
		Provider:   provider,
		StatusCode: status,
		Message:    truncateBody(body, 300),
		RetryAfter: retryAfter,
	}

	lower := strings.ToLower(body)
	switch {
	case status == 401 || status == 403:
		e.Code = CodeInvalidCredentials
	case status == 402:
		e.Code = CodeQuotaExceeded
	case status == 429:
		// Providers reuse 429 for both throttling and exhausted quota. Quota
		// exhaustion does not recover on retry.
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") || strings.Contains(lower, "exceeded your current") {
			e.Code = CodeQuotaExceeded
		} else {
			e.Code = CodeRateLimited
			e.Transient = true
		}
	case status >= 500:
		e.Code = CodeServerError
		e.Transient = true
	case status == 400 && (strings.Contains(lower, "safety") || strings.Contains(lower, "content_policy") || strings.Contains(lower, "content policy")):
		e.Code = CodeContentPolicy
	default:
		e.Code = CodeUnknown
	}
	return e
}

// emptyResponseError classifies a 200 response with no usable content. These
// are retried: models occasionally return empty candidates under load.
func emptyResponseError(provider string) *Error {
	return &Error{
		Code:      CodeInvalidResponse,
		Message:   "model returned an empty response",
		Provider:  provider,
		Transient: true,
	}
}

func truncateBody(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
