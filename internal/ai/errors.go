package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind categorizes provider failures for retry decisions and user-safe
// reporting.
type ErrorKind string

const (
	ErrorKindConnection ErrorKind = "connection"
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindAPI        ErrorKind = "api"
)

// Fixed user-safe messages for terminal model-call failures. These are the
// only internal errors that ever reach the conversational surface, and the
// orchestrator excludes them from persisted history.
const (
	MsgRateLimited = "Rate limit reached: the model service is throttling requests. Please wait a moment and try again."
	MsgConnection  = "Connection error: I couldn't reach the model service. Please check your network and try again."
	MsgAuthFailed  = "Authentication error: the model service rejected the configured API key."
	MsgAPIError    = "The model service returned an unexpected error. Please try again."
)

// Classify maps a provider error to an ErrorKind by pattern matching on the
// error text, the same way auth-profile cooldowns are decided.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindAPI
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	msg := strings.ToLower(err.Error())

	rateLimitPatterns := []string{
		"rate limit", "rate_limit", "too many requests", "429",
		"throttle", "throttling", "slow down",
	}
	for _, p := range rateLimitPatterns {
		if strings.Contains(msg, p) {
			return ErrorKindRateLimit
		}
	}

	authPatterns := []string{
		"authentication", "unauthorized", "invalid api key", "api key",
		"401", "403", "forbidden", "invalid credentials", "incorrect api key",
	}
	for _, p := range authPatterns {
		if strings.Contains(msg, p) {
			return ErrorKindAuth
		}
	}

	timeoutPatterns := []string{
		"timeout", "timed out", "deadline exceeded", "context canceled",
	}
	for _, p := range timeoutPatterns {
		if strings.Contains(msg, p) {
			return ErrorKindTimeout
		}
	}

	connectionPatterns := []string{
		"connection refused", "connection reset", "no such host",
		"network is unreachable", "dial tcp", "eof", "broken pipe",
		"tls handshake",
	}
	for _, p := range connectionPatterns {
		if strings.Contains(msg, p) {
			return ErrorKindConnection
		}
	}

	return ErrorKindAPI
}

// Retryable reports whether a failure is worth another attempt. Auth failures
// are terminal; everything transient gets retried.
func Retryable(err error) bool {
	switch Classify(err) {
	case ErrorKindRateLimit, ErrorKindConnection, ErrorKindTimeout:
		return true
	default:
		return false
	}
}

// UserMessage converts a terminal provider error into its fixed user-safe
// message.
func UserMessage(err error) string {
	switch Classify(err) {
	case ErrorKindRateLimit:
		return MsgRateLimited
	case ErrorKindConnection, ErrorKindTimeout:
		return MsgConnection
	case ErrorKindAuth:
		return MsgAuthFailed
	default:
		return MsgAPIError
	}
}

// IsUserSafeMessage reports whether s is one of the fixed messages produced by
// UserMessage. The orchestrator uses this to keep transient failures out of
// conversation history.
func IsUserSafeMessage(s string) bool {
	switch s {
	case MsgRateLimited, MsgConnection, MsgAuthFailed, MsgAPIError:
		return true
	}
	return false
}
