package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{errors.New("429 Too Many Requests"), ErrorKindRateLimit},
		{errors.New("rate limit exceeded, slow down"), ErrorKindRateLimit},
		{errors.New("401 Unauthorized"), ErrorKindAuth},
		{errors.New("Incorrect API key provided"), ErrorKindAuth},
		{errors.New("dial tcp 10.0.0.1:443: connection refused"), ErrorKindConnection},
		{errors.New("no such host"), ErrorKindConnection},
		{context.DeadlineExceeded, ErrorKindTimeout},
		{fmt.Errorf("chat completion: %w", context.DeadlineExceeded), ErrorKindTimeout},
		{errors.New("request timed out"), ErrorKindTimeout},
		{errors.New("500 internal server error"), ErrorKindAPI},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(errors.New("429 too many requests")) {
		t.Error("rate limit should be retryable")
	}
	if !Retryable(errors.New("connection reset by peer")) {
		t.Error("connection error should be retryable")
	}
	if Retryable(errors.New("401 unauthorized")) {
		t.Error("auth error should not be retryable")
	}
	if Retryable(errors.New("invalid request: unknown field")) {
		t.Error("generic API error should not be retryable")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("429 too many requests"), MsgRateLimited},
		{errors.New("connection refused"), MsgConnection},
		{context.DeadlineExceeded, MsgConnection},
		{errors.New("invalid api key"), MsgAuthFailed},
		{errors.New("model overloaded"), MsgAPIError},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIsUserSafeMessage(t *testing.T) {
	for _, msg := range []string{MsgRateLimited, MsgConnection, MsgAuthFailed, MsgAPIError} {
		if !IsUserSafeMessage(msg) {
			t.Errorf("expected %q to be recognized", msg)
		}
	}
	if IsUserSafeMessage("The weather in Paris is sunny.") {
		t.Error("ordinary response should not be flagged")
	}
}
