package platform

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsAuth(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &AuthError{AccountID: "a1", Reason: "HTTP 401"})
	if !IsAuth(err) {
		t.Error("wrapped auth error not detected")
	}
	if IsAuth(errors.New("plain")) {
		t.Error("plain error misdetected as auth")
	}
}

func TestIsRateLimit(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &RateLimitError{AccountID: "a1", RetryAfter: 42 * time.Second})
	after, ok := IsRateLimit(err)
	if !ok {
		t.Fatal("wrapped rate limit error not detected")
	}
	if after != 42*time.Second {
		t.Errorf("retry after = %s, want 42s", after)
	}

	if _, ok := IsRateLimit(errors.New("plain")); ok {
		t.Error("plain error misdetected as rate limit")
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportError{AccountID: "a1", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("transport error should unwrap to its cause")
	}
	if !IsTransport(fmt.Errorf("cycle: %w", err)) {
		t.Error("wrapped transport error not detected")
	}
	if IsTransport(&AuthError{AccountID: "a1"}) {
		t.Error("auth error misdetected as transport")
	}
}
