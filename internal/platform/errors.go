package platform

import (
	"errors"
	"fmt"
	"time"
)

// AuthError means the account's credential is invalid or expired. Adapters
// never retry it; the caller surfaces it as a per-account action item.
type AuthError struct {
	AccountID string
	Reason    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("account %s: authentication failed: %s", e.AccountID, e.Reason)
}

// RateLimitError means the backend throttled the request. RetryAfter carries
// the backend's hint when present, zero otherwise.
type RateLimitError struct {
	AccountID  string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("account %s: rate limited, retry after %s", e.AccountID, e.RetryAfter)
	}
	return fmt.Sprintf("account %s: rate limited", e.AccountID)
}

// TransportError wraps network, timeout, and parse failures. Eligible for
// caller-driven retry with backoff.
type TransportError struct {
	AccountID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("account %s: transport: %v", e.AccountID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimit reports whether err is a rate limit, returning the backend's
// retry-after hint when it carried one.
func IsRateLimit(err error) (time.Duration, bool) {
	var re *RateLimitError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}

// IsTransport reports whether err is a retryable transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
