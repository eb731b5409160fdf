package timeline

import (
	"time"

	"github.com/ppiankov/onefeed/internal/platform"
)

// Status is the settled result of one refresh cycle.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial_failure"
	StatusFailure Status = "failure"
)

// AccountStatus classifies one account's fetch within a cycle.
type AccountStatus string

const (
	AccountOK          AccountStatus = "ok"
	AccountAuthFailed  AccountStatus = "auth_failed"
	AccountRateLimited AccountStatus = "rate_limited"
	AccountTransport   AccountStatus = "transport_failed"
)

// AccountReport is one account's outcome in a refresh cycle.
type AccountReport struct {
	AccountID string
	Platform  platform.Platform
	Status    AccountStatus
	Fetched   int
	Err       error

	// RetryAfter carries the backend's throttle hint for rate-limited
	// accounts, zero otherwise.
	RetryAfter time.Duration
}

// OK reports whether the account fetched successfully.
func (r AccountReport) OK() bool {
	return r.Status == AccountOK
}

// Retryable reports whether the caller may usefully retry this account.
// Auth failures need user action, not a retry.
func (r AccountReport) Retryable() bool {
	return r.Status == AccountRateLimited || r.Status == AccountTransport
}

// Outcome summarizes one refresh cycle. It is always a value, never a
// panic or a raw adapter error: the caller decides messaging from it.
type Outcome struct {
	Status  Status
	Reports []AccountReport
}

// Succeeded returns the reports of accounts that fetched successfully.
func (o Outcome) Succeeded() []AccountReport {
	return o.filter(true)
}

// Failed returns the reports of accounts that did not fetch.
func (o Outcome) Failed() []AccountReport {
	return o.filter(false)
}

func (o Outcome) filter(ok bool) []AccountReport {
	var out []AccountReport
	for _, r := range o.Reports {
		if r.OK() == ok {
			out = append(out, r)
		}
	}
	return out
}

// summarize folds per-account reports into the cycle outcome. All accounts
// ok is success; zero successes with at least one attempt is failure;
// anything in between is a partial failure.
func summarize(reports []AccountReport) Outcome {
	succeeded, failed := 0, 0
	for _, r := range reports {
		if r.OK() {
			succeeded++
		} else {
			failed++
		}
	}

	status := StatusSuccess
	switch {
	case failed > 0 && succeeded == 0:
		status = StatusFailure
	case failed > 0:
		status = StatusPartial
	}

	return Outcome{Status: status, Reports: reports}
}

// classify maps an adapter error to an account status plus the throttle
// hint, if any. Unknown errors count as transport failures.
func classify(err error) (AccountStatus, time.Duration) {
	switch {
	case platform.IsAuth(err):
		return AccountAuthFailed, 0
	default:
		if after, ok := platform.IsRateLimit(err); ok {
			return AccountRateLimited, after
		}
		return AccountTransport, 0
	}
}
