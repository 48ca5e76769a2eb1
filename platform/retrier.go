package platform

import "time"

// Decision is the outcome of evaluating a push attempt.
type Decision int

const (
	// Sent means the platform accepted the push.
	Sent Decision = iota

	// Retry means the push should be attempted again.
	Retry

	// Fail means the push will not succeed and should not be retried.
	Fail
)

// Retrier decides what to do after a push attempt.
type Retrier struct {
	schedule    []time.Duration
	maxAttempts int
}

// NewRetrier creates a retrier allowing maxAttempts pushes with the given
// backoff schedule.
func NewRetrier(maxAttempts int, schedule []time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{schedule: schedule, maxAttempts: maxAttempts}
}

// MaxAttempts returns the attempt budget.
func (r *Retrier) MaxAttempts() int { return r.maxAttempts }

// Decide determines what to do after attempt number attempt (1-based).
//
//   - 2xx → Sent
//   - 429 → Retry while attempts remain
//   - other 4xx → Fail (bad token or recipient will not self-correct)
//   - 5xx or transport error → Retry while attempts remain
func (r *Retrier) Decide(res Result, attempt int) Decision {
	code := res.StatusCode

	if res.OK() {
		return Sent
	}
	if code == 429 {
		return r.retryOrFail(attempt)
	}
	if code >= 400 && code < 500 {
		return Fail
	}
	return r.retryOrFail(attempt)
}

func (r *Retrier) retryOrFail(attempt int) Decision {
	if attempt < r.maxAttempts {
		return Retry
	}
	return Fail
}

// Backoff returns the wait before the attempt following attempt.
func (r *Retrier) Backoff(attempt int) time.Duration {
	if len(r.schedule) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.schedule) {
		idx = len(r.schedule) - 1
	}
	return r.schedule[idx]
}
