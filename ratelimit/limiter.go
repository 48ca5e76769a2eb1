// Package ratelimit implements a fixed-window request limiter keyed by a
// tenant-scoped identifier.
//
// Counts live in a shared Counter (Redis in multi-instance deployments).
// When the shared counter is unavailable the limiter keeps enforcing the
// same threshold through a process-local counter; it never admits traffic
// unmetered.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

var (
	// ErrExceeded is returned by callers that reject a request after Check
	// reported Allowed == false.
	ErrExceeded = errors.New("ratelimit: limit exceeded")

	// ErrStoreUnavailable is returned when neither counter can answer.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")
)

const (
	// DefaultLimit is the number of requests allowed per identifier per window.
	DefaultLimit = 20

	// DefaultWindow is the fixed window length.
	DefaultWindow = 60 * time.Second
)

// Counter is an atomic, expiring counter.
type Counter interface {
	// Incr increments key by one and returns the new value. The increment
	// that creates the key also sets its expiry to ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Result is the outcome of a Check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Limiter enforces a fixed-window limit.
type Limiter struct {
	primary  Counter
	fallback Counter
	limit    int
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimit sets the per-window threshold.
func WithLimit(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.limit = n
		}
	}
}

// WithWindow sets the window length. Sub-second windows are rounded up to
// one second.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = max(d.Truncate(time.Second), time.Second)
		}
	}
}

// WithFallback replaces the process-local fallback counter.
func WithFallback(c Counter) Option {
	return func(l *Limiter) { l.fallback = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used to report counter outages.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Limiter over primary. A nil primary makes the process-local
// counter the only backing.
func New(primary Counter, opts ...Option) *Limiter {
	l := &Limiter{
		primary: primary,
		limit:   DefaultLimit,
		window:  DefaultWindow,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fallback == nil {
		l.fallback = NewMemoryCounter(WithMemoryClock(l.now))
	}
	if l.primary == nil {
		l.primary, l.fallback = l.fallback, nil
	}
	return l
}

// WindowKey returns the counter key for identifier in the window starting
// at windowStart (in units of the window length since the epoch).
func WindowKey(identifier string, windowStart int64) string {
	return "ratelimit:" + identifier + ":" + strconv.FormatInt(windowStart, 10)
}

// Check counts one request for identifier and reports whether it is within
// the limit. When no counter is reachable it returns ErrStoreUnavailable
// with Allowed == false.
func (l *Limiter) Check(ctx context.Context, identifier string) (Result, error) {
	now := l.now()
	size := int64(l.window / time.Second)
	windowStart := now.Unix() / size
	resetAt := time.Unix((windowStart+1)*size, 0).UTC()
	key := WindowKey(identifier, windowStart)

	count, err := l.primary.Incr(ctx, key, l.window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit counter failed, using fallback", "key", key, "error", err)
		if l.fallback == nil {
			return Result{ResetAt: resetAt}, ErrStoreUnavailable
		}
		count, err = l.fallback.Incr(ctx, key, l.window)
		if err != nil {
			l.logger.ErrorContext(ctx, "rate limit fallback failed, rejecting", "key", key, "error", err)
			return Result{ResetAt: resetAt}, ErrStoreUnavailable
		}
	}

	return Result{
		Allowed:   count <= int64(l.limit),
		Remaining: max(l.limit-int(count), 0),
		ResetAt:   resetAt,
	}, nil
}
