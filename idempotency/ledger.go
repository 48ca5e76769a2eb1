// Package idempotency records which (tenant, event) pairs have already been
// taken for processing.
//
// A Ledger is backed by a shared Store (Redis in multi-instance deployments)
// with a process-local fallback. Ledger failures never block traffic: when
// both stores are unavailable an event is treated as not yet processed.
package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTTL is how long a processed marker is retained.
const DefaultTTL = time.Hour

// Store is a keyed set with per-key expiry.
type Store interface {
	// SetIfAbsent records key with the given ttl unless a live record exists.
	// It reports whether this call created the record.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Exists reports whether a non-expired record is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Key returns the ledger key for an upstream event. The tenant is part of
// the key so two tenants may reuse the same upstream event id.
func Key(tenantID, eventID string) string {
	return "event:" + tenantID + ":" + eventID
}

// Ledger answers "has this event been taken already?".
type Ledger struct {
	primary  Store
	fallback Store
	ttl      time.Duration
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTTL sets the marker lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithFallback replaces the process-local fallback store.
func WithFallback(s Store) Option {
	return func(l *Ledger) { l.fallback = s }
}

// WithLogger sets the logger used to report store outages.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Ledger. A nil primary makes the process-local store the
// only backing.
func New(primary Store, opts ...Option) *Ledger {
	l := &Ledger{
		primary:  primary,
		fallback: NewMemoryStore(),
		ttl:      DefaultTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.primary == nil {
		l.primary, l.fallback = l.fallback, nil
	}
	return l
}

// IsProcessed reports whether the event has been marked for this tenant.
// Store failures yield false.
func (l *Ledger) IsProcessed(ctx context.Context, eventID, tenantID string) bool {
	key := Key(tenantID, eventID)

	found, err := l.primary.Exists(ctx, key)
	if err == nil {
		return found
	}
	l.logger.WarnContext(ctx, "idempotency check failed, using fallback", "key", key, "error", err)

	if l.fallback == nil {
		return false
	}
	found, err = l.fallback.Exists(ctx, key)
	if err != nil {
		l.logger.WarnContext(ctx, "idempotency fallback check failed", "key", key, "error", err)
		return false
	}
	return found
}

// MarkProcessed records the event. Store failures are logged and ignored.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID, tenantID string) {
	l.Claim(ctx, eventID, tenantID)
}

// Claim atomically marks the event and reports whether the caller is the
// first to do so. It must be called before any side effect begins. When no
// store can answer, Claim returns true.
func (l *Ledger) Claim(ctx context.Context, eventID, tenantID string) bool {
	key := Key(tenantID, eventID)

	created, err := l.primary.SetIfAbsent(ctx, key, l.ttl)
	if err == nil {
		return created
	}
	l.logger.WarnContext(ctx, "idempotency claim failed, using fallback", "key", key, "error", err)

	if l.fallback == nil {
		return true
	}
	created, err = l.fallback.SetIfAbsent(ctx, key, l.ttl)
	if err != nil {
		l.logger.WarnContext(ctx, "idempotency fallback claim failed, failing open", "key", key, "error", err)
		return true
	}
	return created
}
