// Package dispatch turns verified webhook calls into pending events.
//
// The dispatcher does the minimum on the request path: verify the body
// signature, persist one pending event per platform event and hand each
// to the queue. It never waits on processing. An event whose enqueue
// fails stays pending for the drain.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/idempotency"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/observability"
	"github.com/xraph/replydesk/queue"
	"github.com/xraph/replydesk/ratelimit"
	"github.com/xraph/replydesk/signature"
)

// ErrInvalidEnvelope is returned by Validate for a body that is not a
// webhook envelope. The dispatcher acknowledges such bodies without
// persisting anything.
var ErrInvalidEnvelope = errors.New("dispatch: invalid envelope")

// Store is the persistence the dispatcher needs.
type Store interface {
	CreateEvent(ctx context.Context, evt *event.InboundEvent) error
}

// IsDuplicate reports whether a CreateEvent error means the event already
// exists. Stores return the root ErrDuplicateEvent, which this package
// cannot import.
type IsDuplicate func(error) bool

// Result summarises one webhook call.
type Result struct {
	Accepted    int `json:"accepted"`
	Duplicates  int `json:"duplicates"`
	RateLimited int `json:"rate_limited"`
	Skipped     int `json:"skipped"`
	Unqueued    int `json:"unqueued"`
}

// Dispatcher handles inbound webhook calls.
type Dispatcher struct {
	store       Store
	credentials credential.Resolver
	queue       queue.Enqueuer
	isDuplicate IsDuplicate

	ledger    *idempotency.Ledger
	limiter   *ratelimit.Limiter
	validator *Validator
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLedger skips events the ledger already knows.
func WithLedger(l *idempotency.Ledger) Option {
	return func(d *Dispatcher) { d.ledger = l }
}

// WithLimiter rate-limits events per bot and end user.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithDuplicateCheck sets how store duplicate errors are recognised.
func WithDuplicateCheck(fn IsDuplicate) Option {
	return func(d *Dispatcher) { d.isDuplicate = fn }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher. A nil enqueuer leaves every event to the
// drain.
func New(store Store, credentials credential.Resolver, enqueuer queue.Enqueuer, opts ...Option) (*Dispatcher, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	d := &Dispatcher{
		store:       store,
		credentials: credentials,
		queue:       enqueuer,
		validator:   validator,
		isDuplicate: func(error) bool { return false },
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// Dispatch verifies and persists a webhook body for tenantID. The only
// error it returns wraps signature.ErrInvalid; every other outcome is
// reported in the Result so the caller can acknowledge with 200.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID string, body []byte, sig string) (Result, error) {
	var res Result
	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.StartDispatchSpan(ctx, tenantID)
		defer span.End()
	}

	secrets, err := d.credentials.Resolve(ctx, tenantID)
	if err != nil {
		// Without a usable channel secret the body cannot be verified.
		d.logger.ErrorContext(ctx, "webhook credentials unavailable", "tenant_id", tenantID, "error", err)
		d.metrics.RecordRejected("credentials")
		return res, fmt.Errorf("%w: %w", signature.ErrInvalid, err)
	}
	if !signature.VerifyBody(body, secrets.ChannelSecret, sig) {
		d.logger.WarnContext(ctx, "webhook signature rejected", "tenant_id", tenantID)
		d.metrics.RecordRejected("signature")
		return res, signature.ErrInvalid
	}

	if err := d.validator.Validate(body); err != nil {
		d.logger.WarnContext(ctx, "webhook envelope rejected", "tenant_id", tenantID, "error", err)
		d.metrics.RecordRejected("envelope")
		return res, nil
	}

	var env event.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		d.metrics.RecordRejected("envelope")
		return res, nil
	}

	for _, raw := range env.Events {
		d.dispatchOne(ctx, tenantID, secrets.BotID, env.Destination, raw, &res)
	}

	d.logger.InfoContext(ctx, "webhook dispatched",
		"tenant_id", tenantID,
		"events", len(env.Events),
		"accepted", res.Accepted,
		"duplicates", res.Duplicates,
		"rate_limited", res.RateLimited,
	)
	return res, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, tenantID, botID, destination string, raw json.RawMessage, res *Result) {
	var pe event.PlatformEvent
	if err := json.Unmarshal(raw, &pe); err != nil {
		res.Skipped++
		return
	}

	externalID := ExternalID(tenantID, &pe, raw)
	if d.ledger != nil && d.ledger.IsProcessed(ctx, externalID, tenantID) {
		res.Duplicates++
		d.metrics.RecordRejected("duplicate")
		return
	}

	contactID := contactOf(&pe)
	if d.limiter != nil {
		if botID == "" {
			botID = destination
		}
		rl, err := d.limiter.Check(ctx, ratelimit.Identifier(ratelimit.Scope{BotID: botID, OwnerID: tenantID, EndUserID: contactID}))
		if err == nil && !rl.Allowed {
			err = ratelimit.ErrExceeded
		}
		if err != nil {
			res.RateLimited++
			d.metrics.RecordRejected("rate_limited")
			d.logger.WarnContext(ctx, "event rate limited",
				"tenant_id", tenantID,
				"external_id", externalID,
				"reset_at", rl.ResetAt,
				"error", err,
			)
			return
		}
	}

	now := d.now()
	evt := &event.InboundEvent{
		Entity:     entity.Entity{CreatedAt: now, UpdatedAt: now},
		ID:         id.NewEventID(),
		ExternalID: externalID,
		TenantID:   tenantID,
		BotID:      botID,
		ContactID:  contactID,
		Payload:    raw,
		Status:     event.StatusPending,
		ReceivedAt: now,
	}
	if err := d.store.CreateEvent(ctx, evt); err != nil {
		if d.isDuplicate(err) {
			res.Duplicates++
			d.metrics.RecordRejected("duplicate")
			return
		}
		res.Skipped++
		d.logger.ErrorContext(ctx, "failed to persist event",
			"tenant_id", tenantID,
			"external_id", externalID,
			"error", err,
		)
		return
	}
	res.Accepted++
	d.metrics.RecordReceived()

	if d.queue == nil {
		res.Unqueued++
		return
	}
	if err := d.queue.Enqueue(ctx, evt.ID); err != nil {
		res.Unqueued++
		d.logger.WarnContext(ctx, "enqueue failed, event left for drain",
			"event_id", evt.ID.String(),
			"error", err,
		)
	}
}

// ExternalID is the upstream identity of an event: the platform's webhook
// event id, or a name-based UUID of the tenant and raw event when the
// platform sent none. Redeliveries of the same bytes map to the same id.
func ExternalID(tenantID string, pe *event.PlatformEvent, raw []byte) string {
	if pe.WebhookEventID != "" {
		return pe.WebhookEventID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, append([]byte(tenantID+":"), raw...)).String()
}

func contactOf(pe *event.PlatformEvent) string {
	switch {
	case pe.Source.UserID != "":
		return pe.Source.UserID
	case pe.Source.GroupID != "":
		return pe.Source.GroupID
	default:
		return pe.Source.RoomID
	}
}
