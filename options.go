package replydesk

import (
	"log/slog"
	"time"

	"github.com/xraph/replydesk/compose"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/dispatch"
	"github.com/xraph/replydesk/idempotency"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/maintenance"
	"github.com/xraph/replydesk/observability"
	"github.com/xraph/replydesk/platform"
	"github.com/xraph/replydesk/queue"
	"github.com/xraph/replydesk/ratelimit"
	"github.com/xraph/replydesk/store"
	"github.com/xraph/replydesk/suggestion"
	"github.com/xraph/replydesk/vault"
	"github.com/xraph/replydesk/worker"
)

// Desk is the root of the reply pipeline: intake, processing, review.
type Desk struct {
	config Config
	store  store.Store
	vault  *vault.Vault
	logger *slog.Logger

	ledgerStore  idempotency.Store
	rateCounter  ratelimit.Counter
	pushClient   platform.Client
	composer     compose.Composer
	searcher     knowledge.Searcher
	enqueuer     queue.Enqueuer
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	ledgerLocal  *idempotency.MemoryStore
	counterLocal *ratelimit.MemoryCounter

	credentials *credential.Service
	ledger      *idempotency.Ledger
	limiter     *ratelimit.Limiter
	worker      *worker.Worker
	dispatcher  *dispatch.Dispatcher
	suggestions *suggestion.Service
	scheduler   *maintenance.Scheduler
}

// Option configures a Desk instance.
type Option func(*Desk) error

// New creates a new Desk with the given options.
func New(opts ...Option) (*Desk, error) {
	d := &Desk{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.store == nil {
		return nil, ErrNoStore
	}
	if d.vault == nil {
		return nil, ErrNoVault
	}
	if err := d.wireServices(); err != nil {
		return nil, err
	}
	return d, nil
}

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(d *Desk) error {
		d.store = s
		return nil
	}
}

// WithVault sets the credential vault.
func WithVault(v *vault.Vault) Option {
	return func(d *Desk) error {
		d.vault = v
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(d *Desk) error {
		d.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Desk) error {
		d.logger = logger
		return nil
	}
}

// WithIdempotencyStore sets the shared idempotency store. Without one the
// ledger is process-local.
func WithIdempotencyStore(s idempotency.Store) Option {
	return func(d *Desk) error {
		d.ledgerStore = s
		return nil
	}
}

// WithRateCounter sets the shared rate-limit counter. Without one the
// limiter is process-local.
func WithRateCounter(c ratelimit.Counter) Option {
	return func(d *Desk) error {
		d.rateCounter = c
		return nil
	}
}

// WithPlatformClient replaces the HTTP push client.
func WithPlatformClient(c platform.Client) Option {
	return func(d *Desk) error {
		d.pushClient = c
		return nil
	}
}

// WithComposer sets the reply composer. The default composes from the
// retrieved knowledge.
func WithComposer(c compose.Composer) Option {
	return func(d *Desk) error {
		d.composer = c
		return nil
	}
}

// WithSearcher replaces the store-backed knowledge retriever.
func WithSearcher(s knowledge.Searcher) Option {
	return func(d *Desk) error {
		d.searcher = s
		return nil
	}
}

// WithEnqueuer replaces the in-process queue, for example with a
// queue.HTTP that calls back into the process trigger.
func WithEnqueuer(e queue.Enqueuer) Option {
	return func(d *Desk) error {
		d.enqueuer = e
		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Desk) error {
		d.metrics = m
		return nil
	}
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(d *Desk) error {
		d.tracer = t
		return nil
	}
}

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) Option {
	return func(d *Desk) error {
		d.config.Concurrency = n
		return nil
	}
}

// WithProcessTimeout sets the per-event processing bound.
func WithProcessTimeout(t time.Duration) Option {
	return func(d *Desk) error {
		d.config.ProcessTimeout = t
		return nil
	}
}

// WithDrainInterval sets how often pending events are swept.
func WithDrainInterval(t time.Duration) Option {
	return func(d *Desk) error {
		d.config.DrainInterval = t
		return nil
	}
}

// WithConfidenceThreshold sets the minimum confidence for automatic replies.
func WithConfidenceThreshold(v float64) Option {
	return func(d *Desk) error {
		d.config.ConfidenceThreshold = v
		return nil
	}
}

// WithRateLimit sets the per-window event limit.
func WithRateLimit(n int, window time.Duration) Option {
	return func(d *Desk) error {
		d.config.RateLimit = n
		d.config.RateWindow = window
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait on shutdown.
func WithShutdownTimeout(t time.Duration) Option {
	return func(d *Desk) error {
		d.config.ShutdownTimeout = t
		return nil
	}
}
