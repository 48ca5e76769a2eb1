package replydesk

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/replydesk/compose"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/decision"
	"github.com/xraph/replydesk/dispatch"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/idempotency"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/maintenance"
	"github.com/xraph/replydesk/platform"
	"github.com/xraph/replydesk/ratelimit"
	"github.com/xraph/replydesk/risk"
	"github.com/xraph/replydesk/store"
	"github.com/xraph/replydesk/suggestion"
	"github.com/xraph/replydesk/worker"
)

// wireServices builds the pipeline after options have been applied.
func (d *Desk) wireServices() error {
	cfg := d.config

	d.credentials = credential.NewService(d.store, d.vault, d.logger)

	d.ledgerLocal = idempotency.NewMemoryStore()
	d.ledger = idempotency.New(d.ledgerStore,
		idempotency.WithFallback(d.ledgerLocal),
		idempotency.WithTTL(cfg.IdempotencyTTL),
		idempotency.WithLogger(d.logger),
	)

	d.counterLocal = ratelimit.NewMemoryCounter()
	d.limiter = ratelimit.New(d.rateCounter,
		ratelimit.WithFallback(d.counterLocal),
		ratelimit.WithLimit(cfg.RateLimit),
		ratelimit.WithWindow(cfg.RateWindow),
		ratelimit.WithLogger(d.logger),
	)

	if d.pushClient == nil {
		var opts []platform.HTTPOption
		if cfg.PushURL != "" {
			opts = append(opts, platform.WithURL(cfg.PushURL))
		}
		if cfg.PushRate > 0 {
			opts = append(opts, platform.WithRateLimit(cfg.PushRate, max(int(cfg.PushRate), 1)))
		}
		d.pushClient = platform.NewHTTPClient(cfg.PushTimeout, opts...)
	}
	sender := platform.NewSender(d.pushClient, platform.NewRetrier(cfg.SendAttempts, cfg.SendRetrySchedule), d.logger)

	if d.searcher == nil {
		d.searcher = knowledge.NewRetriever(d.store, d.logger)
	}
	if d.composer == nil {
		d.composer = compose.NewGrounded(0)
	}

	d.worker = worker.New(d.store, worker.Pipeline{
		Credentials: d.credentials,
		Ledger:      d.ledger,
		Classifier:  risk.NewClassifier(),
		Knowledge:   d.searcher,
		Composer:    d.composer,
		Decider:     decision.NewEngine(decision.WithThreshold(cfg.ConfidenceThreshold)),
		Sender:      sender,
	}, worker.Config{
		Concurrency:          cfg.Concurrency,
		QueueSize:            cfg.QueueSize,
		ProcessTimeout:       cfg.ProcessTimeout,
		DrainGrace:           cfg.DrainGrace,
		DrainBatchSize:       cfg.DrainBatchSize,
		StaleProcessingAfter: cfg.StaleProcessingAfter,
		SuggestionTTL:        cfg.SuggestionTTL,
		KnowledgeLimit:       cfg.KnowledgeLimit,
		KnowledgeMaxChars:    cfg.KnowledgeMaxChars,
		Metrics:              d.metrics,
		Tracer:               d.tracer,
	}, d.logger)

	enqueuer := d.enqueuer
	if enqueuer == nil {
		enqueuer = d.worker
	}
	dispatcher, err := dispatch.New(d.store, d.credentials, enqueuer,
		dispatch.WithLedger(d.ledger),
		dispatch.WithLimiter(d.limiter),
		dispatch.WithDuplicateCheck(func(err error) bool { return errors.Is(err, ErrDuplicateEvent) }),
		dispatch.WithMetrics(d.metrics),
		dispatch.WithTracer(d.tracer),
		dispatch.WithLogger(d.logger),
	)
	if err != nil {
		return err
	}
	d.dispatcher = dispatcher

	d.suggestions = suggestion.NewService(d.store, d.credentials, sender, d.logger,
		suggestion.WithMessageLog(d.store),
	)

	mcfg := maintenance.DefaultConfig()
	mcfg.DrainSchedule = ""
	if cfg.DrainInterval > 0 {
		mcfg.DrainSchedule = "@every " + cfg.DrainInterval.String()
	}
	mcfg.Retention = cfg.Retention
	d.scheduler = maintenance.New(d.worker, d.store, mcfg, d.logger,
		maintenance.WithSweepers(d.ledgerLocal, d.counterLocal),
	)
	return nil
}

// Start launches the worker pool and the maintenance schedule.
func (d *Desk) Start(ctx context.Context) error {
	d.worker.Start(ctx)
	if err := d.scheduler.Start(ctx); err != nil {
		d.worker.Stop(ctx)
		return fmt.Errorf("replydesk: start maintenance: %w", err)
	}
	return nil
}

// Stop halts the schedule and waits for in-flight events up to the
// shutdown timeout. Queued events stay pending for the next drain.
func (d *Desk) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.config.ShutdownTimeout)
	defer cancel()
	d.scheduler.Stop(ctx)
	d.worker.Stop(ctx)
}

// Dispatch verifies a webhook body for tenantID and persists its events.
// Only a signature failure returns an error.
func (d *Desk) Dispatch(ctx context.Context, tenantID string, body []byte, sig string) (dispatch.Result, error) {
	return d.dispatcher.Dispatch(ctx, tenantID, body, sig)
}

// Process runs one event. Safe to call more than once for the same id.
func (d *Desk) Process(ctx context.Context, evtID id.ID) (worker.Outcome, error) {
	return d.worker.Process(ctx, evtID)
}

// Drain fails abandoned events and processes pending ones past the grace
// period. It returns the number of pending events processed.
func (d *Desk) Drain(ctx context.Context) (int, error) {
	if _, err := d.worker.RecoverStale(ctx); err != nil {
		return 0, err
	}
	return d.worker.Drain(ctx)
}

// Approve sends a draft suggestion exactly once.
func (d *Desk) Approve(ctx context.Context, sugID id.ID) (*suggestion.Suggestion, error) {
	sug, err := d.suggestions.Approve(ctx, sugID)
	if err == nil {
		d.metrics.RecordSuggestionSent()
	}
	return sug, err
}

// Stats returns event counts by status.
func (d *Desk) Stats(ctx context.Context) (map[event.Status]int64, error) {
	return d.store.CountByStatus(ctx)
}

// Store returns the underlying store.
func (d *Desk) Store() store.Store {
	return d.store
}

// Credentials returns the credential service.
func (d *Desk) Credentials() *credential.Service {
	return d.credentials
}

// Suggestions returns the review service.
func (d *Desk) Suggestions() *suggestion.Service {
	return d.suggestions
}

// Worker returns the event worker.
func (d *Desk) Worker() *worker.Worker {
	return d.worker
}

// Config returns the effective configuration.
func (d *Desk) Config() Config {
	return d.config
}
