// Package worker runs the per-event processing path: claim, decrypt,
// classify, retrieve, decide, act, and record the terminal state.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/replydesk/compose"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/decision"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/idempotency"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/observability"
	"github.com/xraph/replydesk/platform"
	"github.com/xraph/replydesk/queue"
	"github.com/xraph/replydesk/risk"
	"github.com/xraph/replydesk/suggestion"
)

// Store is the persistence the worker needs.
type Store interface {
	GetEvent(ctx context.Context, evtID id.ID) (*event.InboundEvent, error)
	CompareAndSwap(ctx context.Context, evtID id.ID, t event.Transition) (bool, error)
	ListByStatus(ctx context.Context, status event.Status, before time.Time, limit int) ([]*event.InboundEvent, error)
	CreateSuggestion(ctx context.Context, s *suggestion.Suggestion) error
	MarkHandoff(ctx context.Context, tenantID, contactID, reason string, at time.Time) (*conversation.Conversation, error)
	RecordMessage(ctx context.Context, msg *conversation.Message) error
}

// Sender pushes a message upstream. platform.Sender implements it.
type Sender interface {
	Send(ctx context.Context, req platform.PushRequest) (int, error)
}

// Pipeline holds the collaborators of the processing path.
type Pipeline struct {
	Credentials credential.Resolver
	Ledger      *idempotency.Ledger
	Classifier  *risk.Classifier
	Knowledge   knowledge.Searcher
	Composer    compose.Composer
	Decider     *decision.Engine
	Sender      Sender
}

// Config holds worker configuration.
type Config struct {
	Concurrency          int
	QueueSize            int
	ProcessTimeout       time.Duration
	DrainGrace           time.Duration
	DrainBatchSize       int
	StaleProcessingAfter time.Duration
	SuggestionTTL        time.Duration
	KnowledgeLimit       int
	KnowledgeMaxChars    int
	Metrics              *observability.Metrics
	Tracer               *observability.Tracer
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:          10,
		QueueSize:            1000,
		ProcessTimeout:       15 * time.Second,
		DrainGrace:           30 * time.Second,
		DrainBatchSize:       100,
		StaleProcessingAfter: 5 * time.Minute,
		SuggestionTTL:        24 * time.Hour,
		KnowledgeLimit:       knowledge.DefaultLimit,
		KnowledgeMaxChars:    knowledge.DefaultMaxChars,
	}
}

// Worker is the pool that consumes the in-process queue and processes
// events. Process and Drain may also be called directly.
type Worker struct {
	store    Store
	pipeline Pipeline
	config   Config
	queue    *queue.Channel
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker. Zero config fields take their defaults.
func New(store Store, p Pipeline, cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = def.ProcessTimeout
	}
	if cfg.DrainBatchSize <= 0 {
		cfg.DrainBatchSize = def.DrainBatchSize
	}
	if cfg.StaleProcessingAfter <= 0 {
		cfg.StaleProcessingAfter = def.StaleProcessingAfter
	}
	if cfg.SuggestionTTL <= 0 {
		cfg.SuggestionTTL = def.SuggestionTTL
	}
	if p.Ledger == nil {
		p.Ledger = idempotency.New(nil, idempotency.WithLogger(logger))
	}
	if p.Classifier == nil {
		p.Classifier = risk.NewClassifier()
	}
	if p.Composer == nil {
		p.Composer = compose.NewGrounded(0)
	}
	if p.Decider == nil {
		p.Decider = decision.NewEngine()
	}
	return &Worker{
		store:    store,
		pipeline: p,
		config:   cfg,
		queue:    queue.NewChannel(cfg.QueueSize),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue schedules evtID on the in-process queue without blocking.
func (w *Worker) Enqueue(ctx context.Context, evtID id.ID) error {
	if err := w.queue.Enqueue(ctx, evtID); err != nil {
		return err
	}
	w.config.Metrics.QueueIn()
	return nil
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.consume(ctx)
		}()
	}
}

// Stop cancels the consumers and waits for in-flight events, or until ctx
// is done. Events left in the queue stay pending for the drain.
func (w *Worker) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "worker stop timed out with events in flight")
	}
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evtID, ok := <-w.queue.C():
			if !ok {
				return
			}
			w.config.Metrics.QueueOut()
			// In-flight events finish under ProcessTimeout even when Stop
			// cancels the consumers.
			if _, err := w.Process(context.WithoutCancel(ctx), evtID); err != nil {
				w.logger.ErrorContext(ctx, "process failed", "event_id", evtID.String(), "error", err)
			}
		}
	}
}
