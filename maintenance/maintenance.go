// Package maintenance runs the periodic housekeeping of the pipeline on a
// cron schedule: draining pending events, failing abandoned ones, purging
// by retention, expiring drafts and sweeping process-local fallbacks.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/replydesk/event"
)

// Drainer re-runs pending events and fails abandoned ones. worker.Worker
// implements it.
type Drainer interface {
	Drain(ctx context.Context) (int, error)
	RecoverStale(ctx context.Context) (int, error)
}

// Store is the persistence the purge and expiry jobs need.
type Store interface {
	PurgeEvents(ctx context.Context, status event.Status, before time.Time) (int64, error)
	ExpireSuggestions(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper drops expired process-local records.
type Sweeper interface {
	Sweep() int
}

// Retention is how long events are kept in each status.
type Retention struct {
	Done    time.Duration `json:"done" yaml:"done" mapstructure:"done"`
	Failed  time.Duration `json:"failed" yaml:"failed" mapstructure:"failed"`
	Pending time.Duration `json:"pending" yaml:"pending" mapstructure:"pending"`
}

// DefaultRetention keeps processed events a week, failed ones a month and
// unprocessed ones a day.
func DefaultRetention() Retention {
	return Retention{
		Done:    7 * 24 * time.Hour,
		Failed:  30 * 24 * time.Hour,
		Pending: 24 * time.Hour,
	}
}

// Config holds the schedules. Each accepts a 5-field cron expression or a
// descriptor such as "@every 1m". An empty schedule disables the job.
type Config struct {
	DrainSchedule  string
	PurgeSchedule  string
	ExpireSchedule string
	Retention      Retention
}

// DefaultConfig returns the default schedules.
func DefaultConfig() Config {
	return Config{
		DrainSchedule:  "@every 1m",
		PurgeSchedule:  "@hourly",
		ExpireSchedule: "@every 5m",
		Retention:      DefaultRetention(),
	}
}

// Scheduler owns the cron runner.
type Scheduler struct {
	drainer  Drainer
	store    Store
	sweepers []Sweeper
	config   Config
	logger   *slog.Logger
	now      func() time.Time

	cron *cron.Cron
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSweepers adds process-local stores to sweep with the purge job.
func WithSweepers(s ...Sweeper) Option {
	return func(sc *Scheduler) { sc.sweepers = append(sc.sweepers, s...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(sc *Scheduler) { sc.now = now }
}

// New creates a Scheduler. Zero retention fields take their defaults.
func New(drainer Drainer, store Store, cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultRetention()
	if cfg.Retention.Done <= 0 {
		cfg.Retention.Done = def.Done
	}
	if cfg.Retention.Failed <= 0 {
		cfg.Retention.Failed = def.Failed
	}
	if cfg.Retention.Pending <= 0 {
		cfg.Retention.Pending = def.Pending
	}
	s := &Scheduler{
		drainer: drainer,
		store:   store,
		config:  cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the jobs and starts the cron runner. Jobs run with ctx
// and skip a tick while their previous run is still going.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(
		cron.WithParser(cron.NewParser(
			cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
		)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{"drain", s.config.DrainSchedule, s.RunDrain},
		{"purge", s.config.PurgeSchedule, s.RunPurge},
		{"expire", s.config.ExpireSchedule, s.RunExpire},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		run := j.run
		if _, err := s.cron.AddFunc(j.schedule, func() { run(ctx) }); err != nil {
			return err
		}
		s.logger.Info("maintenance job scheduled", "job", j.name, "schedule", j.schedule)
	}

	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "maintenance stop timed out")
	}
}

// RunDrain fails abandoned processing events, then drains pending ones.
func (s *Scheduler) RunDrain(ctx context.Context) {
	if s.drainer == nil {
		return
	}
	if n, err := s.drainer.RecoverStale(ctx); err != nil {
		s.logger.ErrorContext(ctx, "stale recovery failed", "error", err)
	} else if n > 0 {
		s.logger.WarnContext(ctx, "abandoned events failed", "count", n)
	}
	if _, err := s.drainer.Drain(ctx); err != nil {
		s.logger.ErrorContext(ctx, "drain failed", "error", err)
	}
}

// RunPurge deletes events past their retention and sweeps fallbacks.
func (s *Scheduler) RunPurge(ctx context.Context) {
	now := s.now()
	for status, keep := range map[event.Status]time.Duration{
		event.StatusDone:    s.config.Retention.Done,
		event.StatusFailed:  s.config.Retention.Failed,
		event.StatusPending: s.config.Retention.Pending,
	} {
		n, err := s.store.PurgeEvents(ctx, status, now.Add(-keep))
		if err != nil {
			s.logger.ErrorContext(ctx, "purge failed", "status", status, "error", err)
			continue
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "events purged", "status", status, "count", n)
		}
	}

	swept := 0
	for _, sw := range s.sweepers {
		swept += sw.Sweep()
	}
	if swept > 0 {
		s.logger.DebugContext(ctx, "fallback records swept", "count", swept)
	}
}

// RunExpire moves drafts past their expiry to expired.
func (s *Scheduler) RunExpire(ctx context.Context) {
	n, err := s.store.ExpireSuggestions(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "suggestion expiry failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "suggestions expired", "count", n)
	}
}
