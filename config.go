package replydesk

import (
	"time"

	"github.com/xraph/replydesk/maintenance"
)

// Config holds the configuration for a Desk.
type Config struct {
	// Concurrency is the number of worker goroutines consuming the queue.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// QueueSize bounds the in-process queue. A full queue leaves events
	// pending for the drain.
	QueueSize int `json:"queue_size" yaml:"queue_size" mapstructure:"queue_size"`

	// ProcessTimeout bounds one event's processing. An event that runs
	// out of time is failed, never left processing.
	ProcessTimeout time.Duration `json:"process_timeout" yaml:"process_timeout" mapstructure:"process_timeout"`

	// DrainInterval is how often pending events are swept. Zero disables
	// the scheduled drain.
	DrainInterval time.Duration `json:"drain_interval" yaml:"drain_interval" mapstructure:"drain_interval"`

	// DrainGrace is how long an event must have been pending before the
	// drain takes it, so it does not race the queue.
	DrainGrace time.Duration `json:"drain_grace" yaml:"drain_grace" mapstructure:"drain_grace"`

	// DrainBatchSize is the maximum number of events per drain.
	DrainBatchSize int `json:"drain_batch_size" yaml:"drain_batch_size" mapstructure:"drain_batch_size"`

	// StaleProcessingAfter is how long an event may stay processing before
	// the drain fails it as abandoned.
	StaleProcessingAfter time.Duration `json:"stale_processing_after" yaml:"stale_processing_after" mapstructure:"stale_processing_after"`

	// SendAttempts bounds outbound push attempts per event.
	SendAttempts int `json:"send_attempts" yaml:"send_attempts" mapstructure:"send_attempts"`

	// SendRetrySchedule is the backoff between push attempts.
	SendRetrySchedule []time.Duration `json:"send_retry_schedule" yaml:"send_retry_schedule" mapstructure:"send_retry_schedule"`

	// PushURL overrides the platform push endpoint.
	PushURL string `json:"push_url" yaml:"push_url" mapstructure:"push_url"`

	// PushTimeout is the HTTP timeout per push attempt.
	PushTimeout time.Duration `json:"push_timeout" yaml:"push_timeout" mapstructure:"push_timeout"`

	// PushRate throttles pushes per second across tenants. Zero disables.
	PushRate float64 `json:"push_rate" yaml:"push_rate" mapstructure:"push_rate"`

	// ConfidenceThreshold is the minimum confidence for an automatic reply.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold"`

	// SuggestionTTL is how long a draft stays approvable.
	SuggestionTTL time.Duration `json:"suggestion_ttl" yaml:"suggestion_ttl" mapstructure:"suggestion_ttl"`

	// IdempotencyTTL is how long the ledger remembers an upstream event.
	IdempotencyTTL time.Duration `json:"idempotency_ttl" yaml:"idempotency_ttl" mapstructure:"idempotency_ttl"`

	// RateLimit is the number of events allowed per RateWindow for one
	// bot and end user.
	RateLimit int `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// RateWindow is the fixed rate-limit window.
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window" mapstructure:"rate_window"`

	// KnowledgeLimit is the number of knowledge entries retrieved.
	KnowledgeLimit int `json:"knowledge_limit" yaml:"knowledge_limit" mapstructure:"knowledge_limit"`

	// KnowledgeMaxChars caps the retrieved text.
	KnowledgeMaxChars int `json:"knowledge_max_chars" yaml:"knowledge_max_chars" mapstructure:"knowledge_max_chars"`

	// Retention is how long events are kept per status.
	Retention maintenance.Retention `json:"retention" yaml:"retention" mapstructure:"retention"`

	// ShutdownTimeout is the maximum time to wait for in-flight events on
	// shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultSendRetrySchedule is the backoff between push attempts. It stays
// well inside the default process timeout.
var DefaultSendRetrySchedule = []time.Duration{
	500 * time.Millisecond,
	2 * time.Second,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:          10,
		QueueSize:            1000,
		ProcessTimeout:       15 * time.Second,
		DrainInterval:        time.Minute,
		DrainGrace:           30 * time.Second,
		DrainBatchSize:       100,
		StaleProcessingAfter: 5 * time.Minute,
		SendAttempts:         3,
		SendRetrySchedule:    DefaultSendRetrySchedule,
		PushTimeout:          10 * time.Second,
		ConfidenceThreshold:  0.6,
		SuggestionTTL:        24 * time.Hour,
		IdempotencyTTL:       time.Hour,
		RateLimit:            20,
		RateWindow:           time.Minute,
		KnowledgeLimit:       3,
		KnowledgeMaxChars:    2000,
		Retention:            maintenance.DefaultRetention(),
		ShutdownTimeout:      30 * time.Second,
	}
}
