package extension

import (
	"time"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/maintenance"
	"github.com/xraph/replydesk/vault"
)

// Config holds configuration for the replydesk Forge extension.
// Fields can be set programmatically via ExtOption functions or loaded from
// YAML configuration files (under "extensions.replydesk" or "replydesk" keys).
type Config struct {
	// Config embeds the core pipeline configuration.
	replydesk.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all routes (default: "/replydesk").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrate disables automatic database migration on Init.
	DisableMigrate bool `json:"disable_migrate" yaml:"disable_migrate" mapstructure:"disable_migrate"`

	// Vault holds the credential master keys.
	Vault vault.Config `json:"vault" yaml:"vault" mapstructure:"vault"`

	// ProcessSecret is the bearer token of the process trigger.
	ProcessSecret string `json:"-" yaml:"process_secret" mapstructure:"process_secret"`

	// DrainSecret is the bearer token of the drain trigger.
	DrainSecret string `json:"-" yaml:"drain_secret" mapstructure:"drain_secret"`

	// QueueSecret signs queue callbacks to the process trigger.
	QueueSecret string `json:"-" yaml:"queue_secret" mapstructure:"queue_secret"`

	// QueueURL, when set, replaces the in-process queue with a signed POST
	// per event to this URL.
	QueueURL string `json:"queue_url" yaml:"queue_url" mapstructure:"queue_url"`

	// QueueTimeout bounds a queue POST.
	QueueTimeout time.Duration `json:"queue_timeout" yaml:"queue_timeout" mapstructure:"queue_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:       replydesk.DefaultConfig(),
		BasePath:     "/replydesk",
		QueueTimeout: 5 * time.Second,
	}
}

// Resolved returns the pipeline configuration with every zero field taken
// from the defaults, so a partial YAML section is enough.
func (c Config) Resolved() replydesk.Config {
	out := c.Config
	def := replydesk.DefaultConfig()

	if out.Concurrency <= 0 {
		out.Concurrency = def.Concurrency
	}
	if out.QueueSize <= 0 {
		out.QueueSize = def.QueueSize
	}
	if out.ProcessTimeout <= 0 {
		out.ProcessTimeout = def.ProcessTimeout
	}
	if out.DrainGrace <= 0 {
		out.DrainGrace = def.DrainGrace
	}
	if out.DrainBatchSize <= 0 {
		out.DrainBatchSize = def.DrainBatchSize
	}
	if out.StaleProcessingAfter <= 0 {
		out.StaleProcessingAfter = def.StaleProcessingAfter
	}
	if out.SendAttempts <= 0 {
		out.SendAttempts = def.SendAttempts
	}
	if len(out.SendRetrySchedule) == 0 {
		out.SendRetrySchedule = def.SendRetrySchedule
	}
	if out.PushTimeout <= 0 {
		out.PushTimeout = def.PushTimeout
	}
	if out.ConfidenceThreshold <= 0 {
		out.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if out.SuggestionTTL <= 0 {
		out.SuggestionTTL = def.SuggestionTTL
	}
	if out.IdempotencyTTL <= 0 {
		out.IdempotencyTTL = def.IdempotencyTTL
	}
	if out.RateLimit <= 0 {
		out.RateLimit = def.RateLimit
	}
	if out.RateWindow <= 0 {
		out.RateWindow = def.RateWindow
	}
	if out.KnowledgeLimit <= 0 {
		out.KnowledgeLimit = def.KnowledgeLimit
	}
	if out.KnowledgeMaxChars <= 0 {
		out.KnowledgeMaxChars = def.KnowledgeMaxChars
	}
	if out.Retention == (maintenance.Retention{}) {
		out.Retention = def.Retention
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = def.ShutdownTimeout
	}
	return out
}
