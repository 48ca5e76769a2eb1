package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/forge"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/api"
	"github.com/xraph/replydesk/queue"
	"github.com/xraph/replydesk/store"
	"github.com/xraph/replydesk/vault"
)

// ErrNotInitialized is returned when the extension is used before Init.
var ErrNotInitialized = errors.New("extension: not initialized")

// Extension mounts a Desk into a Forge application.
type Extension struct {
	config Config
	store  store.Store
	opts   []replydesk.Option
	logger *slog.Logger

	desk *replydesk.Desk
}

// New creates a new extension.
func New(opts ...ExtOption) *Extension {
	e := &Extension{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init builds the Desk and, unless disabled, migrates the store.
func (e *Extension) Init(ctx context.Context) error {
	if e.store == nil {
		return replydesk.ErrNoStore
	}
	if !e.config.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("extension: migrate: %w", err)
		}
	}

	v, err := vault.New(e.config.Vault)
	if err != nil {
		return fmt.Errorf("extension: vault: %w", err)
	}

	opts := []replydesk.Option{
		replydesk.WithConfig(e.config.Resolved()),
		replydesk.WithStore(e.store),
		replydesk.WithVault(v),
		replydesk.WithLogger(e.logger),
	}
	if e.config.QueueURL != "" {
		opts = append(opts, replydesk.WithEnqueuer(
			queue.NewHTTP(e.config.QueueURL, e.config.QueueSecret, e.config.QueueTimeout),
		))
	}

	d, err := replydesk.New(append(opts, e.opts...)...)
	if err != nil {
		return err
	}
	e.desk = d
	return nil
}

// Start starts the worker pool and maintenance schedule.
func (e *Extension) Start(ctx context.Context) error {
	if e.desk == nil {
		return ErrNotInitialized
	}
	return e.desk.Start(ctx)
}

// Stop drains in-flight work and closes the store.
func (e *Extension) Stop(ctx context.Context) error {
	if e.desk == nil {
		return nil
	}
	e.desk.Stop(ctx)
	return e.store.Close()
}

// Health pings the store.
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return replydesk.ErrNoStore
	}
	return e.store.Ping(ctx)
}

// Desk returns the running Desk, or nil before Init.
func (e *Extension) Desk() *replydesk.Desk { return e.desk }

// Handler returns the full HTTP surface, including the webhook and the
// internal triggers, mounted under BasePath. It can be used standalone
// without Forge.
func (e *Extension) Handler() http.Handler {
	h := api.NewHandler(e.desk, api.Secrets{
		ProcessSecret: e.config.ProcessSecret,
		DrainSecret:   e.config.DrainSecret,
		QueueSecret:   e.config.QueueSecret,
	}, e.logger)

	prefix := strings.TrimSuffix(e.config.BasePath, "/")
	if prefix == "" {
		return h
	}
	return http.StripPrefix(prefix, h)
}

// RegisterRoutes registers the review and admin routes on router with
// OpenAPI metadata.
func (e *Extension) RegisterRoutes(router forge.Router, log forge.Logger) {
	if e.config.DisableRoutes || e.desk == nil {
		return
	}
	api.NewForgeAPI(e.desk, log).RegisterRoutes(router)
}

// Prefix returns the configured URL prefix.
func (e *Extension) Prefix() string { return e.config.BasePath }
