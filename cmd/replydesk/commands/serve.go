package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/extension"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/store/memory"
	redisstore "github.com/xraph/replydesk/store/redis"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long: `Start the HTTP server: platform webhooks, the internal process and
drain triggers, and the review API, all under replydesk.base_path.

Tenants and knowledge entries listed in the config file are loaded at
startup.

Examples:
  replydesk serve
  replydesk serve --addr :9000
  replydesk serve --config ./replydesk.yaml`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger := newLogger(cfg.Logging, verbose)
	slog.SetDefault(logger)
	if path != "" {
		logger.Info("config loaded", "path", path)
	}

	extOpts := []extension.ExtOption{
		extension.WithConfig(cfg.Desk),
		extension.WithStore(memory.New()),
		extension.WithLogger(logger),
	}

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		rails := redisstore.NewRails(rdb)
		extOpts = append(extOpts,
			extension.WithDeskOption(replydesk.WithIdempotencyStore(rails)),
			extension.WithDeskOption(replydesk.WithRateCounter(rails)),
		)
		logger.Info("redis rails enabled", "addr", cfg.Redis.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if rdb != nil {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	}

	ext := extension.New(extOpts...)
	if err := ext.Init(ctx); err != nil {
		return fmt.Errorf("initializing desk: %w", err)
	}
	if err := seed(ctx, ext.Desk(), cfg, logger); err != nil {
		return err
	}
	if err := ext.Start(ctx); err != nil {
		return fmt.Errorf("starting desk: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mount(ext),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("replydesk listening", "addr", cfg.Server.Addr, "base_path", ext.Prefix())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping...")
	case err := <-serveErr:
		if err != nil {
			_ = ext.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ext.Desk().Config().ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := ext.Stop(shutdownCtx); err != nil {
		logger.Warn("desk shutdown", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// mount serves the extension handler under its base path.
func mount(ext *extension.Extension) http.Handler {
	prefix := strings.TrimSuffix(ext.Prefix(), "/")
	if prefix == "" {
		return ext.Handler()
	}
	mux := http.NewServeMux()
	mux.Handle(prefix+"/", ext.Handler())
	return mux
}

// seed loads the tenants and knowledge entries listed in the config.
func seed(ctx context.Context, d *replydesk.Desk, cfg *Config, logger *slog.Logger) error {
	for _, t := range cfg.Tenants {
		_, err := d.Credentials().Save(ctx, t.ID, credential.Secrets{
			BotID:         t.BotID,
			ChannelSecret: t.ChannelSecret,
			AccessToken:   t.AccessToken,

			ConfidenceThreshold: t.ConfidenceThreshold,
		})
		if err != nil {
			return fmt.Errorf("seeding tenant %s: %w", t.ID, err)
		}
	}
	for _, k := range cfg.Knowledge {
		e := &knowledge.Entry{
			Entity:   entity.New(),
			ID:       id.NewEntryID(),
			TenantID: k.Tenant,
			Title:    k.Title,
			Category: k.Category,
			Content:  k.Content,
		}
		if err := d.Store().PutEntry(ctx, e); err != nil {
			return fmt.Errorf("seeding knowledge %q: %w", k.Title, err)
		}
	}
	if len(cfg.Tenants) > 0 || len(cfg.Knowledge) > 0 {
		logger.Info("seed data loaded", "tenants", len(cfg.Tenants), "knowledge", len(cfg.Knowledge))
	}
	return nil
}

func newLogger(cfg LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
