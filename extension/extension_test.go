package extension_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/extension"
	"github.com/xraph/replydesk/store/memory"
	"github.com/xraph/replydesk/vault"
)

func TestInitRequiresStore(t *testing.T) {
	ext := extension.New()
	if err := ext.Init(context.Background()); !errors.Is(err, replydesk.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
	if err := ext.Start(context.Background()); !errors.Is(err, extension.ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
}

func TestResolvedFillsZeroFields(t *testing.T) {
	cfg := extension.Config{}
	cfg.Concurrency = 3
	got := cfg.Resolved()

	def := replydesk.DefaultConfig()
	if got.Concurrency != 3 {
		t.Fatalf("Concurrency = %d, want 3", got.Concurrency)
	}
	if got.ProcessTimeout != def.ProcessTimeout || got.RateLimit != def.RateLimit || got.SuggestionTTL != def.SuggestionTTL {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestHandlerMountedUnderPrefix(t *testing.T) {
	cfg := extension.DefaultConfig()
	cfg.Vault = vault.Config{Keys: map[int]string{1: strings.Repeat("x", 32)}, Current: 1}
	cfg.DrainInterval = 0

	ext := extension.New(
		extension.WithStore(memory.New()),
		extension.WithConfig(cfg),
		extension.WithPrefix("/desk"),
	)
	if err := ext.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := ext.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ext.Stop(ctx)
	}()

	srv := httptest.NewServer(ext.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/desk/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	if err := ext.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
