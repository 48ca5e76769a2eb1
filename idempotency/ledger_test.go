package idempotency_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/replydesk/idempotency"
)

var errDown = errors.New("store down")

// downStore fails every call.
type downStore struct{ calls atomic.Int32 }

func (d *downStore) SetIfAbsent(context.Context, string, time.Duration) (bool, error) {
	d.calls.Add(1)
	return false, errDown
}

func (d *downStore) Exists(context.Context, string) (bool, error) {
	d.calls.Add(1)
	return false, errDown
}

func TestKeyIncludesTenant(t *testing.T) {
	if got := idempotency.Key("t1", "e1"); got != "event:t1:e1" {
		t.Fatalf("Key() = %q", got)
	}
	if idempotency.Key("t1", "e1") == idempotency.Key("t2", "e1") {
		t.Fatal("keys for different tenants must differ")
	}
}

func TestClaimOnce(t *testing.T) {
	ctx := context.Background()
	l := idempotency.New(idempotency.NewMemoryStore())

	if l.IsProcessed(ctx, "e1", "t1") {
		t.Fatal("fresh event reported as processed")
	}
	if !l.Claim(ctx, "e1", "t1") {
		t.Fatal("first claim should succeed")
	}
	if l.Claim(ctx, "e1", "t1") {
		t.Fatal("second claim should fail")
	}
	if !l.IsProcessed(ctx, "e1", "t1") {
		t.Fatal("claimed event should be processed")
	}
	if !l.Claim(ctx, "e1", "t2") {
		t.Fatal("same event id for another tenant should be claimable")
	}
}

func TestConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	l := idempotency.New(idempotency.NewMemoryStore())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Claim(ctx, "evt-race", "tenant") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	store := idempotency.NewMemoryStore()
	store.SetClock(func() time.Time { return now })

	l := idempotency.New(store, idempotency.WithTTL(time.Hour))
	l.MarkProcessed(ctx, "e1", "t1")

	now = now.Add(59 * time.Minute)
	if !l.IsProcessed(ctx, "e1", "t1") {
		t.Fatal("marker should still be live")
	}

	now = now.Add(2 * time.Minute)
	if l.IsProcessed(ctx, "e1", "t1") {
		t.Fatal("marker should have expired")
	}
	if !l.Claim(ctx, "e1", "t1") {
		t.Fatal("expired marker should be claimable again")
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	store := idempotency.NewMemoryStore()
	store.SetClock(func() time.Time { return now })

	_, _ = store.SetIfAbsent(ctx, "a", time.Minute)
	_, _ = store.SetIfAbsent(ctx, "b", time.Hour)

	now = now.Add(2 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("Sweep() removed %d, want 1", removed)
	}
}

func TestPrimaryOutageUsesFallback(t *testing.T) {
	ctx := context.Background()
	primary := &downStore{}
	l := idempotency.New(primary)

	if !l.Claim(ctx, "e1", "t1") {
		t.Fatal("first claim through fallback should succeed")
	}
	if l.Claim(ctx, "e1", "t1") {
		t.Fatal("fallback should dedupe the second claim")
	}
	if primary.calls.Load() == 0 {
		t.Fatal("primary store was never consulted")
	}
}

func TestTotalOutageFailsOpen(t *testing.T) {
	ctx := context.Background()
	l := idempotency.New(&downStore{}, idempotency.WithFallback(&downStore{}))

	if l.IsProcessed(ctx, "e1", "t1") {
		t.Fatal("outage should report not processed")
	}
	if !l.Claim(ctx, "e1", "t1") {
		t.Fatal("outage should let the claim through")
	}
}
