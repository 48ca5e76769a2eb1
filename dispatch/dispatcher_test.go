package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/dispatch"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/idempotency"
	"github.com/xraph/replydesk/queue"
	"github.com/xraph/replydesk/ratelimit"
	"github.com/xraph/replydesk/signature"
	"github.com/xraph/replydesk/store/memory"
)

const (
	tenant = "t1"
	secret = "channel-secret"
)

type resolver struct{}

func (resolver) Resolve(_ context.Context, tenantID string) (*credential.Secrets, error) {
	if tenantID != tenant {
		return nil, replydesk.ErrCredentialNotFound
	}
	return &credential.Secrets{BotID: "Ubot", ChannelSecret: secret, AccessToken: "tok"}, nil
}

const twoEvents = `{"destination":"Ubot","events":[
 {"type":"message","webhookEventId":"W1","timestamp":1700000000000,"source":{"type":"user","userId":"U1"},"message":{"id":"m1","type":"text","text":"hi"}},
 {"type":"message","webhookEventId":"W2","timestamp":1700000000001,"source":{"type":"user","userId":"U2"},"message":{"id":"m2","type":"text","text":"hello"}}
]}`

func isDup(err error) bool { return errors.Is(err, replydesk.ErrDuplicateEvent) }

func newDispatcher(t *testing.T, store *memory.Store, q queue.Enqueuer, opts ...dispatch.Option) *dispatch.Dispatcher {
	t.Helper()
	opts = append([]dispatch.Option{dispatch.WithDuplicateCheck(isDup)}, opts...)
	d, err := dispatch.New(store, resolver{}, q, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func pending(t *testing.T, store *memory.Store) []*event.InboundEvent {
	t.Helper()
	st := event.StatusPending
	list, err := store.ListEvents(context.Background(), event.ListOpts{TenantID: tenant, Status: &st})
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func TestDispatchPersistsAndEnqueues(t *testing.T) {
	store := memory.New()
	q := queue.NewChannel(10)
	d := newDispatcher(t, store, q)

	body := []byte(twoEvents)
	res, err := d.Dispatch(context.Background(), tenant, body, signature.SignBody(body, secret))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Accepted != 2 || res.Unqueued != 0 {
		t.Fatalf("result = %+v", res)
	}
	if q.Len() != 2 {
		t.Fatalf("queued = %d, want 2", q.Len())
	}

	events := pending(t, store)
	if len(events) != 2 {
		t.Fatalf("pending = %d, want 2", len(events))
	}
	for _, evt := range events {
		if evt.BotID != "Ubot" || evt.ContactID == "" || len(evt.Payload) == 0 {
			t.Fatalf("event = %+v", evt)
		}
	}
}

func TestDispatchRejectsBadSignature(t *testing.T) {
	store := memory.New()
	d := newDispatcher(t, store, queue.NewChannel(10))

	body := []byte(twoEvents)
	for name, sig := range map[string]string{
		"wrong secret": signature.SignBody(body, "other"),
		"empty":        "",
		"garbage":      "not-base64!",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tenant, body, sig)
			if !errors.Is(err, signature.ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
	if n := len(pending(t, store)); n != 0 {
		t.Fatalf("persisted %d events after signature failure", n)
	}
}

func TestDispatchUnknownTenant(t *testing.T) {
	d := newDispatcher(t, memory.New(), nil)
	body := []byte(twoEvents)

	_, err := d.Dispatch(context.Background(), "nobody", body, signature.SignBody(body, secret))
	if !errors.Is(err, signature.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestDispatchRedeliveryIsDuplicate(t *testing.T) {
	store := memory.New()
	d := newDispatcher(t, store, nil)
	body := []byte(twoEvents)
	sig := signature.SignBody(body, secret)

	if _, err := d.Dispatch(context.Background(), tenant, body, sig); err != nil {
		t.Fatal(err)
	}
	res, err := d.Dispatch(context.Background(), tenant, body, sig)
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted != 0 || res.Duplicates != 2 {
		t.Fatalf("result = %+v", res)
	}
	if n := len(pending(t, store)); n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}
}

func TestDispatchSkipsLedgerKnownEvents(t *testing.T) {
	store := memory.New()
	ledger := idempotency.New(nil)
	ledger.MarkProcessed(context.Background(), "W1", tenant)
	d := newDispatcher(t, store, nil, dispatch.WithLedger(ledger))

	body := []byte(twoEvents)
	res, err := d.Dispatch(context.Background(), tenant, body, signature.SignBody(body, secret))
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted != 1 || res.Duplicates != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestDispatchInvalidEnvelopeAcknowledged(t *testing.T) {
	store := memory.New()
	d := newDispatcher(t, store, nil)

	for _, body := range []string{
		`not json`,
		`{"destination":"Ubot"}`,
		`{"events":[{"type":"message"}]}`,
		`{"events":"nope"}`,
	} {
		res, err := d.Dispatch(context.Background(), tenant, []byte(body), signature.SignBody([]byte(body), secret))
		if err != nil {
			t.Fatalf("%s: err = %v", body, err)
		}
		if res.Accepted != 0 {
			t.Fatalf("%s: accepted %d", body, res.Accepted)
		}
	}
	if n := len(pending(t, store)); n != 0 {
		t.Fatalf("persisted %d events from invalid bodies", n)
	}
}

func TestDispatchRateLimited(t *testing.T) {
	store := memory.New()
	limiter := ratelimit.New(ratelimit.NewMemoryCounter(), ratelimit.WithLimit(1))
	d := newDispatcher(t, store, nil, dispatch.WithLimiter(limiter))

	body := []byte(`{"destination":"Ubot","events":[
 {"type":"message","webhookEventId":"A","source":{"type":"user","userId":"U1"},"message":{"id":"1","type":"text","text":"a"}},
 {"type":"message","webhookEventId":"B","source":{"type":"user","userId":"U1"},"message":{"id":"2","type":"text","text":"b"}},
 {"type":"message","webhookEventId":"C","source":{"type":"user","userId":"U2"},"message":{"id":"3","type":"text","text":"c"}}
]}`)
	res, err := d.Dispatch(context.Background(), tenant, body, signature.SignBody(body, secret))
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted != 2 || res.RateLimited != 1 {
		t.Fatalf("result = %+v", res)
	}
}

// botlessResolver knows every tenant but has no bot id on record.
type botlessResolver struct{}

func (botlessResolver) Resolve(_ context.Context, tenantID string) (*credential.Secrets, error) {
	return &credential.Secrets{ChannelSecret: secret + "-" + tenantID, AccessToken: "tok"}, nil
}

func TestDispatchRateLimitIsPerTenantWithoutBotID(t *testing.T) {
	store := memory.New()
	limiter := ratelimit.New(ratelimit.NewMemoryCounter(), ratelimit.WithLimit(1))
	d, err := dispatch.New(store, botlessResolver{}, nil,
		dispatch.WithDuplicateCheck(isDup), dispatch.WithLimiter(limiter))
	if err != nil {
		t.Fatal(err)
	}

	// No destination: the only scope left is the tenant.
	body := []byte(`{"events":[
 {"type":"message","webhookEventId":"X1","source":{"type":"user","userId":"U1"},"message":{"id":"1","type":"text","text":"a"}}
]}`)
	for _, tenantID := range []string{"tenant-a", "tenant-b"} {
		res, err := d.Dispatch(context.Background(), tenantID, body, signature.SignBody(body, secret+"-"+tenantID))
		if err != nil {
			t.Fatalf("%s: %v", tenantID, err)
		}
		if res.Accepted != 1 || res.RateLimited != 0 {
			t.Fatalf("%s: result = %+v, want accepted", tenantID, res)
		}
	}

	// The same tenant is still limited.
	again := []byte(`{"events":[
 {"type":"message","webhookEventId":"X2","source":{"type":"user","userId":"U1"},"message":{"id":"2","type":"text","text":"b"}}
]}`)
	res, err := d.Dispatch(context.Background(), "tenant-a", again, signature.SignBody(again, secret+"-tenant-a"))
	if err != nil {
		t.Fatal(err)
	}
	if res.RateLimited != 1 {
		t.Fatalf("result = %+v, want rate limited", res)
	}
}

func TestDispatchEnqueueFailureLeavesPending(t *testing.T) {
	store := memory.New()
	q := queue.NewChannel(1)
	d := newDispatcher(t, store, q)

	body := []byte(twoEvents)
	res, err := d.Dispatch(context.Background(), tenant, body, signature.SignBody(body, secret))
	if err != nil {
		t.Fatalf("enqueue failure must not fail the webhook: %v", err)
	}
	if res.Accepted != 2 || res.Unqueued != 1 {
		t.Fatalf("result = %+v", res)
	}
	if n := len(pending(t, store)); n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}
}

func TestExternalIDSynthesized(t *testing.T) {
	raw := []byte(`{"type":"message","source":{"type":"user","userId":"U1"}}`)
	pe := &event.PlatformEvent{}

	a := dispatch.ExternalID(tenant, pe, raw)
	b := dispatch.ExternalID(tenant, pe, raw)
	if a == "" || a != b {
		t.Fatalf("synthesized ids %q and %q differ", a, b)
	}
	if c := dispatch.ExternalID("t2", pe, raw); c == a {
		t.Fatal("synthesized id ignores tenant")
	}
	if got := dispatch.ExternalID(tenant, &event.PlatformEvent{WebhookEventID: "W9"}, raw); got != "W9" {
		t.Fatalf("got %q, want platform id", got)
	}
}
