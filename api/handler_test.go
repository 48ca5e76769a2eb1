package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/api"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/platform"
	"github.com/xraph/replydesk/queue"
	"github.com/xraph/replydesk/signature"
	"github.com/xraph/replydesk/store/memory"
	"github.com/xraph/replydesk/suggestion"
	"github.com/xraph/replydesk/vault"
)

const (
	tenant        = "t1"
	channelSecret = "chan-secret"
	processSecret = "process-secret"
	drainSecret   = "drain-secret"
	queueSecret   = "queue-secret"
)

type okClient struct{}

func (okClient) Push(context.Context, platform.PushRequest) platform.Result {
	return platform.Result{StatusCode: 200}
}

type droppingQueue struct{}

func (droppingQueue) Enqueue(context.Context, id.ID) error { return nil }

// testServer creates a Handler over a memory-backed Desk whose queue drops
// everything, so tests drive processing through the triggers.
func testServer(t *testing.T) (*httptest.Server, *replydesk.Desk) {
	t.Helper()
	return testServerWith(t, okClient{})
}

func testServerWith(t *testing.T, client platform.Client) (*httptest.Server, *replydesk.Desk) {
	t.Helper()

	v, err := vault.New(vault.Config{Keys: map[int]string{1: strings.Repeat("a", 32)}, Current: 1})
	if err != nil {
		t.Fatal(err)
	}
	cfg := replydesk.DefaultConfig()
	cfg.DrainGrace = time.Nanosecond
	cfg.DrainInterval = 0

	d, err := replydesk.New(
		replydesk.WithConfig(cfg),
		replydesk.WithStore(memory.New()),
		replydesk.WithVault(v),
		replydesk.WithPlatformClient(client),
		replydesk.WithEnqueuer(droppingQueue{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Credentials().Save(context.Background(), tenant, credential.Secrets{
		BotID: "Ubot", ChannelSecret: channelSecret, AccessToken: "tok",
	}); err != nil {
		t.Fatal(err)
	}

	h := api.NewHandler(d, api.Secrets{
		ProcessSecret: processSecret,
		DrainSecret:   drainSecret,
		QueueSecret:   queueSecret,
	}, nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, d
}

func do(t *testing.T, method, url string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func webhookBody(eventID, text string) []byte {
	return []byte(`{"destination":"Ubot","events":[{"type":"message","webhookEventId":"` + eventID +
		`","timestamp":1700000000000,"source":{"type":"user","userId":"U1"},"message":{"id":"m1","type":"text","text":"` + text + `"}}]}`)
}

func postWebhook(t *testing.T, srv *httptest.Server, body []byte, sig string) *http.Response {
	t.Helper()
	return do(t, http.MethodPost, srv.URL+"/webhooks/"+tenant, body, map[string]string{api.SignatureHeader: sig})
}

func firstEventID(t *testing.T, d *replydesk.Desk) string {
	t.Helper()
	list, err := d.Store().ListEvents(context.Background(), event.ListOpts{TenantID: tenant})
	if err != nil || len(list) == 0 {
		t.Fatalf("no events (err %v)", err)
	}
	return list[0].ID.String()
}

func TestWebhook(t *testing.T) {
	srv, _ := testServer(t)
	body := webhookBody("W1", "hello")

	tests := []struct {
		name string
		sig  string
		want int
	}{
		{"bad signature", signature.SignBody(body, "nope"), http.StatusUnauthorized},
		{"missing signature", "", http.StatusUnauthorized},
		{"valid", signature.SignBody(body, channelSecret), http.StatusOK},
		{"redelivery", signature.SignBody(body, channelSecret), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postWebhook(t, srv, body, tt.sig)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestWebhookInvalidEnvelopeStillOK(t *testing.T) {
	srv, d := testServer(t)
	body := []byte(`{"nope":true}`)

	resp := postWebhook(t, srv, body, signature.SignBody(body, channelSecret))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	stats, _ := d.Stats(context.Background())
	if stats[event.StatusPending] != 0 {
		t.Fatal("invalid envelope persisted events")
	}
}

func TestWebhookOversizedBodyAcknowledged(t *testing.T) {
	srv, d := testServer(t)
	body := bytes.Repeat([]byte("x"), 1<<20+512)

	resp := postWebhook(t, srv, body, signature.SignBody(body, channelSecret))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	list, _ := d.Store().ListEvents(context.Background(), event.ListOpts{TenantID: tenant})
	if len(list) != 0 {
		t.Fatalf("events = %d, want 0", len(list))
	}
}

func TestProcessTrigger(t *testing.T) {
	srv, d := testServer(t)
	body := webhookBody("W1", "hello")
	resp := postWebhook(t, srv, body, signature.SignBody(body, channelSecret))
	resp.Body.Close()

	msg, _ := json.Marshal(queue.Message{EventID: firstEventID(t, d)})

	t.Run("unauthorized", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/internal/process", msg, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("stale queue signature", func(t *testing.T) {
		ts := time.Now().Add(-time.Hour).Unix()
		resp := do(t, http.MethodPost, srv.URL+"/internal/process", msg, map[string]string{
			queue.HeaderSignature: signature.Sign(msg, queueSecret, ts),
			queue.HeaderTimestamp: strconv.FormatInt(ts, 10),
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("queue signature", func(t *testing.T) {
		ts := time.Now().Unix()
		resp := do(t, http.MethodPost, srv.URL+"/internal/process", msg, map[string]string{
			queue.HeaderSignature: signature.Sign(msg, queueSecret, ts),
			queue.HeaderTimestamp: strconv.FormatInt(ts, 10),
		})
		var out map[string]string
		decodeBody(t, resp, &out)
		if resp.StatusCode != http.StatusOK || out["outcome"] != "done" {
			t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
		}
	})

	t.Run("bearer redelivery is skipped", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/internal/process", msg, map[string]string{
			"Authorization": "Bearer " + processSecret,
		})
		var out map[string]string
		decodeBody(t, resp, &out)
		if resp.StatusCode != http.StatusOK || out["outcome"] != "skipped" {
			t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
		}
	})

	t.Run("bad event id", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/internal/process", []byte(`{"eventId":"nope"}`), map[string]string{
			"Authorization": "Bearer " + processSecret,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})
}

// gatedClient holds every push until release is closed, and fails it if the
// caller's context ends first.
type gatedClient struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *gatedClient) Push(ctx context.Context, _ platform.PushRequest) platform.Result {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.release:
		return platform.Result{StatusCode: 200}
	case <-ctx.Done():
		return platform.Result{Error: ctx.Err().Error()}
	}
}

func TestProcessTriggerSurvivesCallerHangup(t *testing.T) {
	client := &gatedClient{started: make(chan struct{}), release: make(chan struct{})}
	srv, d := testServerWith(t, client)

	ctx := context.Background()
	if err := d.Store().PutEntry(ctx, &knowledge.Entry{
		Entity: entity.New(), ID: id.NewEntryID(), TenantID: tenant,
		Title: "Shipping fees", Content: "Standard shipping is free for orders over 1000 NTD.",
	}); err != nil {
		t.Fatal(err)
	}
	body := webhookBody("W1", "how much is shipping")
	resp := postWebhook(t, srv, body, signature.SignBody(body, channelSecret))
	resp.Body.Close()

	evtID := firstEventID(t, d)
	msg, _ := json.Marshal(queue.Message{EventID: evtID})

	reqCtx, hangup := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, srv.URL+"/internal/process", bytes.NewReader(msg))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+processSecret)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("push never started")
	}
	hangup()
	<-done
	time.Sleep(50 * time.Millisecond)
	close(client.release)

	parsed, _ := id.ParseEventID(evtID)
	deadline := time.Now().Add(2 * time.Second)
	for {
		evt, err := d.Store().GetEvent(ctx, parsed)
		if err != nil {
			t.Fatal(err)
		}
		if evt.Status == event.StatusDone {
			return
		}
		if evt.Status == event.StatusFailed || time.Now().After(deadline) {
			t.Fatalf("status = %s, want done", evt.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDrainTrigger(t *testing.T) {
	srv, _ := testServer(t)
	body := webhookBody("W1", "hello")
	resp := postWebhook(t, srv, body, signature.SignBody(body, channelSecret))
	resp.Body.Close()
	time.Sleep(time.Millisecond)

	resp = do(t, http.MethodPost, srv.URL+"/internal/drain", nil, map[string]string{"Authorization": "Bearer wrong"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/internal/drain", nil, map[string]string{"Authorization": "Bearer " + drainSecret})
	var out map[string]int
	decodeBody(t, resp, &out)
	if out["drained"] != 1 {
		t.Fatalf("drained = %d, want 1", out["drained"])
	}
}

func TestApproveFlow(t *testing.T) {
	srv, d := testServer(t)
	body := webhookBody("W1", "I want a refund")
	resp := postWebhook(t, srv, body, signature.SignBody(body, channelSecret))
	resp.Body.Close()
	time.Sleep(time.Millisecond)
	if _, err := d.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp = do(t, http.MethodGet, srv.URL+"/suggestions?tenantId="+tenant+"&contactId=U1", nil, nil)
	var drafts []suggestion.Suggestion
	decodeBody(t, resp, &drafts)
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}

	approveURL := srv.URL + "/suggestions/" + drafts[0].ID.String() + "/approve"
	resp = do(t, http.MethodPost, approveURL, nil, nil)
	var sent suggestion.Suggestion
	decodeBody(t, resp, &sent)
	if resp.StatusCode != http.StatusOK || sent.Status != suggestion.StatusSent {
		t.Fatalf("status = %d, suggestion = %+v", resp.StatusCode, sent)
	}

	resp = do(t, http.MethodPost, approveURL, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second approve status = %d, want 409", resp.StatusCode)
	}
}

func TestEventsAndStats(t *testing.T) {
	srv, d := testServer(t)
	body := webhookBody("W1", "hello")
	resp := postWebhook(t, srv, body, signature.SignBody(body, channelSecret))
	resp.Body.Close()

	resp = do(t, http.MethodGet, srv.URL+"/events/"+firstEventID(t, d), nil, nil)
	var evt event.InboundEvent
	decodeBody(t, resp, &evt)
	if evt.Status != event.StatusPending || evt.TenantID != tenant {
		t.Fatalf("event = %+v", evt)
	}

	resp = do(t, http.MethodGet, srv.URL+"/events?status=bogus", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/events/"+id.NewEventID().String(), nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/stats", nil, nil)
	var stats api.StatsResponse
	decodeBody(t, resp, &stats)
	if stats.Pending != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	resp = do(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
}

func TestKnowledgeCRUD(t *testing.T) {
	srv, _ := testServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/knowledge", []byte(`{"tenantId":"t1","title":"Hours","content":"We open at 9."}`), nil)
	var created map[string]any
	decodeBody(t, resp, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/knowledge?tenantId=t1", nil, nil)
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("entries = %d, want 1", len(list))
	}

	resp = do(t, http.MethodDelete, srv.URL+"/knowledge/"+created["id"].(string), nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/knowledge", []byte(`{"tenantId":"t1"}`), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
