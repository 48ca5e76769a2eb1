package platform_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/replydesk/platform"
)

func TestHTTPClientPush(t *testing.T) {
	var (
		gotAuth, gotRetry string
		gotBody           map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRetry = r.Header.Get("X-Line-Retry-Key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := platform.NewHTTPClient(5*time.Second, platform.WithURL(srv.URL))
	res := c.Push(context.Background(), platform.PushRequest{
		AccessToken: "tok-123",
		To:          "U1",
		Messages:    []platform.Message{platform.TextMessage("hi")},
		RetryKey:    "rk-1",
	})

	if !res.OK() {
		t.Fatalf("Push result = %+v", res)
	}
	if res.Err() != nil {
		t.Fatalf("Err() = %v", res.Err())
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotRetry != "rk-1" {
		t.Errorf("X-Line-Retry-Key = %q", gotRetry)
	}
	if gotBody["to"] != "U1" {
		t.Errorf("body = %v", gotBody)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	res := platform.NewHTTPClient(time.Second, platform.WithURL(srv.URL)).
		Push(context.Background(), platform.PushRequest{To: "U1"})

	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d", res.StatusCode)
	}
	if len(res.Response) != 1024 {
		t.Fatalf("response not capped: %d bytes", len(res.Response))
	}
	err := res.Err()
	if !errors.Is(err, platform.ErrSend) {
		t.Fatalf("Err() = %v, want ErrSend", err)
	}
	var se *platform.SendError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("SendError = %+v", se)
	}
}

func TestHTTPClientTransportError(t *testing.T) {
	res := platform.NewHTTPClient(time.Second, platform.WithURL("http://127.0.0.1:1")).
		Push(context.Background(), platform.PushRequest{To: "U1"})
	if res.OK() || res.Error == "" {
		t.Fatalf("expected transport error, got %+v", res)
	}
}

func TestHTTPClientRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := platform.NewHTTPClient(time.Second, platform.WithURL(srv.URL), platform.WithRateLimit(1, 1))

	if res := c.Push(context.Background(), platform.PushRequest{To: "U1"}); !res.OK() {
		t.Fatalf("first push: %+v", res)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if res := c.Push(ctx, platform.PushRequest{To: "U1"}); res.OK() {
		t.Fatal("second push should wait on the limiter and hit the deadline")
	}
	if calls.Load() != 1 {
		t.Fatalf("server saw %d calls, want 1", calls.Load())
	}
}
