package compose_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/replydesk/compose"
)

func TestGroundedUsesFirstEntry(t *testing.T) {
	g := compose.NewGrounded(0)
	reply, err := g.Compose(context.Background(), compose.Request{
		Message:   "how much is shipping",
		Knowledge: "Shipping fees\nStandard shipping is free over 1000 NTD.\n\nReturns\nReturns within 7 days.",
		Sources:   2,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if reply.Text != "Standard shipping is free over 1000 NTD." {
		t.Fatalf("Text = %q", reply.Text)
	}
	if reply.GuardrailTriggered {
		t.Fatal("guardrail should not trigger")
	}
}

func TestGroundedWithoutKnowledge(t *testing.T) {
	reply, err := compose.NewGrounded(0).Compose(context.Background(), compose.Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if reply.Text != "" {
		t.Fatalf("Text = %q, want empty", reply.Text)
	}
}

func TestGroundedTruncates(t *testing.T) {
	reply, _ := compose.NewGrounded(10).Compose(context.Background(), compose.Request{
		Knowledge: "T\n" + strings.Repeat("運費", 20),
		Sources:   1,
	})
	if got := []rune(reply.Text); len(got) != 11 || got[10] != '…' {
		t.Fatalf("Text = %q", reply.Text)
	}
}

func TestGuard(t *testing.T) {
	for _, s := range []string{"We guarantee delivery tomorrow", "We will refund you today", "保證明天到貨"} {
		if !compose.Guard(s) {
			t.Errorf("Guard(%q) = false", s)
		}
	}
	if compose.Guard("Refund requests are reviewed within 3 days.") {
		t.Error("policy text should pass the guardrail")
	}
}

func TestHTTPComposer(t *testing.T) {
	var got compose.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(compose.Reply{Text: "We guarantee a full refund."})
	}))
	defer srv.Close()

	reply, err := compose.NewHTTP(srv.URL, "secret", time.Second).Compose(context.Background(), compose.Request{
		TenantID: "t1",
		Message:  "refund?",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got.TenantID != "t1" || got.Message != "refund?" {
		t.Fatalf("request = %+v", got)
	}
	if !reply.GuardrailTriggered {
		t.Fatal("guardrail should be applied to remote drafts")
	}
}

func TestHTTPComposerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := compose.NewHTTP(srv.URL, "", time.Second).Compose(context.Background(), compose.Request{})
	if !errors.Is(err, compose.ErrCompose) {
		t.Fatalf("err = %v, want ErrCompose", err)
	}
}
