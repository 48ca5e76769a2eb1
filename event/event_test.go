package event_test

import (
	"encoding/json"
	"testing"

	"github.com/xraph/replydesk/event"
)

func TestCanTransition(t *testing.T) {
	all := []event.Status{event.StatusPending, event.StatusProcessing, event.StatusDone, event.StatusFailed}
	allowed := map[[2]event.Status]bool{
		{event.StatusPending, event.StatusProcessing}: true,
		{event.StatusPending, event.StatusFailed}:     true,
		{event.StatusProcessing, event.StatusDone}:    true,
		{event.StatusProcessing, event.StatusFailed}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]event.Status{from, to}]
			if got := event.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusHelpers(t *testing.T) {
	if !event.StatusDone.Terminal() || !event.StatusFailed.Terminal() {
		t.Error("done and failed are terminal")
	}
	if event.StatusPending.Terminal() || event.StatusProcessing.Terminal() {
		t.Error("pending and processing are not terminal")
	}
	if event.Status("archived").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestDecode(t *testing.T) {
	evt := &event.InboundEvent{Payload: json.RawMessage(`{
		"type": "message",
		"webhookEventId": "01H",
		"timestamp": 1700000000000,
		"source": {"type": "user", "userId": "U1"},
		"message": {"id": "m1", "type": "text", "text": "hello"},
		"deliveryContext": {"isRedelivery": true}
	}`)}

	p, err := evt.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !p.IsText() || p.Text() != "hello" || p.Source.UserID != "U1" || !p.DeliveryContext.IsRedelivery {
		t.Fatalf("decoded = %+v", p)
	}

	if _, err := (&event.InboundEvent{Payload: json.RawMessage(`{`)}).Decode(); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
