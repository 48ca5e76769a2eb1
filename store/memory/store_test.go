package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/suggestion"
)

func ctx() context.Context { return context.Background() }

func newEvent(tenant, external string) *event.InboundEvent {
	return &event.InboundEvent{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		ExternalID: external,
		TenantID:   tenant,
		ContactID:  "U1",
		Payload:    json.RawMessage(`{"type":"message"}`),
		Status:     event.StatusPending,
		ReceivedAt: time.Now().UTC(),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, replydesk.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

func TestEventCreateAndDuplicate(t *testing.T) {
	s := New()
	evt := newEvent("t1", "ext-1")

	if err := s.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateEvent(ctx(), newEvent("t1", "ext-1")); !errors.Is(err, replydesk.ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
	// Another tenant may reuse the upstream id.
	if err := s.CreateEvent(ctx(), newEvent("t2", "ext-1")); err != nil {
		t.Fatalf("cross-tenant reuse rejected: %v", err)
	}

	got, err := s.GetEvent(ctx(), evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExternalID != "ext-1" || got.Status != event.StatusPending {
		t.Fatalf("got %+v", got)
	}

	if _, err := s.GetEvent(ctx(), id.NewEventID()); !errors.Is(err, replydesk.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventCompareAndSwap(t *testing.T) {
	s := New()
	evt := newEvent("t1", "ext-1")
	_ = s.CreateEvent(ctx(), evt)

	ok, err := s.CompareAndSwap(ctx(), evt.ID, event.Transition{From: event.StatusPending, To: event.StatusProcessing})
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	ok, err = s.CompareAndSwap(ctx(), evt.ID, event.Transition{From: event.StatusPending, To: event.StatusProcessing})
	if err != nil || ok {
		t.Fatalf("second claim: ok=%v err=%v", ok, err)
	}

	at := time.Now().UTC()
	ok, _ = s.CompareAndSwap(ctx(), evt.ID, event.Transition{
		From: event.StatusProcessing, To: event.StatusFailed, At: at, LastError: "boom", Attempts: 2,
	})
	if !ok {
		t.Fatal("fail transition rejected")
	}

	got, _ := s.GetEvent(ctx(), evt.ID)
	if got.Status != event.StatusFailed || got.LastError != "boom" || got.Attempts != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(at) {
		t.Fatalf("ProcessedAt = %v", got.ProcessedAt)
	}

	if _, err := s.CompareAndSwap(ctx(), id.NewEventID(), event.Transition{}); !errors.Is(err, replydesk.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventCompareAndSwapConcurrent(t *testing.T) {
	s := New()
	evt := newEvent("t1", "ext-1")
	_ = s.CreateEvent(ctx(), evt)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := s.CompareAndSwap(ctx(), evt.ID, event.Transition{From: event.StatusPending, To: event.StatusProcessing})
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("%d workers claimed the event, want 1", wins.Load())
	}
}

func TestEventListAndPurge(t *testing.T) {
	s := New()
	old := newEvent("t1", "old")
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	fresh := newEvent("t1", "fresh")
	other := newEvent("t2", "other")
	for _, e := range []*event.InboundEvent{old, fresh, other} {
		_ = s.CreateEvent(ctx(), e)
	}

	stale, _ := s.ListByStatus(ctx(), event.StatusPending, time.Now().Add(-time.Hour), 10)
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Fatalf("stale = %v", stale)
	}

	pending := event.StatusPending
	list, _ := s.ListEvents(ctx(), event.ListOpts{TenantID: "t1", Status: &pending})
	if len(list) != 2 {
		t.Fatalf("ListEvents = %d, want 2", len(list))
	}
	list, _ = s.ListEvents(ctx(), event.ListOpts{Limit: 1})
	if len(list) != 1 {
		t.Fatalf("limit ignored: %d", len(list))
	}

	counts, _ := s.CountByStatus(ctx())
	if counts[event.StatusPending] != 3 {
		t.Fatalf("counts = %v", counts)
	}

	n, _ := s.PurgeEvents(ctx(), event.StatusPending, time.Now().Add(-time.Hour))
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if _, err := s.GetEvent(ctx(), old.ID); !errors.Is(err, replydesk.ErrEventNotFound) {
		t.Fatal("purged event still present")
	}
	// A purged external id may arrive again.
	if err := s.CreateEvent(ctx(), newEvent("t1", "old")); err != nil {
		t.Fatalf("recreate after purge: %v", err)
	}
}

// ──────────────────────────────────────────────────
// credential.Store
// ──────────────────────────────────────────────────

func TestCredentialUpsert(t *testing.T) {
	s := New()
	first := &credential.Credential{Entity: entity.New(), ID: id.NewCredentialID(), TenantID: "t1", AccessToken: "a", KeyVersion: 1}
	_ = s.PutCredential(ctx(), first)
	_ = s.PutCredential(ctx(), &credential.Credential{Entity: entity.New(), ID: id.NewCredentialID(), TenantID: "t1", AccessToken: "b", KeyVersion: 2})

	got, err := s.GetCredential(ctx(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID || got.AccessToken != "b" || got.KeyVersion != 2 {
		t.Fatalf("got %+v", got)
	}

	if err := s.DeleteCredential(ctx(), "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCredential(ctx(), "t1"); !errors.Is(err, replydesk.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// suggestion.Store
// ──────────────────────────────────────────────────

func newSuggestion(contact string, expiresIn time.Duration) *suggestion.Suggestion {
	return &suggestion.Suggestion{
		Entity:     entity.New(),
		ID:         id.NewSuggestionID(),
		TenantID:   "t1",
		ContactID:  contact,
		DraftReply: "hello",
		Status:     suggestion.StatusDraft,
		ExpiresAt:  time.Now().Add(expiresIn),
	}
}

func TestSuggestionListFiltersExpired(t *testing.T) {
	s := New()
	live := newSuggestion("U1", time.Hour)
	stale := newSuggestion("U1", -time.Minute)
	otherContact := newSuggestion("U2", time.Hour)
	for _, sug := range []*suggestion.Suggestion{live, stale, otherContact} {
		_ = s.CreateSuggestion(ctx(), sug)
	}

	draft := suggestion.StatusDraft
	list, _ := s.ListSuggestions(ctx(), suggestion.ListOpts{ContactID: "U1", Status: &draft, ActiveAt: time.Now()})
	if len(list) != 1 || list[0].ID != live.ID {
		t.Fatalf("list = %v", list)
	}

	n, _ := s.ExpireSuggestions(ctx(), time.Now())
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	got, _ := s.GetSuggestion(ctx(), stale.ID)
	if got.Status != suggestion.StatusExpired {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestSuggestionCompareAndSwap(t *testing.T) {
	s := New()
	sug := newSuggestion("U1", time.Hour)
	_ = s.CreateSuggestion(ctx(), sug)
	now := time.Now().UTC()

	ok, _ := s.CompareAndSwapStatus(ctx(), sug.ID, suggestion.StatusDraft, suggestion.StatusSent, now)
	if !ok {
		t.Fatal("draft → sent rejected")
	}
	ok, _ = s.CompareAndSwapStatus(ctx(), sug.ID, suggestion.StatusDraft, suggestion.StatusSent, now)
	if ok {
		t.Fatal("second draft → sent accepted")
	}
	got, _ := s.GetSuggestion(ctx(), sug.ID)
	if got.SentAt == nil {
		t.Fatal("SentAt not stamped")
	}

	ok, _ = s.CompareAndSwapStatus(ctx(), sug.ID, suggestion.StatusSent, suggestion.StatusDraft, now)
	if !ok {
		t.Fatal("sent → draft rejected")
	}
	got, _ = s.GetSuggestion(ctx(), sug.ID)
	if got.SentAt != nil || got.Status != suggestion.StatusDraft {
		t.Fatalf("got %+v", got)
	}

	if _, err := s.CompareAndSwapStatus(ctx(), id.NewSuggestionID(), suggestion.StatusDraft, suggestion.StatusSent, now); !errors.Is(err, replydesk.ErrSuggestionNotFound) {
		t.Fatalf("expected ErrSuggestionNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// conversation.Store
// ──────────────────────────────────────────────────

func TestConversationHandoffAndMessages(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	if _, err := s.GetConversation(ctx(), "t1", "U1"); !errors.Is(err, replydesk.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}

	conv, err := s.MarkHandoff(ctx(), "t1", "U1", "escalation", now)
	if err != nil {
		t.Fatal(err)
	}
	if !conv.NeedsHuman || conv.HandoffReason != "escalation" {
		t.Fatalf("conv = %+v", conv)
	}
	_, _ = s.MarkHandoff(ctx(), "t1", "U2", "no sources", now.Add(time.Second))
	_, _ = s.MarkHandoff(ctx(), "t2", "U3", "other tenant", now)

	handoffs, _ := s.ListHandoffs(ctx(), "t1")
	if len(handoffs) != 2 || handoffs[0].ContactID != "U1" {
		t.Fatalf("handoffs = %v", handoffs)
	}

	for i := 0; i < 3; i++ {
		_ = s.RecordMessage(ctx(), &conversation.Message{
			Entity: entity.New(), ID: id.NewMessageID(), TenantID: "t1", ContactID: "U1",
			Text: "reply", Origin: conversation.OriginAuto, SentAt: now.Add(time.Duration(i) * time.Second),
		})
	}
	msgs, _ := s.ListMessages(ctx(), "t1", "U1", 2)
	if len(msgs) != 2 || !msgs[0].SentAt.After(msgs[1].SentAt) {
		t.Fatalf("messages = %v", msgs)
	}

	conv, _ = s.GetConversation(ctx(), "t1", "U1")
	if conv.LastMessageAt == nil {
		t.Fatal("LastMessageAt not set")
	}
}

// ──────────────────────────────────────────────────
// knowledge.Store
// ──────────────────────────────────────────────────

func TestKnowledgeEntries(t *testing.T) {
	s := New()
	b := &knowledge.Entry{Entity: entity.New(), ID: id.NewEntryID(), TenantID: "t1", Title: "B"}
	a := &knowledge.Entry{Entity: entity.New(), ID: id.NewEntryID(), TenantID: "t1", Title: "A"}
	_ = s.PutEntry(ctx(), b)
	_ = s.PutEntry(ctx(), a)
	_ = s.PutEntry(ctx(), &knowledge.Entry{ID: id.NewEntryID(), TenantID: "t2", Title: "C"})

	list, _ := s.ListEntries(ctx(), "t1")
	if len(list) != 2 || list[0].Title != "A" {
		t.Fatalf("list = %v", list)
	}

	if err := s.DeleteEntry(ctx(), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetEntry(ctx(), a.ID); !errors.Is(err, replydesk.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
