// Package memory provides an in-memory Store implementation for tests and
// single-instance deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
	deskstore "github.com/xraph/replydesk/store"
	"github.com/xraph/replydesk/suggestion"
)

// compile-time interface check.
var _ deskstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store. Records are copied
// on the way in and out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	events        map[string]*event.InboundEvent // keyed by ID string
	eventsByExtID map[string]string              // tenant|external id → ID string
	credentials   map[string]*credential.Credential
	suggestions   map[string]*suggestion.Suggestion
	conversations map[string]*conversation.Conversation // tenant|contact
	messages      []*conversation.Message
	entries       map[string]*knowledge.Entry

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		events:        make(map[string]*event.InboundEvent),
		eventsByExtID: make(map[string]string),
		credentials:   make(map[string]*credential.Credential),
		suggestions:   make(map[string]*suggestion.Suggestion),
		conversations: make(map[string]*conversation.Conversation),
		entries:       make(map[string]*knowledge.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return replydesk.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists a new event, unique per tenant and external id.
func (s *Store) CreateEvent(_ context.Context, evt *event.InboundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := evt.TenantID + "|" + evt.ExternalID
	if _, ok := s.eventsByExtID[key]; ok {
		return replydesk.ErrDuplicateEvent
	}
	cp := *evt
	s.events[evt.ID.String()] = &cp
	s.eventsByExtID[key] = evt.ID.String()
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.InboundEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, replydesk.ErrEventNotFound
	}
	cp := *evt
	return &cp, nil
}

// CompareAndSwap applies t under the write lock if the status matches.
func (s *Store) CompareAndSwap(_ context.Context, evtID id.ID, t event.Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return false, replydesk.ErrEventNotFound
	}
	if evt.Status != t.From {
		return false, nil
	}

	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	evt.Status = t.To
	evt.UpdatedAt = at
	evt.Attempts += t.Attempts
	if t.To.Terminal() {
		evt.ProcessedAt = &at
	}
	if t.To == event.StatusFailed {
		evt.LastError = t.LastError
	}
	return true, nil
}

// ListEvents returns events newest first, optionally filtered.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.InboundEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.InboundEvent, 0)
	for _, evt := range s.events {
		if opts.TenantID != "" && evt.TenantID != opts.TenantID {
			continue
		}
		if opts.Status != nil && evt.Status != *opts.Status {
			continue
		}
		cp := *evt
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ListByStatus returns events in status updated before the cutoff, oldest first.
func (s *Store) ListByStatus(_ context.Context, status event.Status, before time.Time, limit int) ([]*event.InboundEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.InboundEvent, 0)
	for _, evt := range s.events {
		if evt.Status == status && evt.UpdatedAt.Before(before) {
			cp := *evt
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})

	return applyPagination(result, 0, limit), nil
}

// PurgeEvents deletes events in status updated before the cutoff.
func (s *Store) PurgeEvents(_ context.Context, status event.Status, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, evt := range s.events {
		if evt.Status == status && evt.UpdatedAt.Before(before) {
			delete(s.events, key)
			delete(s.eventsByExtID, evt.TenantID+"|"+evt.ExternalID)
			n++
		}
	}
	return n, nil
}

// CountByStatus returns the number of events per status.
func (s *Store) CountByStatus(_ context.Context) (map[event.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[event.Status]int64, 4)
	for _, evt := range s.events {
		counts[evt.Status]++
	}
	return counts, nil
}

// ──────────────────────────────────────────────────
// credential.Store
// ──────────────────────────────────────────────────

// PutCredential inserts or replaces a tenant's credential. The original ID
// and creation time survive a replace.
func (s *Store) PutCredential(_ context.Context, c *credential.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	if existing, ok := s.credentials[c.TenantID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
		cp.UpdatedAt = time.Now().UTC()
	}
	s.credentials[c.TenantID] = &cp
	return nil
}

// GetCredential returns a tenant's credential.
func (s *Store) GetCredential(_ context.Context, tenantID string) (*credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[tenantID]
	if !ok {
		return nil, replydesk.ErrCredentialNotFound
	}
	cp := *c
	return &cp, nil
}

// DeleteCredential removes a tenant's credential.
func (s *Store) DeleteCredential(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[tenantID]; !ok {
		return replydesk.ErrCredentialNotFound
	}
	delete(s.credentials, tenantID)
	return nil
}

// ──────────────────────────────────────────────────
// suggestion.Store
// ──────────────────────────────────────────────────

// CreateSuggestion inserts a suggestion.
func (s *Store) CreateSuggestion(_ context.Context, sug *suggestion.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sug
	s.suggestions[sug.ID.String()] = &cp
	return nil
}

// GetSuggestion returns a suggestion by ID.
func (s *Store) GetSuggestion(_ context.Context, sugID id.ID) (*suggestion.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sug, ok := s.suggestions[sugID.String()]
	if !ok {
		return nil, replydesk.ErrSuggestionNotFound
	}
	cp := *sug
	return &cp, nil
}

// ListSuggestions returns suggestions newest first, optionally filtered.
func (s *Store) ListSuggestions(_ context.Context, opts suggestion.ListOpts) ([]*suggestion.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*suggestion.Suggestion, 0)
	for _, sug := range s.suggestions {
		if opts.TenantID != "" && sug.TenantID != opts.TenantID {
			continue
		}
		if opts.ContactID != "" && sug.ContactID != opts.ContactID {
			continue
		}
		if opts.Status != nil && sug.Status != *opts.Status {
			continue
		}
		if !opts.ActiveAt.IsZero() && !sug.ExpiresAt.After(opts.ActiveAt) {
			continue
		}
		cp := *sug
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CompareAndSwapStatus moves a suggestion between statuses atomically.
func (s *Store) CompareAndSwapStatus(_ context.Context, sugID id.ID, from, to suggestion.Status, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sug, ok := s.suggestions[sugID.String()]
	if !ok {
		return false, replydesk.ErrSuggestionNotFound
	}
	if sug.Status != from {
		return false, nil
	}

	sug.Status = to
	sug.UpdatedAt = at
	switch to {
	case suggestion.StatusSent:
		sentAt := at
		sug.SentAt = &sentAt
	case suggestion.StatusDraft:
		sug.SentAt = nil
	}
	return true, nil
}

// ExpireSuggestions marks overdue drafts as expired.
func (s *Store) ExpireSuggestions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sug := range s.suggestions {
		if sug.Status == suggestion.StatusDraft && !sug.ExpiresAt.After(now) {
			sug.Status = suggestion.StatusExpired
			sug.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// conversation.Store
// ──────────────────────────────────────────────────

// MarkHandoff flags a contact's conversation, creating it when needed.
func (s *Store) MarkHandoff(_ context.Context, tenantID, contactID, reason string, at time.Time) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tenantID + "|" + contactID
	conv, ok := s.conversations[key]
	if !ok {
		conv = &conversation.Conversation{
			Entity:    entity.New(),
			ID:        id.NewConversationID(),
			TenantID:  tenantID,
			ContactID: contactID,
		}
		s.conversations[key] = conv
	}

	handoffAt := at
	conv.NeedsHuman = true
	conv.HandoffReason = reason
	conv.HandoffAt = &handoffAt
	conv.UpdatedAt = at

	cp := *conv
	return &cp, nil
}

// GetConversation returns a contact's conversation.
func (s *Store) GetConversation(_ context.Context, tenantID, contactID string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[tenantID+"|"+contactID]
	if !ok {
		return nil, replydesk.ErrConversationNotFound
	}
	cp := *conv
	return &cp, nil
}

// ListHandoffs returns a tenant's conversations needing a human.
func (s *Store) ListHandoffs(_ context.Context, tenantID string) ([]*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*conversation.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.TenantID == tenantID && conv.NeedsHuman {
			cp := *conv
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].HandoffAt.Before(*result[j].HandoffAt)
	})
	return result, nil
}

// RecordMessage stores a sent message and bumps the conversation.
func (s *Store) RecordMessage(_ context.Context, msg *conversation.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.messages = append(s.messages, &cp)

	key := msg.TenantID + "|" + msg.ContactID
	conv, ok := s.conversations[key]
	if !ok {
		conv = &conversation.Conversation{
			Entity:    entity.New(),
			ID:        id.NewConversationID(),
			TenantID:  msg.TenantID,
			ContactID: msg.ContactID,
		}
		s.conversations[key] = conv
	}
	sentAt := msg.SentAt
	conv.LastMessageAt = &sentAt
	return nil
}

// ListMessages returns the most recent messages sent to a contact.
func (s *Store) ListMessages(_ context.Context, tenantID, contactID string, limit int) ([]*conversation.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*conversation.Message, 0)
	for _, msg := range s.messages {
		if msg.TenantID == tenantID && msg.ContactID == contactID {
			cp := *msg
			result = append(result, &cp)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SentAt.After(result[j].SentAt)
	})
	return applyPagination(result, 0, limit), nil
}

// ──────────────────────────────────────────────────
// knowledge.Store
// ──────────────────────────────────────────────────

// PutEntry inserts or replaces a knowledge entry.
func (s *Store) PutEntry(_ context.Context, e *knowledge.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.entries[e.ID.String()] = &cp
	return nil
}

// GetEntry returns a knowledge entry by ID.
func (s *Store) GetEntry(_ context.Context, entryID id.ID) (*knowledge.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[entryID.String()]
	if !ok {
		return nil, replydesk.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

// DeleteEntry removes a knowledge entry.
func (s *Store) DeleteEntry(_ context.Context, entryID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID.String()]; !ok {
		return replydesk.ErrEntryNotFound
	}
	delete(s.entries, entryID.String())
	return nil
}

// ListEntries returns a tenant's entries ordered by title.
func (s *Store) ListEntries(_ context.Context, tenantID string) ([]*knowledge.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*knowledge.Entry, 0)
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Title < result[j].Title
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
