// Package suggestion holds reply drafts awaiting human approval.
package suggestion

import (
	"time"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// Status is the lifecycle state of a suggestion.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusExpired Status = "expired"
)

// Kind distinguishes a proposed answer from a clarifying question.
type Kind string

const (
	KindSuggest Kind = "suggest"
	KindAsk     Kind = "ask"
)

// Suggestion is a draft reply produced by the worker.
type Suggestion struct {
	entity.Entity

	ID        id.ID  `json:"id"`
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`

	// EventID is the inbound event the draft answers.
	EventID id.ID `json:"event_id"`

	Kind            Kind    `json:"kind"`
	UserMessage     string  `json:"user_message"`
	DraftReply      string  `json:"draft_reply"`
	SourcesCount    int     `json:"sources_count"`
	ConfidenceScore float64 `json:"confidence_score"`
	RiskCategory    string  `json:"risk_category"`

	Status    Status     `json:"status"`
	ExpiresAt time.Time  `json:"expires_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// Usable reports whether the suggestion can still be approved at now.
// An expired draft is unusable even before the expiry sweep marks it.
func (s *Suggestion) Usable(now time.Time) bool {
	return s.Status == StatusDraft && now.Before(s.ExpiresAt)
}

// ListOpts configures suggestion listing.
type ListOpts struct {
	Offset    int
	Limit     int
	TenantID  string
	ContactID string
	Status    *Status

	// ActiveAt, when set, excludes suggestions with ExpiresAt at or before it.
	ActiveAt time.Time
}
