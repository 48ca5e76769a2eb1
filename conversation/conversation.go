// Package conversation tracks per-contact threads: whether a person must
// take over, and which replies were sent.
package conversation

import (
	"time"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// Conversation is the thread between a tenant and one contact.
type Conversation struct {
	entity.Entity

	ID        id.ID  `json:"id"`
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`

	// NeedsHuman is set when the decision engine hands the thread off.
	NeedsHuman    bool       `json:"needs_human"`
	HandoffReason string     `json:"handoff_reason,omitempty"`
	HandoffAt     *time.Time `json:"handoff_at,omitempty"`

	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Origin records how an outbound message was produced.
type Origin string

const (
	// OriginAuto is a reply sent by the worker without review.
	OriginAuto Origin = "auto"

	// OriginApproved is a suggestion sent after human approval.
	OriginApproved Origin = "approved"
)

// Message is one outbound reply that reached the platform.
type Message struct {
	entity.Entity

	ID        id.ID  `json:"id"`
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`

	// EventID is the inbound event answered, if any.
	EventID id.ID `json:"event_id,omitempty"`

	// SuggestionID is set for approved suggestions.
	SuggestionID id.ID `json:"suggestion_id,omitempty"`

	Text   string    `json:"text"`
	Origin Origin    `json:"origin"`
	SentAt time.Time `json:"sent_at"`
}
