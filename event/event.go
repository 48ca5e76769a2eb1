// Package event models inbound webhook events and their processing
// lifecycle.
package event

import (
	"encoding/json"
	"time"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// Status is the processing state of an inbound event.
type Status string

const (
	// StatusPending means the event is persisted and waiting for a worker.
	StatusPending Status = "pending"

	// StatusProcessing means a worker has claimed the event.
	StatusProcessing Status = "processing"

	// StatusDone means the event was handled.
	StatusDone Status = "done"

	// StatusFailed means handling failed; LastError says why.
	StatusFailed Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from → to is allowed. Transitions are
// monotonic: pending → processing → done | failed. A pending event may
// also fail directly when it is abandoned.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to.Terminal()
	}
	return false
}

// InboundEvent is one webhook delivery from the chat platform.
type InboundEvent struct {
	entity.Entity

	// ID is the internal TypeID of the event.
	ID id.ID `json:"id"`

	// ExternalID is the platform-assigned event id, or a deterministic id
	// synthesized from the payload. Unique per tenant.
	ExternalID string `json:"external_id"`

	// TenantID identifies the tenant whose webhook received the event.
	TenantID string `json:"tenant_id"`

	// BotID is the platform destination (bot) the event was sent to.
	BotID string `json:"bot_id,omitempty"`

	// ContactID is the end user who sent the message.
	ContactID string `json:"contact_id,omitempty"`

	// Payload is the raw platform event.
	Payload json.RawMessage `json:"payload"`

	// Status is the current processing state.
	Status Status `json:"status"`

	// ReceivedAt is when the dispatcher accepted the event.
	ReceivedAt time.Time `json:"received_at"`

	// ProcessedAt is when the event reached a terminal state.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// LastError is the failure reason for failed events.
	LastError string `json:"last_error,omitempty"`

	// Attempts counts outbound send attempts made for this event.
	Attempts int `json:"attempts"`
}

// Transition describes a compare-and-swap on an event's status.
type Transition struct {
	From Status
	To   Status

	// At is the transition time. It becomes ProcessedAt for terminal
	// states and UpdatedAt in every case.
	At time.Time

	// LastError is recorded when To is StatusFailed.
	LastError string

	// Attempts is added to the event's attempt count.
	Attempts int
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset   int
	Limit    int
	TenantID string
	Status   *Status
}
