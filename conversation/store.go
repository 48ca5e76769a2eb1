package conversation

import (
	"context"
	"time"
)

// Store defines the persistence contract for conversations and their
// outbound messages.
type Store interface {
	// MarkHandoff flags the contact's conversation as needing a human,
	// creating the conversation if it does not exist.
	MarkHandoff(ctx context.Context, tenantID, contactID, reason string, at time.Time) (*Conversation, error)

	// GetConversation returns the conversation of a contact.
	GetConversation(ctx context.Context, tenantID, contactID string) (*Conversation, error)

	// ListHandoffs returns a tenant's conversations that need a human,
	// oldest handoff first.
	ListHandoffs(ctx context.Context, tenantID string) ([]*Conversation, error)

	// RecordMessage persists a sent message.
	RecordMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit most recent messages sent to a contact.
	ListMessages(ctx context.Context, tenantID, contactID string, limit int) ([]*Message, error)
}
