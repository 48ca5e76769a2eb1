package suggestion

import (
	"context"
	"time"

	"github.com/xraph/replydesk/id"
)

// Store defines the persistence contract for suggestions.
type Store interface {
	// CreateSuggestion inserts a new suggestion.
	CreateSuggestion(ctx context.Context, s *Suggestion) error

	// GetSuggestion returns a suggestion by ID.
	GetSuggestion(ctx context.Context, sugID id.ID) (*Suggestion, error)

	// ListSuggestions returns suggestions, newest first.
	ListSuggestions(ctx context.Context, opts ListOpts) ([]*Suggestion, error)

	// CompareAndSwapStatus atomically moves a suggestion from one status to
	// another. Moving to sent stamps SentAt with at; moving back to draft
	// clears it. It returns false without error when the status differs.
	CompareAndSwapStatus(ctx context.Context, sugID id.ID, from, to Status, at time.Time) (bool, error)

	// ExpireSuggestions marks drafts whose ExpiresAt is at or before now
	// as expired and returns how many changed.
	ExpireSuggestions(ctx context.Context, now time.Time) (int64, error)
}
