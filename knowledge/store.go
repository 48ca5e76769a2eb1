package knowledge

import (
	"context"

	"github.com/xraph/replydesk/id"
)

// Store defines the persistence contract for knowledge entries.
type Store interface {
	// PutEntry inserts or replaces an entry.
	PutEntry(ctx context.Context, e *Entry) error

	// GetEntry returns an entry by ID.
	GetEntry(ctx context.Context, entryID id.ID) (*Entry, error)

	// DeleteEntry removes an entry.
	DeleteEntry(ctx context.Context, entryID id.ID) error

	// ListEntries returns every entry of a tenant.
	ListEntries(ctx context.Context, tenantID string) ([]*Entry, error)
}
