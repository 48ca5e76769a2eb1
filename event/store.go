package event

import (
	"context"
	"time"

	"github.com/xraph/replydesk/id"
)

// Store defines the persistence contract for inbound events.
type Store interface {
	// CreateEvent persists a new event. It fails with a duplicate-event
	// error when the tenant already has an event with the same ExternalID.
	CreateEvent(ctx context.Context, evt *InboundEvent) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*InboundEvent, error)

	// CompareAndSwap atomically applies t if the event is currently in
	// t.From. It returns false without error when the status differs.
	CompareAndSwap(ctx context.Context, evtID id.ID, t Transition) (bool, error)

	// ListEvents returns events, newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*InboundEvent, error)

	// ListByStatus returns up to limit events in status that were last
	// updated before the cutoff, oldest first.
	ListByStatus(ctx context.Context, status Status, before time.Time, limit int) ([]*InboundEvent, error)

	// PurgeEvents deletes events in status last updated before the cutoff.
	PurgeEvents(ctx context.Context, status Status, before time.Time) (int64, error)

	// CountByStatus returns the number of events per status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
