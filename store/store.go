// Package store defines the composite Store interface for all replydesk
// persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them, so one backend serves the whole pipeline.
package store

import (
	"context"

	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/suggestion"
)

// Store is the aggregate persistence interface.
type Store interface {
	event.Store
	credential.Store
	suggestion.Store
	conversation.Store
	knowledge.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
