package replydesk

import (
	"errors"

	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/platform"
	"github.com/xraph/replydesk/ratelimit"
	"github.com/xraph/replydesk/signature"
	"github.com/xraph/replydesk/suggestion"
	"github.com/xraph/replydesk/vault"
)

// Pipeline error taxonomy. Each is the sentinel of the subsystem that
// raises it, so errors.Is works across package boundaries.
var (
	// ErrSignatureInvalid rejects a webhook before any event is persisted.
	ErrSignatureInvalid = signature.ErrInvalid

	// ErrCrypto is a vault failure. The event fails and the tenant's
	// configuration needs attention.
	ErrCrypto = vault.ErrCrypto

	// ErrRetrieval is a knowledge search failure. It degrades to zero
	// sources rather than failing the event.
	ErrRetrieval = knowledge.ErrRetrieval

	// ErrSend is an outbound push failure. The event fails.
	ErrSend = platform.ErrSend

	// ErrRateLimitExceeded rejects a request before any event is created.
	ErrRateLimitExceeded = ratelimit.ErrExceeded

	// ErrStoreUnavailable means neither the shared nor the local rate-limit
	// store answered; the request is rejected.
	ErrStoreUnavailable = ratelimit.ErrStoreUnavailable

	// ErrSuggestionNotDraft is returned when approving a suggestion that is
	// no longer a draft.
	ErrSuggestionNotDraft = suggestion.ErrNotDraft

	// ErrSuggestionExpired is returned when approving an expired draft.
	ErrSuggestionExpired = suggestion.ErrExpired
)

// Store errors.
var (
	// ErrNoStore is returned when a Desk is created without a store.
	ErrNoStore = errors.New("replydesk: store is required")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("replydesk: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("replydesk: migration failed")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("replydesk: event not found")

	// ErrDuplicateEvent is returned when a tenant already has an event with
	// the same external id.
	ErrDuplicateEvent = errors.New("replydesk: duplicate event")

	// ErrCredentialNotFound is returned when a tenant has no credentials.
	ErrCredentialNotFound = errors.New("replydesk: credential not found")

	// ErrSuggestionNotFound is returned when a suggestion cannot be found.
	ErrSuggestionNotFound = errors.New("replydesk: suggestion not found")

	// ErrConversationNotFound is returned when a conversation cannot be found.
	ErrConversationNotFound = errors.New("replydesk: conversation not found")

	// ErrEntryNotFound is returned when a knowledge entry cannot be found.
	ErrEntryNotFound = errors.New("replydesk: knowledge entry not found")
)

// ErrNoVault is returned when a Desk is created without a vault.
var ErrNoVault = errors.New("replydesk: vault is required")
