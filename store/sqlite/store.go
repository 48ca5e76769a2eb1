// Package sqlite implements store.Store on SQLite through the grove ORM,
// for single-node deployments that want durable state without a server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/knowledge"
	deskstore "github.com/xraph/replydesk/store"
	"github.com/xraph/replydesk/suggestion"
)

// compile-time interface check
var _ deskstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("replydesk/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: sqlite: %w", replydesk.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

// CreateEvent inserts the event. The (tenant_id, external_id) unique index
// turns a redelivery into ErrDuplicateEvent.
func (s *Store) CreateEvent(ctx context.Context, evt *event.InboundEvent) error {
	res, err := s.sdb.NewInsert(toEventModel(evt)).
		OnConflict("(tenant_id, external_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return replydesk.ErrDuplicateEvent
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.InboundEvent, error) {
	m := new(eventModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", evtID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, replydesk.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

// CompareAndSwap applies t with one UPDATE guarded by the current status.
func (s *Store) CompareAndSwap(ctx context.Context, evtID id.ID, t event.Transition) (bool, error) {
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	q := s.sdb.NewUpdate((*eventModel)(nil)).
		Set("status = ?", string(t.To)).
		Set("updated_at = ?", at).
		Set("attempts = attempts + ?", t.Attempts)

	if t.To.Terminal() {
		q = q.Set("processed_at = ?", at)
	}
	if t.To == event.StatusFailed {
		q = q.Set("last_error = ?", t.LastError)
	}
	q = q.Where("id = ?", evtID.String()).
		Where("status = ?", string(t.From))

	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		if _, err := s.GetEvent(ctx, evtID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.InboundEvent, error) {
	var models []eventModel
	q := s.sdb.NewSelect(&models)

	if opts.TenantID != "" {
		q = q.Where("tenant_id = ?", opts.TenantID)
	}
	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("received_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromEventModels(models)
}

func (s *Store) ListByStatus(ctx context.Context, status event.Status, before time.Time, limit int) ([]*event.InboundEvent, error) {
	var models []eventModel
	q := s.sdb.NewSelect(&models).
		Where("status = ?", string(status)).
		Where("updated_at < ?", before).
		OrderExpr("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromEventModels(models)
}

func (s *Store) PurgeEvents(ctx context.Context, status event.Status, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*eventModel)(nil)).
		Where("status = ?", string(status)).
		Where("updated_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountByStatus(ctx context.Context) (map[event.Status]int64, error) {
	statuses := []event.Status{
		event.StatusPending,
		event.StatusProcessing,
		event.StatusDone,
		event.StatusFailed,
	}

	counts := make(map[event.Status]int64, len(statuses))
	for _, st := range statuses {
		n, err := s.sdb.NewSelect((*eventModel)(nil)).
			Where("status = ?", string(st)).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[st] = n
		}
	}
	return counts, nil
}

// ==================== Credential Store ====================

// PutCredential upserts on tenant_id. The original id and created_at survive.
func (s *Store) PutCredential(ctx context.Context, c *credential.Credential) error {
	m := toCredentialModel(c)
	m.UpdatedAt = time.Now().UTC()
	_, err := s.sdb.NewInsert(m).
		OnConflict("(tenant_id) DO UPDATE").
		Set("bot_id = EXCLUDED.bot_id").
		Set("channel_secret = EXCLUDED.channel_secret").
		Set("access_token = EXCLUDED.access_token").
		Set("key_version = EXCLUDED.key_version").
		Set("confidence_threshold = EXCLUDED.confidence_threshold").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetCredential(ctx context.Context, tenantID string) (*credential.Credential, error) {
	m := new(credentialModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, replydesk.ErrCredentialNotFound
		}
		return nil, err
	}
	return fromCredentialModel(m)
}

func (s *Store) DeleteCredential(ctx context.Context, tenantID string) error {
	res, err := s.sdb.NewDelete((*credentialModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return replydesk.ErrCredentialNotFound
	}
	return nil
}

// ==================== Suggestion Store ====================

func (s *Store) CreateSuggestion(ctx context.Context, sug *suggestion.Suggestion) error {
	_, err := s.sdb.NewInsert(toSuggestionModel(sug)).Exec(ctx)
	return err
}

func (s *Store) GetSuggestion(ctx context.Context, sugID id.ID) (*suggestion.Suggestion, error) {
	m := new(suggestionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", sugID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, replydesk.ErrSuggestionNotFound
		}
		return nil, err
	}
	return fromSuggestionModel(m)
}

func (s *Store) ListSuggestions(ctx context.Context, opts suggestion.ListOpts) ([]*suggestion.Suggestion, error) {
	var models []suggestionModel
	q := s.sdb.NewSelect(&models)

	if opts.TenantID != "" {
		q = q.Where("tenant_id = ?", opts.TenantID)
	}
	if opts.ContactID != "" {
		q = q.Where("contact_id = ?", opts.ContactID)
	}
	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if !opts.ActiveAt.IsZero() {
		q = q.Where("expires_at > ?", opts.ActiveAt)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*suggestion.Suggestion, len(models))
	for i := range models {
		sug, err := fromSuggestionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sug
	}
	return result, nil
}

// CompareAndSwapStatus moves a suggestion between statuses with one guarded UPDATE.
func (s *Store) CompareAndSwapStatus(ctx context.Context, sugID id.ID, from, to suggestion.Status, at time.Time) (bool, error) {
	q := s.sdb.NewUpdate((*suggestionModel)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", at)

	switch to {
	case suggestion.StatusSent:
		q = q.Set("sent_at = ?", at)
	case suggestion.StatusDraft:
		q = q.Set("sent_at = NULL")
	}
	q = q.Where("id = ?", sugID.String()).
		Where("status = ?", string(from))

	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		if _, err := s.GetSuggestion(ctx, sugID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) ExpireSuggestions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.sdb.NewUpdate((*suggestionModel)(nil)).
		Set("status = ?", string(suggestion.StatusExpired)).
		Set("updated_at = ?", now).
		Where("status = ?", string(suggestion.StatusDraft)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Conversation Store ====================

// MarkHandoff upserts the conversation on (tenant_id, contact_id).
func (s *Store) MarkHandoff(ctx context.Context, tenantID, contactID, reason string, at time.Time) (*conversation.Conversation, error) {
	m := &conversationModel{
		ID:            id.NewConversationID().String(),
		TenantID:      tenantID,
		ContactID:     contactID,
		NeedsHuman:    true,
		HandoffReason: reason,
		HandoffAt:     &at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(tenant_id, contact_id) DO UPDATE").
		Set("needs_human = EXCLUDED.needs_human").
		Set("handoff_reason = EXCLUDED.handoff_reason").
		Set("handoff_at = EXCLUDED.handoff_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, tenantID, contactID)
}

func (s *Store) GetConversation(ctx context.Context, tenantID, contactID string) (*conversation.Conversation, error) {
	m := new(conversationModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("contact_id = ?", contactID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, replydesk.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(m)
}

func (s *Store) ListHandoffs(ctx context.Context, tenantID string) ([]*conversation.Conversation, error) {
	var models []conversationModel
	if err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("needs_human = 1").
		OrderExpr("handoff_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*conversation.Conversation, len(models))
	for i := range models {
		conv, err := fromConversationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = conv
	}
	return result, nil
}

// RecordMessage inserts the message and bumps the conversation's
// last_message_at, creating the conversation when needed.
func (s *Store) RecordMessage(ctx context.Context, msg *conversation.Message) error {
	if _, err := s.sdb.NewInsert(toMessageModel(msg)).Exec(ctx); err != nil {
		return err
	}

	sentAt := msg.SentAt
	conv := &conversationModel{
		ID:            id.NewConversationID().String(),
		TenantID:      msg.TenantID,
		ContactID:     msg.ContactID,
		LastMessageAt: &sentAt,
		CreatedAt:     sentAt,
		UpdatedAt:     sentAt,
	}
	_, err := s.sdb.NewInsert(conv).
		OnConflict("(tenant_id, contact_id) DO UPDATE").
		Set("last_message_at = EXCLUDED.last_message_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListMessages(ctx context.Context, tenantID, contactID string, limit int) ([]*conversation.Message, error) {
	var models []messageModel
	q := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("contact_id = ?", contactID).
		OrderExpr("sent_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*conversation.Message, len(models))
	for i := range models {
		msg, err := fromMessageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = msg
	}
	return result, nil
}

// ==================== Knowledge Store ====================

func (s *Store) PutEntry(ctx context.Context, e *knowledge.Entry) error {
	_, err := s.sdb.NewInsert(toEntryModel(e)).
		OnConflict("(id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("category = EXCLUDED.category").
		Set("content = EXCLUDED.content").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetEntry(ctx context.Context, entryID id.ID) (*knowledge.Entry, error) {
	m := new(entryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, replydesk.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) DeleteEntry(ctx context.Context, entryID id.ID) error {
	res, err := s.sdb.NewDelete((*entryModel)(nil)).
		Where("id = ?", entryID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return replydesk.ErrEntryNotFound
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, tenantID string) ([]*knowledge.Entry, error) {
	var models []entryModel
	if err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		OrderExpr("title ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*knowledge.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== helpers ====================

func fromEventModels(models []eventModel) ([]*event.InboundEvent, error) {
	result := make([]*event.InboundEvent, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
