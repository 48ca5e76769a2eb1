package suggestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/platform"
)

var (
	// ErrNotDraft is returned when approving a suggestion that is no longer
	// a draft, including the loser of a concurrent approval.
	ErrNotDraft = errors.New("suggestion: not a draft")

	// ErrExpired is returned when approving a draft past its expiry.
	ErrExpired = errors.New("suggestion: expired")
)

// Sender pushes a message upstream. platform.Sender implements it.
type Sender interface {
	Send(ctx context.Context, req platform.PushRequest) (int, error)
}

// Service lists drafts for reviewers and sends approved ones.
type Service struct {
	store    Store
	resolver credential.Resolver
	sender   Sender
	messages conversation.Store
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithMessageLog records approved sends in the conversation store.
func WithMessageLog(messages conversation.Store) ServiceOption {
	return func(s *Service) { s.messages = messages }
}

// NewService creates a suggestion service.
func NewService(store Store, resolver credential.Resolver, sender Sender, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		resolver: resolver,
		sender:   sender,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListDrafts returns the usable drafts for a contact.
func (s *Service) ListDrafts(ctx context.Context, tenantID, contactID string) ([]*Suggestion, error) {
	status := StatusDraft
	return s.store.ListSuggestions(ctx, ListOpts{
		TenantID:  tenantID,
		ContactID: contactID,
		Status:    &status,
		ActiveAt:  s.now(),
	})
}

// Approve sends a draft exactly once. The draft → sent swap happens before
// the send so a second approval loses with ErrNotDraft; a failed send
// swaps the suggestion back to draft and returns an error wrapping
// platform.ErrSend.
func (s *Service) Approve(ctx context.Context, sugID id.ID) (*Suggestion, error) {
	sug, err := s.store.GetSuggestion(ctx, sugID)
	if err != nil {
		return nil, err
	}
	if sug.Status != StatusDraft {
		return nil, ErrNotDraft
	}

	now := s.now()
	if !sug.Usable(now) {
		if _, err := s.store.CompareAndSwapStatus(ctx, sugID, StatusDraft, StatusExpired, now); err != nil {
			s.logger.WarnContext(ctx, "failed to expire suggestion", "suggestion_id", sugID.String(), "error", err)
		}
		return nil, ErrExpired
	}

	swapped, err := s.store.CompareAndSwapStatus(ctx, sugID, StatusDraft, StatusSent, now)
	if err != nil {
		return nil, fmt.Errorf("suggestion: claim: %w", err)
	}
	if !swapped {
		return nil, ErrNotDraft
	}

	if err := s.send(ctx, sug); err != nil {
		if _, cerr := s.store.CompareAndSwapStatus(ctx, sugID, StatusSent, StatusDraft, now); cerr != nil {
			s.logger.ErrorContext(ctx, "failed to restore draft after send failure",
				"suggestion_id", sugID.String(),
				"error", cerr,
			)
		}
		return nil, err
	}

	sug.Status = StatusSent
	sug.SentAt = &now
	s.logger.InfoContext(ctx, "suggestion approved",
		"suggestion_id", sugID.String(),
		"tenant_id", sug.TenantID,
		"contact_id", sug.ContactID,
	)

	if s.messages != nil {
		msg := &conversation.Message{
			Entity:       entity.New(),
			ID:           id.NewMessageID(),
			TenantID:     sug.TenantID,
			ContactID:    sug.ContactID,
			EventID:      sug.EventID,
			SuggestionID: sug.ID,
			Text:         sug.DraftReply,
			Origin:       conversation.OriginApproved,
			SentAt:       now,
		}
		if err := s.messages.RecordMessage(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "failed to record approved message", "suggestion_id", sugID.String(), "error", err)
		}
	}
	return sug, nil
}

func (s *Service) send(ctx context.Context, sug *Suggestion) error {
	secrets, err := s.resolver.Resolve(ctx, sug.TenantID)
	if err != nil {
		return fmt.Errorf("%w: resolve credentials: %w", platform.ErrSend, err)
	}

	_, err = s.sender.Send(ctx, platform.PushRequest{
		AccessToken: secrets.AccessToken,
		To:          sug.ContactID,
		Messages:    []platform.Message{platform.TextMessage(sug.DraftReply)},
		RetryKey:    RetryKey(sug.ID),
	})
	return err
}

// RetryKey is the platform retry key for a suggestion. It is stable so
// the platform can discard a repeated push of the same draft.
func RetryKey(sugID id.ID) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sugID.String())).String()
}
