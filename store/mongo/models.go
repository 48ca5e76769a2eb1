package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/suggestion"
)

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:replydesk_events"`

	ID          string          `grove:"id,pk" bson:"_id"`
	ExternalID  string          `grove:"external_id" bson:"external_id"`
	TenantID    string          `grove:"tenant_id" bson:"tenant_id"`
	BotID       string          `grove:"bot_id" bson:"bot_id"`
	ContactID   string          `grove:"contact_id" bson:"contact_id"`
	Payload     json.RawMessage `grove:"payload" bson:"payload,omitempty"`
	Status      string          `grove:"status" bson:"status"`
	ReceivedAt  time.Time       `grove:"received_at" bson:"received_at"`
	ProcessedAt *time.Time      `grove:"processed_at" bson:"processed_at,omitempty"`
	LastError   string          `grove:"last_error" bson:"last_error"`
	Attempts    int             `grove:"attempts" bson:"attempts"`
	CreatedAt   time.Time       `grove:"created_at" bson:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at" bson:"updated_at"`
}

func toEventModel(evt *event.InboundEvent) *eventModel {
	return &eventModel{
		ID:          evt.ID.String(),
		ExternalID:  evt.ExternalID,
		TenantID:    evt.TenantID,
		BotID:       evt.BotID,
		ContactID:   evt.ContactID,
		Payload:     evt.Payload,
		Status:      string(evt.Status),
		ReceivedAt:  evt.ReceivedAt,
		ProcessedAt: evt.ProcessedAt,
		LastError:   evt.LastError,
		Attempts:    evt.Attempts,
		CreatedAt:   evt.CreatedAt,
		UpdatedAt:   evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.InboundEvent, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.InboundEvent{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          evtID,
		ExternalID:  m.ExternalID,
		TenantID:    m.TenantID,
		BotID:       m.BotID,
		ContactID:   m.ContactID,
		Payload:     m.Payload,
		Status:      event.Status(m.Status),
		ReceivedAt:  m.ReceivedAt,
		ProcessedAt: m.ProcessedAt,
		LastError:   m.LastError,
		Attempts:    m.Attempts,
	}, nil
}

// --- Credential models ---

type credentialModel struct {
	grove.BaseModel `grove:"table:replydesk_credentials"`

	ID            string    `grove:"id,pk" bson:"_id"`
	TenantID      string    `grove:"tenant_id,unique" bson:"tenant_id"`
	BotID         string    `grove:"bot_id" bson:"bot_id"`
	ChannelSecret string    `grove:"channel_secret" bson:"channel_secret"`
	AccessToken   string    `grove:"access_token" bson:"access_token"`
	KeyVersion    int       `grove:"key_version" bson:"key_version"`
	Threshold     float64   `grove:"confidence_threshold" bson:"confidence_threshold"`
	CreatedAt     time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at" bson:"updated_at"`
}

func toCredentialModel(c *credential.Credential) *credentialModel {
	return &credentialModel{
		ID:            c.ID.String(),
		TenantID:      c.TenantID,
		BotID:         c.BotID,
		ChannelSecret: c.ChannelSecret,
		AccessToken:   c.AccessToken,
		KeyVersion:    c.KeyVersion,
		Threshold:     c.ConfidenceThreshold,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func fromCredentialModel(m *credentialModel) (*credential.Credential, error) {
	credID, err := id.ParseCredentialID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse credential ID %q: %w", m.ID, err)
	}
	return &credential.Credential{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            credID,
		TenantID:      m.TenantID,
		BotID:         m.BotID,
		ChannelSecret: m.ChannelSecret,
		AccessToken:   m.AccessToken,
		KeyVersion:    m.KeyVersion,

		ConfidenceThreshold: m.Threshold,
	}, nil
}

// --- Suggestion models ---

type suggestionModel struct {
	grove.BaseModel `grove:"table:replydesk_suggestions"`

	ID              string     `grove:"id,pk" bson:"_id"`
	TenantID        string     `grove:"tenant_id" bson:"tenant_id"`
	ContactID       string     `grove:"contact_id" bson:"contact_id"`
	EventID         string     `grove:"event_id" bson:"event_id"`
	Kind            string     `grove:"kind" bson:"kind"`
	UserMessage     string     `grove:"user_message" bson:"user_message"`
	DraftReply      string     `grove:"draft_reply" bson:"draft_reply"`
	SourcesCount    int        `grove:"sources_count" bson:"sources_count"`
	ConfidenceScore float64    `grove:"confidence_score" bson:"confidence_score"`
	RiskCategory    string     `grove:"risk_category" bson:"risk_category"`
	Status          string     `grove:"status" bson:"status"`
	ExpiresAt       time.Time  `grove:"expires_at" bson:"expires_at"`
	SentAt          *time.Time `grove:"sent_at" bson:"sent_at,omitempty"`
	CreatedAt       time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `grove:"updated_at" bson:"updated_at"`
}

func toSuggestionModel(s *suggestion.Suggestion) *suggestionModel {
	return &suggestionModel{
		ID:              s.ID.String(),
		TenantID:        s.TenantID,
		ContactID:       s.ContactID,
		EventID:         s.EventID.String(),
		Kind:            string(s.Kind),
		UserMessage:     s.UserMessage,
		DraftReply:      s.DraftReply,
		SourcesCount:    s.SourcesCount,
		ConfidenceScore: s.ConfidenceScore,
		RiskCategory:    s.RiskCategory,
		Status:          string(s.Status),
		ExpiresAt:       s.ExpiresAt,
		SentAt:          s.SentAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func fromSuggestionModel(m *suggestionModel) (*suggestion.Suggestion, error) {
	sugID, err := id.ParseSuggestionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse suggestion ID %q: %w", m.ID, err)
	}
	evtID, err := parseOptionalID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &suggestion.Suggestion{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              sugID,
		TenantID:        m.TenantID,
		ContactID:       m.ContactID,
		EventID:         evtID,
		Kind:            suggestion.Kind(m.Kind),
		UserMessage:     m.UserMessage,
		DraftReply:      m.DraftReply,
		SourcesCount:    m.SourcesCount,
		ConfidenceScore: m.ConfidenceScore,
		RiskCategory:    m.RiskCategory,
		Status:          suggestion.Status(m.Status),
		ExpiresAt:       m.ExpiresAt,
		SentAt:          m.SentAt,
	}, nil
}

// --- Conversation models ---

type conversationModel struct {
	grove.BaseModel `grove:"table:replydesk_conversations"`

	ID            string     `grove:"id,pk" bson:"_id"`
	TenantID      string     `grove:"tenant_id" bson:"tenant_id"`
	ContactID     string     `grove:"contact_id" bson:"contact_id"`
	NeedsHuman    bool       `grove:"needs_human" bson:"needs_human"`
	HandoffReason string     `grove:"handoff_reason" bson:"handoff_reason"`
	HandoffAt     *time.Time `grove:"handoff_at" bson:"handoff_at,omitempty"`
	LastMessageAt *time.Time `grove:"last_message_at" bson:"last_message_at,omitempty"`
	CreatedAt     time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt     time.Time  `grove:"updated_at" bson:"updated_at"`
}

func fromConversationModel(m *conversationModel) (*conversation.Conversation, error) {
	convID, err := id.ParseConversationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse conversation ID %q: %w", m.ID, err)
	}
	return &conversation.Conversation{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            convID,
		TenantID:      m.TenantID,
		ContactID:     m.ContactID,
		NeedsHuman:    m.NeedsHuman,
		HandoffReason: m.HandoffReason,
		HandoffAt:     m.HandoffAt,
		LastMessageAt: m.LastMessageAt,
	}, nil
}

// --- Message models ---

type messageModel struct {
	grove.BaseModel `grove:"table:replydesk_messages"`

	ID           string    `grove:"id,pk" bson:"_id"`
	TenantID     string    `grove:"tenant_id" bson:"tenant_id"`
	ContactID    string    `grove:"contact_id" bson:"contact_id"`
	EventID      string    `grove:"event_id" bson:"event_id"`
	SuggestionID string    `grove:"suggestion_id" bson:"suggestion_id"`
	Text         string    `grove:"text" bson:"text"`
	Origin       string    `grove:"origin" bson:"origin"`
	SentAt       time.Time `grove:"sent_at" bson:"sent_at"`
	CreatedAt    time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at" bson:"updated_at"`
}

func toMessageModel(msg *conversation.Message) *messageModel {
	return &messageModel{
		ID:           msg.ID.String(),
		TenantID:     msg.TenantID,
		ContactID:    msg.ContactID,
		EventID:      msg.EventID.String(),
		SuggestionID: msg.SuggestionID.String(),
		Text:         msg.Text,
		Origin:       string(msg.Origin),
		SentAt:       msg.SentAt,
		CreatedAt:    msg.CreatedAt,
		UpdatedAt:    msg.UpdatedAt,
	}
}

func fromMessageModel(m *messageModel) (*conversation.Message, error) {
	msgID, err := id.ParseMessageID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse message ID %q: %w", m.ID, err)
	}
	evtID, err := parseOptionalID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	sugID, err := parseOptionalID(m.SuggestionID)
	if err != nil {
		return nil, fmt.Errorf("parse suggestion ID %q: %w", m.SuggestionID, err)
	}
	return &conversation.Message{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           msgID,
		TenantID:     m.TenantID,
		ContactID:    m.ContactID,
		EventID:      evtID,
		SuggestionID: sugID,
		Text:         m.Text,
		Origin:       conversation.Origin(m.Origin),
		SentAt:       m.SentAt,
	}, nil
}

// --- Knowledge models ---

type entryModel struct {
	grove.BaseModel `grove:"table:replydesk_knowledge"`

	ID        string    `grove:"id,pk" bson:"_id"`
	TenantID  string    `grove:"tenant_id" bson:"tenant_id"`
	Title     string    `grove:"title" bson:"title"`
	Category  string    `grove:"category" bson:"category"`
	Content   string    `grove:"content" bson:"content"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toEntryModel(e *knowledge.Entry) *entryModel {
	return &entryModel{
		ID:        e.ID.String(),
		TenantID:  e.TenantID,
		Title:     e.Title,
		Category:  e.Category,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func fromEntryModel(m *entryModel) (*knowledge.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse entry ID %q: %w", m.ID, err)
	}
	return &knowledge.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       entryID,
		TenantID: m.TenantID,
		Title:    m.Title,
		Category: m.Category,
		Content:  m.Content,
	}, nil
}

// --- helpers ---

func parseOptionalID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.Parse(s)
}
