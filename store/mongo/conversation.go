package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/id"
)

// MarkHandoff flags the conversation in one upserting FindOneAndUpdate.
func (s *Store) MarkHandoff(ctx context.Context, tenantID, contactID, reason string, at time.Time) (*conversation.Conversation, error) {
	filter := bson.M{"tenant_id": tenantID, "contact_id": contactID}
	update := bson.M{
		"$set": bson.M{
			"needs_human":    true,
			"handoff_reason": reason,
			"handoff_at":     at,
			"updated_at":     at,
		},
		"$setOnInsert": bson.M{
			"_id":        id.NewConversationID().String(),
			"created_at": at,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m conversationModel
	if err := s.mdb.Collection(colConversations).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: mark handoff: %w", err)
	}

	return fromConversationModel(&m)
}

// GetConversation returns a contact's conversation.
func (s *Store) GetConversation(ctx context.Context, tenantID, contactID string) (*conversation.Conversation, error) {
	var m conversationModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"tenant_id": tenantID, "contact_id": contactID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, replydesk.ErrConversationNotFound
		}

		return nil, fmt.Errorf("replydesk/mongo: get conversation: %w", err)
	}

	return fromConversationModel(&m)
}

// ListHandoffs returns a tenant's conversations needing a human.
func (s *Store) ListHandoffs(ctx context.Context, tenantID string) ([]*conversation.Conversation, error) {
	var models []conversationModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "needs_human": true}).
		Sort(bson.D{{Key: "handoff_at", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: list handoffs: %w", err)
	}

	result := make([]*conversation.Conversation, 0, len(models))

	for i := range models {
		conv, err := fromConversationModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, conv)
	}

	return result, nil
}

// RecordMessage stores a sent message and bumps the conversation.
func (s *Store) RecordMessage(ctx context.Context, msg *conversation.Message) error {
	if _, err := s.mdb.NewInsert(toMessageModel(msg)).Exec(ctx); err != nil {
		return fmt.Errorf("replydesk/mongo: record message: %w", err)
	}

	_, err := s.mdb.Collection(colConversations).UpdateOne(ctx,
		bson.M{"tenant_id": msg.TenantID, "contact_id": msg.ContactID},
		bson.M{
			"$set": bson.M{
				"last_message_at": msg.SentAt,
				"updated_at":      msg.SentAt,
			},
			"$setOnInsert": bson.M{
				"_id":         id.NewConversationID().String(),
				"needs_human": false,
				"created_at":  msg.SentAt,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replydesk/mongo: touch conversation: %w", err)
	}

	return nil
}

// ListMessages returns the most recent messages sent to a contact.
func (s *Store) ListMessages(ctx context.Context, tenantID, contactID string, limit int) ([]*conversation.Message, error) {
	var models []messageModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "contact_id": contactID}).
		Sort(bson.D{{Key: "sent_at", Value: -1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: list messages: %w", err)
	}

	result := make([]*conversation.Message, 0, len(models))

	for i := range models {
		msg, err := fromMessageModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, msg)
	}

	return result, nil
}
