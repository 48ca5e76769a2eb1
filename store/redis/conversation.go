package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// MarkHandoff flags a contact's conversation, creating it when needed.
func (s *Store) MarkHandoff(ctx context.Context, tenantID, contactID, reason string, at time.Time) (*conversation.Conversation, error) {
	conv, err := s.upsertConversation(ctx, tenantID, contactID, func(c *conversation.Conversation, pipe goredis.Pipeliner) {
		handoffAt := at
		c.NeedsHuman = true
		c.HandoffReason = reason
		c.HandoffAt = &handoffAt
		c.UpdatedAt = at
		pipe.ZAdd(ctx, zHandoffTenant+tenantID, goredis.Z{Score: scoreFromTime(at), Member: contactID})
	})
	if err != nil {
		return nil, fmt.Errorf("replydesk/redis: mark handoff: %w", err)
	}
	return conv, nil
}

// GetConversation returns a contact's conversation.
func (s *Store) GetConversation(ctx context.Context, tenantID, contactID string) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	if err := s.getEntity(ctx, contactKey(prefixConversation, tenantID, contactID), &conv); err != nil {
		if isNotFound(err) {
			return nil, replydesk.ErrConversationNotFound
		}
		return nil, fmt.Errorf("replydesk/redis: get conversation: %w", err)
	}
	return &conv, nil
}

// ListHandoffs returns a tenant's conversations needing a human, oldest
// handoff first.
func (s *Store) ListHandoffs(ctx context.Context, tenantID string) ([]*conversation.Conversation, error) {
	contacts, err := s.rdb.ZRange(ctx, zHandoffTenant+tenantID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("replydesk/redis: list handoffs: %w", err)
	}

	result := make([]*conversation.Conversation, 0, len(contacts))
	for _, contactID := range contacts {
		conv, err := s.GetConversation(ctx, tenantID, contactID)
		if err != nil {
			if errors.Is(err, replydesk.ErrConversationNotFound) {
				continue
			}
			return nil, err
		}
		if conv.NeedsHuman {
			result = append(result, conv)
		}
	}
	return result, nil
}

// RecordMessage stores a sent message and bumps the conversation.
func (s *Store) RecordMessage(ctx context.Context, msg *conversation.Message) error {
	msgID := msg.ID.String()
	if err := s.setEntity(ctx, entityKey(prefixMessage, msgID), msg); err != nil {
		return fmt.Errorf("replydesk/redis: record message: %w", err)
	}

	_, err := s.upsertConversation(ctx, msg.TenantID, msg.ContactID, func(c *conversation.Conversation, pipe goredis.Pipeliner) {
		sentAt := msg.SentAt
		c.LastMessageAt = &sentAt
		pipe.ZAdd(ctx, contactKey(zMessageContact, msg.TenantID, msg.ContactID), goredis.Z{Score: scoreFromTime(sentAt), Member: msgID})
	})
	if err != nil {
		return fmt.Errorf("replydesk/redis: record message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent messages sent to a contact.
func (s *Store) ListMessages(ctx context.Context, tenantID, contactID string, limit int) ([]*conversation.Message, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.rdb.ZRevRange(ctx, contactKey(zMessageContact, tenantID, contactID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("replydesk/redis: list messages: %w", err)
	}

	result := make([]*conversation.Message, 0, len(ids))
	for _, msgID := range ids {
		var msg conversation.Message
		if err := s.getEntity(ctx, entityKey(prefixMessage, msgID), &msg); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		result = append(result, &msg)
	}
	return result, nil
}

// upsertConversation loads or creates a conversation, applies mutate and
// writes it back under WATCH. mutate may queue index updates on pipe.
func (s *Store) upsertConversation(
	ctx context.Context,
	tenantID, contactID string,
	mutate func(*conversation.Conversation, goredis.Pipeliner),
) (*conversation.Conversation, error) {
	key := contactKey(prefixConversation, tenantID, contactID)

	var out *conversation.Conversation
	txf := func(tx *goredis.Tx) error {
		var conv *conversation.Conversation
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case isRedisNil(err):
			conv = &conversation.Conversation{
				Entity:    entity.New(),
				ID:        id.NewConversationID(),
				TenantID:  tenantID,
				ContactID: contactID,
			}
		case err != nil:
			return err
		default:
			conv = new(conversation.Conversation)
			if err := json.Unmarshal(raw, conv); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			mutate(conv, pipe)
			next, err := json.Marshal(conv)
			if err != nil {
				return err
			}
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			out = conv
		}
		return err
	}

	for range maxWatchRetries {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, errContention
}
