package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// credentialModel is the JSON representation stored in Redis. Unlike the
// domain type it serializes the encrypted secrets.
type credentialModel struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	BotID         string    `json:"bot_id,omitempty"`
	ChannelSecret string    `json:"channel_secret"`
	AccessToken   string    `json:"access_token"`
	KeyVersion    int       `json:"key_version"`
	Threshold     float64   `json:"confidence_threshold,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
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

// PutCredential inserts or replaces a tenant's credential. The original ID
// and creation time survive a replace.
func (s *Store) PutCredential(ctx context.Context, c *credential.Credential) error {
	key := entityKey(prefixCredential, c.TenantID)
	m := toCredentialModel(c)

	var existing credentialModel
	err := s.getEntity(ctx, key, &existing)
	switch {
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		m.UpdatedAt = now()
	case !isNotFound(err):
		return fmt.Errorf("replydesk/redis: put credential: %w", err)
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("replydesk/redis: put credential: %w", err)
	}
	return nil
}

// GetCredential returns a tenant's credential.
func (s *Store) GetCredential(ctx context.Context, tenantID string) (*credential.Credential, error) {
	var m credentialModel
	if err := s.getEntity(ctx, entityKey(prefixCredential, tenantID), &m); err != nil {
		if isNotFound(err) {
			return nil, replydesk.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("replydesk/redis: get credential: %w", err)
	}
	return fromCredentialModel(&m)
}

// DeleteCredential removes a tenant's credential.
func (s *Store) DeleteCredential(ctx context.Context, tenantID string) error {
	n, err := s.rdb.Del(ctx, entityKey(prefixCredential, tenantID)).Result()
	if err != nil {
		return fmt.Errorf("replydesk/redis: delete credential: %w", err)
	}
	if n == 0 {
		return replydesk.ErrCredentialNotFound
	}
	return nil
}
