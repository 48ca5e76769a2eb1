package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/credential"
)

// PutCredential upserts on tenant_id. The original _id and created_at survive.
func (s *Store) PutCredential(ctx context.Context, c *credential.Credential) error {
	m := toCredentialModel(c)
	t := now()

	_, err := s.mdb.Collection(colCredentials).UpdateOne(ctx,
		bson.M{"tenant_id": m.TenantID},
		bson.M{
			"$set": bson.M{
				"bot_id":               m.BotID,
				"channel_secret":       m.ChannelSecret,
				"access_token":         m.AccessToken,
				"key_version":          m.KeyVersion,
				"confidence_threshold": m.Threshold,
				"updated_at":           t,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"created_at": m.CreatedAt,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replydesk/mongo: put credential: %w", err)
	}

	return nil
}

// GetCredential returns a tenant's credential.
func (s *Store) GetCredential(ctx context.Context, tenantID string) (*credential.Credential, error) {
	var m credentialModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"tenant_id": tenantID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, replydesk.ErrCredentialNotFound
		}

		return nil, fmt.Errorf("replydesk/mongo: get credential: %w", err)
	}

	return fromCredentialModel(&m)
}

// DeleteCredential removes a tenant's credential.
func (s *Store) DeleteCredential(ctx context.Context, tenantID string) error {
	res, err := s.mdb.NewDelete((*credentialModel)(nil)).
		Filter(bson.M{"tenant_id": tenantID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("replydesk/mongo: delete credential: %w", err)
	}

	if res.DeletedCount() == 0 {
		return replydesk.ErrCredentialNotFound
	}

	return nil
}
