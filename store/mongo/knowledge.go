package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/knowledge"
)

// PutEntry inserts or replaces a knowledge entry.
func (s *Store) PutEntry(ctx context.Context, e *knowledge.Entry) error {
	m := toEntryModel(e)

	_, err := s.mdb.Collection(colKnowledge).UpdateOne(ctx,
		bson.M{"_id": m.ID},
		bson.M{
			"$set": bson.M{
				"tenant_id":  m.TenantID,
				"title":      m.Title,
				"category":   m.Category,
				"content":    m.Content,
				"updated_at": m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replydesk/mongo: put entry: %w", err)
	}

	return nil
}

// GetEntry returns a knowledge entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.ID) (*knowledge.Entry, error) {
	var m entryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, replydesk.ErrEntryNotFound
		}

		return nil, fmt.Errorf("replydesk/mongo: get entry: %w", err)
	}

	return fromEntryModel(&m)
}

// DeleteEntry removes a knowledge entry.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.ID) error {
	res, err := s.mdb.NewDelete((*entryModel)(nil)).
		Filter(bson.M{"_id": entryID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("replydesk/mongo: delete entry: %w", err)
	}

	if res.DeletedCount() == 0 {
		return replydesk.ErrEntryNotFound
	}

	return nil
}

// ListEntries returns a tenant's entries ordered by title.
func (s *Store) ListEntries(ctx context.Context, tenantID string) ([]*knowledge.Entry, error) {
	var models []entryModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID}).
		Sort(bson.D{{Key: "title", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: list entries: %w", err)
	}

	result := make([]*knowledge.Entry, 0, len(models))

	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, e)
	}

	return result, nil
}
