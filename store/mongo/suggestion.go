package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/suggestion"
)

// CreateSuggestion inserts a suggestion.
func (s *Store) CreateSuggestion(ctx context.Context, sug *suggestion.Suggestion) error {
	if _, err := s.mdb.NewInsert(toSuggestionModel(sug)).Exec(ctx); err != nil {
		return fmt.Errorf("replydesk/mongo: create suggestion: %w", err)
	}

	return nil
}

// GetSuggestion returns a suggestion by ID.
func (s *Store) GetSuggestion(ctx context.Context, sugID id.ID) (*suggestion.Suggestion, error) {
	var m suggestionModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": sugID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, replydesk.ErrSuggestionNotFound
		}

		return nil, fmt.Errorf("replydesk/mongo: get suggestion: %w", err)
	}

	return fromSuggestionModel(&m)
}

// ListSuggestions returns suggestions newest first, optionally filtered.
func (s *Store) ListSuggestions(ctx context.Context, opts suggestion.ListOpts) ([]*suggestion.Suggestion, error) {
	var models []suggestionModel

	filter := bson.M{}
	if opts.TenantID != "" {
		filter["tenant_id"] = opts.TenantID
	}

	if opts.ContactID != "" {
		filter["contact_id"] = opts.ContactID
	}

	if opts.Status != nil {
		filter["status"] = string(*opts.Status)
	}

	if !opts.ActiveAt.IsZero() {
		filter["expires_at"] = bson.M{"$gt": opts.ActiveAt}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: list suggestions: %w", err)
	}

	result := make([]*suggestion.Suggestion, 0, len(models))

	for i := range models {
		sug, err := fromSuggestionModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, sug)
	}

	return result, nil
}

// CompareAndSwapStatus moves a suggestion between statuses with an update
// filtered on the current status.
func (s *Store) CompareAndSwapStatus(ctx context.Context, sugID id.ID, from, to suggestion.Status, at time.Time) (bool, error) {
	set := bson.M{
		"status":     string(to),
		"updated_at": at,
	}
	update := bson.M{"$set": set}

	switch to {
	case suggestion.StatusSent:
		set["sent_at"] = at
	case suggestion.StatusDraft:
		update["$unset"] = bson.M{"sent_at": ""}
	}

	res, err := s.mdb.Collection(colSuggestions).UpdateOne(ctx,
		bson.M{"_id": sugID.String(), "status": string(from)},
		update,
	)
	if err != nil {
		return false, fmt.Errorf("replydesk/mongo: transition suggestion: %w", err)
	}

	if res.MatchedCount == 0 {
		if _, err := s.GetSuggestion(ctx, sugID); err != nil {
			return false, err
		}

		return false, nil
	}

	return true, nil
}

// ExpireSuggestions marks overdue drafts as expired.
func (s *Store) ExpireSuggestions(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.mdb.Collection(colSuggestions).UpdateMany(ctx,
		bson.M{
			"status":     string(suggestion.StatusDraft),
			"expires_at": bson.M{"$lte": t},
		},
		bson.M{"$set": bson.M{
			"status":     string(suggestion.StatusExpired),
			"updated_at": t,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("replydesk/mongo: expire suggestions: %w", err)
	}

	return res.ModifiedCount, nil
}
