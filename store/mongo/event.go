package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
)

// CreateEvent persists an event. The unique (tenant_id, external_id)
// index reports redeliveries as ErrDuplicateEvent.
func (s *Store) CreateEvent(ctx context.Context, evt *event.InboundEvent) error {
	_, err := s.mdb.NewInsert(toEventModel(evt)).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return replydesk.ErrDuplicateEvent
		}

		return fmt.Errorf("replydesk/mongo: create event: %w", err)
	}

	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.InboundEvent, error) {
	var m eventModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": evtID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, replydesk.ErrEventNotFound
		}

		return nil, fmt.Errorf("replydesk/mongo: get event: %w", err)
	}

	return fromEventModel(&m)
}

// CompareAndSwap applies t with an update filtered on the current status.
func (s *Store) CompareAndSwap(ctx context.Context, evtID id.ID, t event.Transition) (bool, error) {
	at := t.At
	if at.IsZero() {
		at = now()
	}

	set := bson.M{
		"status":     string(t.To),
		"updated_at": at,
	}
	if t.To.Terminal() {
		set["processed_at"] = at
	}
	if t.To == event.StatusFailed {
		set["last_error"] = t.LastError
	}

	update := bson.M{
		"$set": set,
		"$inc": bson.M{"attempts": t.Attempts},
	}

	res, err := s.mdb.Collection(colEvents).UpdateOne(ctx,
		bson.M{"_id": evtID.String(), "status": string(t.From)},
		update,
	)
	if err != nil {
		return false, fmt.Errorf("replydesk/mongo: transition event: %w", err)
	}

	if res.MatchedCount == 0 {
		if _, err := s.GetEvent(ctx, evtID); err != nil {
			return false, err
		}

		return false, nil
	}

	return true, nil
}

// ListEvents returns events newest first, optionally filtered.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.InboundEvent, error) {
	var models []eventModel

	filter := bson.M{}
	if opts.TenantID != "" {
		filter["tenant_id"] = opts.TenantID
	}

	if opts.Status != nil {
		filter["status"] = string(*opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "received_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: list events: %w", err)
	}

	return fromEventModels(models)
}

// ListByStatus returns events in status updated before the cutoff, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status event.Status, before time.Time, limit int) ([]*event.InboundEvent, error) {
	var models []eventModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":     string(status),
			"updated_at": bson.M{"$lt": before},
		}).
		Sort(bson.D{{Key: "updated_at", Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: list by status: %w", err)
	}

	return fromEventModels(models)
}

// PurgeEvents deletes events in status updated before the cutoff.
func (s *Store) PurgeEvents(ctx context.Context, status event.Status, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*eventModel)(nil)).
		Many().
		Filter(bson.M{
			"status":     string(status),
			"updated_at": bson.M{"$lt": before},
		}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("replydesk/mongo: purge events: %w", err)
	}

	return res.DeletedCount(), nil
}

// CountByStatus groups events by status in one aggregation.
func (s *Store) CountByStatus(ctx context.Context) (map[event.Status]int64, error) {
	pipeline := mongod.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cur, err := s.mdb.Collection(colEvents).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("replydesk/mongo: count by status: %w", err)
	}

	var rows []struct {
		Status string `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("replydesk/mongo: count by status: %w", err)
	}

	counts := make(map[event.Status]int64, len(rows))
	for _, r := range rows {
		counts[event.Status(r.Status)] = r.N
	}

	return counts, nil
}

func fromEventModels(models []eventModel) ([]*event.InboundEvent, error) {
	result := make([]*event.InboundEvent, 0, len(models))

	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, evt)
	}

	return result, nil
}
