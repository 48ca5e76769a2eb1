package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// eventModel is the immutable part of an event, stored as JSON. Status,
// attempts, errors and timestamps that change live in the state hash.
type eventModel struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	TenantID   string          `json:"tenant_id"`
	BotID      string          `json:"bot_id,omitempty"`
	ContactID  string          `json:"contact_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// State hash fields.
const (
	fieldStatus      = "status"
	fieldUpdatedAt   = "updated_at"
	fieldProcessedAt = "processed_at"
	fieldLastError   = "last_error"
	fieldAttempts    = "attempts"
)

// casEventScript moves an event between statuses if it is still in the
// expected one, keeping the per-status index in step.
// KEYS[1] = state hash, KEYS[2] = old status zset, KEYS[3] = new status zset
// ARGV[1] = from, ARGV[2] = to, ARGV[3] = updated_at, ARGV[4] = score,
// ARGV[5] = processed_at or "", ARGV[6] = "1" to record ARGV[7] as last
// error, ARGV[8] = attempts delta, ARGV[9] = event ID
// Returns 1 on swap, 0 on status mismatch, -1 when the event is unknown.
var casEventScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then return -1 end
if cur ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'updated_at', ARGV[3])
if ARGV[5] ~= '' then redis.call('HSET', KEYS[1], 'processed_at', ARGV[5]) end
if ARGV[6] == '1' then redis.call('HSET', KEYS[1], 'last_error', ARGV[7]) end
redis.call('HINCRBY', KEYS[1], 'attempts', tonumber(ARGV[8]))
redis.call('ZREM', KEYS[2], ARGV[9])
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[9])
return 1
`)

// createEventScript claims the (tenant, external id) key and writes the
// document, state hash and indexes in one step, so a failed create never
// leaves a claim behind that would reject every redelivery.
// KEYS[1] = unique key, KEYS[2] = document, KEYS[3] = state hash,
// KEYS[4] = all zset, KEYS[5] = tenant zset, KEYS[6] = status zset
// ARGV[1] = event ID, ARGV[2] = document JSON, ARGV[3] = received score,
// ARGV[4] = updated score, ARGV[5...] = state field/value pairs
// Returns 1 when created, 0 when the external id is already taken.
var createEventScript = goredis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX') then return 0 end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('HSET', KEYS[3], unpack(ARGV, 5))
redis.call('ZADD', KEYS[4], ARGV[3], ARGV[1])
redis.call('ZADD', KEYS[5], ARGV[3], ARGV[1])
redis.call('ZADD', KEYS[6], ARGV[4], ARGV[1])
return 1
`)

// CreateEvent persists an event through createEventScript. The document is
// read back through KV like every other entity.
func (s *Store) CreateEvent(ctx context.Context, evt *event.InboundEvent) error {
	evtID := evt.ID.String()

	doc, err := json.Marshal(&eventModel{
		ID:         evtID,
		ExternalID: evt.ExternalID,
		TenantID:   evt.TenantID,
		BotID:      evt.BotID,
		ContactID:  evt.ContactID,
		Payload:    evt.Payload,
		ReceivedAt: evt.ReceivedAt,
		CreatedAt:  evt.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("replydesk/redis: marshal event: %w", err)
	}

	processedAt := ""
	if evt.ProcessedAt != nil {
		processedAt = formatTime(*evt.ProcessedAt)
	}

	keys := []string{
		uniqueEventExternal + evt.TenantID + ":" + evt.ExternalID,
		entityKey(prefixEvent, evtID),
		entityKey(prefixEventState, evtID),
		zEventAll,
		zEventTenant + evt.TenantID,
		zEventStatus + string(evt.Status),
	}
	args := []any{
		evtID,
		doc,
		strconv.FormatFloat(scoreFromTime(evt.ReceivedAt), 'f', -1, 64),
		strconv.FormatFloat(scoreFromTime(evt.UpdatedAt), 'f', -1, 64),
		fieldStatus, string(evt.Status),
		fieldUpdatedAt, formatTime(evt.UpdatedAt),
		fieldAttempts, evt.Attempts,
		fieldLastError, evt.LastError,
	}
	if processedAt != "" {
		args = append(args, fieldProcessedAt, processedAt)
	}

	created, err := createEventScript.Run(ctx, s.rdb, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("replydesk/redis: create event: %w", err)
	}
	if created == 0 {
		return replydesk.ErrDuplicateEvent
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.InboundEvent, error) {
	return s.loadEvent(ctx, evtID.String())
}

// CompareAndSwap applies t atomically through casEventScript.
func (s *Store) CompareAndSwap(ctx context.Context, evtID id.ID, t event.Transition) (bool, error) {
	at := t.At
	if at.IsZero() {
		at = now()
	}

	processedAt := ""
	if t.To.Terminal() {
		processedAt = formatTime(at)
	}
	setError := "0"
	if t.To == event.StatusFailed {
		setError = "1"
	}

	key := evtID.String()
	res, err := casEventScript.Run(ctx, s.rdb,
		[]string{
			entityKey(prefixEventState, key),
			zEventStatus + string(t.From),
			zEventStatus + string(t.To),
		},
		string(t.From), string(t.To), formatTime(at), scoreFromTime(at),
		processedAt, setError, t.LastError, t.Attempts, key,
	).Int()
	if err != nil {
		return false, fmt.Errorf("replydesk/redis: transition event: %w", err)
	}

	switch res {
	case -1:
		return false, replydesk.ErrEventNotFound
	case 0:
		return false, nil
	}
	return true, nil
}

// ListEvents returns events newest first, optionally filtered.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.InboundEvent, error) {
	index := zEventAll
	if opts.TenantID != "" {
		index = zEventTenant + opts.TenantID
	}

	ids, err := s.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("replydesk/redis: list events: %w", err)
	}

	result := make([]*event.InboundEvent, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		evt, err := s.loadEvent(ctx, ids[i])
		if err != nil {
			if errors.Is(err, replydesk.ErrEventNotFound) {
				continue
			}
			return nil, err
		}
		if opts.Status != nil && evt.Status != *opts.Status {
			continue
		}
		result = append(result, evt)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ListByStatus returns events in status updated before the cutoff, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status event.Status, before time.Time, limit int) ([]*event.InboundEvent, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zEventStatus+string(status), math.Inf(-1), scoreFromTime(before), limit)
	if err != nil {
		return nil, fmt.Errorf("replydesk/redis: list by status: %w", err)
	}

	result := make([]*event.InboundEvent, 0, len(ids))
	for _, evtID := range ids {
		evt, err := s.loadEvent(ctx, evtID)
		if err != nil {
			if errors.Is(err, replydesk.ErrEventNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, evt)
	}
	return result, nil
}

// PurgeEvents deletes events in status updated before the cutoff along
// with their state, indexes and unique key.
func (s *Store) PurgeEvents(ctx context.Context, status event.Status, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zEventStatus+string(status), math.Inf(-1), scoreFromTime(before), 0)
	if err != nil {
		return 0, fmt.Errorf("replydesk/redis: purge events: %w", err)
	}

	var n int64
	for _, evtID := range ids {
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, evtID), &m); err != nil && !isNotFound(err) {
			return n, fmt.Errorf("replydesk/redis: purge events: %w", err)
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, entityKey(prefixEvent, evtID), entityKey(prefixEventState, evtID))
		pipe.ZRem(ctx, zEventAll, evtID)
		pipe.ZRem(ctx, zEventStatus+string(status), evtID)
		if m.TenantID != "" {
			pipe.ZRem(ctx, zEventTenant+m.TenantID, evtID)
			pipe.Del(ctx, uniqueEventExternal+m.TenantID+":"+m.ExternalID)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return n, fmt.Errorf("replydesk/redis: purge events: %w", err)
		}
		n++
	}
	return n, nil
}

// CountByStatus returns the number of events per status from the status indexes.
func (s *Store) CountByStatus(ctx context.Context) (map[event.Status]int64, error) {
	statuses := []event.Status{
		event.StatusPending,
		event.StatusProcessing,
		event.StatusDone,
		event.StatusFailed,
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*goredis.IntCmd, len(statuses))
	for i, st := range statuses {
		cmds[i] = pipe.ZCard(ctx, zEventStatus+string(st))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("replydesk/redis: count by status: %w", err)
	}

	counts := make(map[event.Status]int64, len(statuses))
	for i, st := range statuses {
		if n := cmds[i].Val(); n > 0 {
			counts[st] = n
		}
	}
	return counts, nil
}

// loadEvent joins an event document with its state hash.
func (s *Store) loadEvent(ctx context.Context, evtID string) (*event.InboundEvent, error) {
	var m eventModel
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID), &m); err != nil {
		if isNotFound(err) {
			return nil, replydesk.ErrEventNotFound
		}
		return nil, fmt.Errorf("replydesk/redis: get event: %w", err)
	}

	state, err := s.rdb.HGetAll(ctx, entityKey(prefixEventState, evtID)).Result()
	if err != nil && !isRedisNil(err) {
		return nil, fmt.Errorf("replydesk/redis: get event state: %w", err)
	}

	parsed, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}

	evt := &event.InboundEvent{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: parseTime(state[fieldUpdatedAt]),
		},
		ID:         parsed,
		ExternalID: m.ExternalID,
		TenantID:   m.TenantID,
		BotID:      m.BotID,
		ContactID:  m.ContactID,
		Payload:    m.Payload,
		Status:     event.Status(state[fieldStatus]),
		ReceivedAt: m.ReceivedAt,
		LastError:  state[fieldLastError],
	}
	if v := state[fieldProcessedAt]; v != "" {
		t := parseTime(v)
		evt.ProcessedAt = &t
	}
	if v := state[fieldAttempts]; v != "" {
		evt.Attempts, _ = strconv.Atoi(v) //nolint:errcheck // written by HINCRBY
	}
	return evt, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s) //nolint:errcheck // zero time for absent fields
	return t
}
