// Package redis implements store.Store on Redis through grove KV.
//
// Entities are JSON documents; listings are sorted-set indexes. An event's
// mutable processing state lives in a hash beside its document so the
// status compare-and-swap can run as one Lua script. The same store also
// serves as the shared idempotency ledger and rate-limit counter, so a
// fleet of instances agrees on both.
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

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	"github.com/xraph/replydesk/idempotency"
	"github.com/xraph/replydesk/ratelimit"
	deskstore "github.com/xraph/replydesk/store"
)

// compile-time interface checks
var (
	_ deskstore.Store   = (*Store)(nil)
	_ idempotency.Store = (*Rails)(nil)
	_ ratelimit.Counter = (*Rails)(nil)
)

// Store implements store.Store using Redis via Grove KV.
type Store struct {
	*Rails
	kv *kv.Store
}

// New creates a new Redis store backed by Grove KV.
func New(store *kv.Store) *Store {
	return &Store{
		Rails: NewRails(redisdriver.UnwrapClient(store)),
		kv:    store,
	}
}

// Migrate is a no-op for Redis (no schema migrations needed).
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Close closes the KV store.
func (s *Store) Close() error {
	return s.kv.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// scoreFromTime converts a time.Time to a sorted set score (unix seconds as float64).
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isNotFound checks if an error is a KV not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound)
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// getEntity retrieves and decodes a JSON entity from a KV key.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	raw, err := s.kv.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// setEntity encodes and stores a JSON entity under a KV key.
func (s *Store) setEntity(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("replydesk/redis: marshal entity: %w", err)
	}
	return s.kv.SetRaw(ctx, key, raw)
}

// zRangeByScoreIDs returns member IDs from a sorted set within a score
// range, ascending. A positive limit caps the result.
func (s *Store) zRangeByScoreIDs(ctx context.Context, key string, lo, hi float64, limit int) ([]string, error) {
	minStr := "-inf"
	maxStr := "+inf"
	if !math.IsInf(lo, -1) {
		minStr = strconv.FormatFloat(lo, 'f', -1, 64)
	}
	if !math.IsInf(hi, 1) {
		maxStr = "(" + strconv.FormatFloat(hi, 'f', -1, 64)
	}
	by := &goredis.ZRangeBy{Min: minStr, Max: maxStr}
	if limit > 0 {
		by.Count = int64(limit)
	}
	return s.rdb.ZRangeByScore(ctx, key, by).Result()
}

// applyPagination applies offset and limit to a slice.
func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
