package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/suggestion"
)

// maxWatchRetries bounds optimistic-lock retries on a contended key.
const maxWatchRetries = 8

// errContention is returned when a watched key kept changing.
var errContention = errors.New("replydesk/redis: too much contention")

// CreateSuggestion inserts a suggestion and indexes it.
func (s *Store) CreateSuggestion(ctx context.Context, sug *suggestion.Suggestion) error {
	sugID := sug.ID.String()
	if err := s.setEntity(ctx, entityKey(prefixSuggestion, sugID), sug); err != nil {
		return fmt.Errorf("replydesk/redis: create suggestion: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zSuggestionAll, goredis.Z{Score: scoreFromTime(sug.CreatedAt), Member: sugID})
	if sug.Status == suggestion.StatusDraft {
		pipe.ZAdd(ctx, zSuggestionDraft, goredis.Z{Score: scoreFromTime(sug.ExpiresAt), Member: sugID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replydesk/redis: create suggestion indexes: %w", err)
	}
	return nil
}

// GetSuggestion returns a suggestion by ID.
func (s *Store) GetSuggestion(ctx context.Context, sugID id.ID) (*suggestion.Suggestion, error) {
	var sug suggestion.Suggestion
	if err := s.getEntity(ctx, entityKey(prefixSuggestion, sugID.String()), &sug); err != nil {
		if isNotFound(err) {
			return nil, replydesk.ErrSuggestionNotFound
		}
		return nil, fmt.Errorf("replydesk/redis: get suggestion: %w", err)
	}
	return &sug, nil
}

// ListSuggestions returns suggestions newest first, optionally filtered.
func (s *Store) ListSuggestions(ctx context.Context, opts suggestion.ListOpts) ([]*suggestion.Suggestion, error) {
	ids, err := s.rdb.ZRange(ctx, zSuggestionAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("replydesk/redis: list suggestions: %w", err)
	}

	result := make([]*suggestion.Suggestion, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var sug suggestion.Suggestion
		if err := s.getEntity(ctx, entityKey(prefixSuggestion, ids[i]), &sug); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.TenantID != "" && sug.TenantID != opts.TenantID {
			continue
		}
		if opts.ContactID != "" && sug.ContactID != opts.ContactID {
			continue
		}
		if opts.Status != nil && sug.Status != *opts.Status {
			continue
		}
		if !opts.ActiveAt.IsZero() && !sug.ExpiresAt.After(opts.ActiveAt) {
			continue
		}
		result = append(result, &sug)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CompareAndSwapStatus moves a suggestion between statuses under WATCH, so
// two approvers racing on the same draft cannot both win.
func (s *Store) CompareAndSwapStatus(ctx context.Context, sugID id.ID, from, to suggestion.Status, at time.Time) (bool, error) {
	member := sugID.String()
	key := entityKey(prefixSuggestion, member)

	var swapped bool
	txf := func(tx *goredis.Tx) error {
		swapped = false

		raw, err := tx.Get(ctx, key).Bytes()
		if isRedisNil(err) {
			return replydesk.ErrSuggestionNotFound
		}
		if err != nil {
			return err
		}

		var sug suggestion.Suggestion
		if err := json.Unmarshal(raw, &sug); err != nil {
			return err
		}
		if sug.Status != from {
			return nil
		}

		sug.Status = to
		sug.UpdatedAt = at
		switch to {
		case suggestion.StatusSent:
			sentAt := at
			sug.SentAt = &sentAt
		case suggestion.StatusDraft:
			sug.SentAt = nil
		}

		next, err := json.Marshal(&sug)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			if from == suggestion.StatusDraft {
				pipe.ZRem(ctx, zSuggestionDraft, member)
			}
			if to == suggestion.StatusDraft {
				pipe.ZAdd(ctx, zSuggestionDraft, goredis.Z{Score: scoreFromTime(sug.ExpiresAt), Member: member})
			}
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	for range maxWatchRetries {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, replydesk.ErrSuggestionNotFound) {
				return false, err
			}
			return false, fmt.Errorf("replydesk/redis: transition suggestion: %w", err)
		}
		return swapped, nil
	}
	return false, errContention
}

// ExpireSuggestions marks drafts whose expiry is at or before t as expired.
func (s *Store) ExpireSuggestions(ctx context.Context, t time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zSuggestionDraft, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(scoreFromTime(t), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("replydesk/redis: expire suggestions: %w", err)
	}

	var n int64
	for _, member := range ids {
		sugID, err := id.ParseSuggestionID(member)
		if err != nil {
			return n, fmt.Errorf("parse suggestion ID %q: %w", member, err)
		}
		ok, err := s.CompareAndSwapStatus(ctx, sugID, suggestion.StatusDraft, suggestion.StatusExpired, t)
		if err != nil {
			if errors.Is(err, replydesk.ErrSuggestionNotFound) {
				s.rdb.ZRem(ctx, zSuggestionDraft, member)
				continue
			}
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
