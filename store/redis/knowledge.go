package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/knowledge"
)

// PutEntry inserts or replaces a knowledge entry.
func (s *Store) PutEntry(ctx context.Context, e *knowledge.Entry) error {
	key := entityKey(prefixEntry, e.ID.String())

	var prev knowledge.Entry
	err := s.getEntity(ctx, key, &prev)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("replydesk/redis: put entry: %w", err)
	}

	if err := s.setEntity(ctx, key, e); err != nil {
		return fmt.Errorf("replydesk/redis: put entry: %w", err)
	}

	pipe := s.rdb.Pipeline()
	if err == nil && prev.TenantID != e.TenantID {
		pipe.SRem(ctx, sEntryTenant+prev.TenantID, e.ID.String())
	}
	pipe.SAdd(ctx, sEntryTenant+e.TenantID, e.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replydesk/redis: put entry index: %w", err)
	}
	return nil
}

// GetEntry returns a knowledge entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.ID) (*knowledge.Entry, error) {
	var e knowledge.Entry
	if err := s.getEntity(ctx, entityKey(prefixEntry, entryID.String()), &e); err != nil {
		if isNotFound(err) {
			return nil, replydesk.ErrEntryNotFound
		}
		return nil, fmt.Errorf("replydesk/redis: get entry: %w", err)
	}
	return &e, nil
}

// DeleteEntry removes a knowledge entry.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.ID) error {
	e, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, entityKey(prefixEntry, entryID.String()))
	pipe.SRem(ctx, sEntryTenant+e.TenantID, entryID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replydesk/redis: delete entry: %w", err)
	}
	return nil
}

// ListEntries returns a tenant's entries ordered by title.
func (s *Store) ListEntries(ctx context.Context, tenantID string) ([]*knowledge.Entry, error) {
	ids, err := s.rdb.SMembers(ctx, sEntryTenant+tenantID).Result()
	if err != nil {
		return nil, fmt.Errorf("replydesk/redis: list entries: %w", err)
	}

	result := make([]*knowledge.Entry, 0, len(ids))
	for _, entryID := range ids {
		var e knowledge.Entry
		if err := s.getEntity(ctx, entityKey(prefixEntry, entryID), &e); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		result = append(result, &e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Title < result[j].Title
	})
	return result, nil
}
