package replydesk

import "github.com/xraph/replydesk/internal/entity"

// Entity is the timestamp block embedded by all replydesk records.
type Entity = entity.Entity

// NewEntity returns an Entity with both timestamps set to the current UTC time.
func NewEntity() Entity {
	return entity.New()
}
