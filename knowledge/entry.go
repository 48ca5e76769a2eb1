// Package knowledge holds per-tenant knowledge entries and the retrieval
// used to ground reply drafts.
package knowledge

import (
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// Entry is one knowledge-base article owned by a tenant.
type Entry struct {
	entity.Entity

	ID       id.ID  `json:"id"`
	TenantID string `json:"tenant_id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`
}
