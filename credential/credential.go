// Package credential stores per-tenant platform secrets encrypted by the
// vault and resolves them back to plaintext for the worker.
package credential

import (
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// Credential is the encrypted secret material of one tenant. Secret fields
// hold vault ciphertext and are never serialized.
type Credential struct {
	entity.Entity

	ID       id.ID  `json:"id"`
	TenantID string `json:"tenant_id"`

	// BotID is the platform destination id of the tenant's bot.
	BotID string `json:"bot_id,omitempty"`

	// ChannelSecret is the encrypted webhook signing secret.
	ChannelSecret string `json:"-"`

	// AccessToken is the encrypted push API token.
	AccessToken string `json:"-"`

	// KeyVersion is the vault key version both fields were encrypted with.
	// Zero means the legacy un-versioned key.
	KeyVersion int `json:"key_version"`

	// ConfidenceThreshold is the tenant's minimum confidence for an
	// automatic reply. Zero uses the desk default.
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

// Secrets are decrypted credentials plus the tenant settings stored beside
// them. They must not be logged or stored.
type Secrets struct {
	BotID         string
	ChannelSecret string
	AccessToken   string

	// ConfidenceThreshold is not secret. Zero uses the desk default.
	ConfidenceThreshold float64
}
