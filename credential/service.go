package credential

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/vault"
)

// Resolver returns decrypted secrets for a tenant.
type Resolver interface {
	Resolve(ctx context.Context, tenantID string) (*Secrets, error)
}

// Service encrypts credentials on write and decrypts them on read.
type Service struct {
	store  Store
	vault  *vault.Vault
	logger *slog.Logger
}

// NewService creates a credential service.
func NewService(store Store, v *vault.Vault, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, vault: v, logger: logger}
}

// Save encrypts each secret independently at the vault's current key
// version and stores the result.
func (s *Service) Save(ctx context.Context, tenantID string, secrets Secrets) (*Credential, error) {
	version := s.vault.CurrentVersion()

	secret, err := s.vault.Encrypt(secrets.ChannelSecret, version)
	if err != nil {
		return nil, fmt.Errorf("credential: encrypt channel secret: %w", err)
	}
	token, err := s.vault.Encrypt(secrets.AccessToken, version)
	if err != nil {
		return nil, fmt.Errorf("credential: encrypt access token: %w", err)
	}

	c := &Credential{
		Entity:        entity.New(),
		ID:            id.NewCredentialID(),
		TenantID:      tenantID,
		BotID:         secrets.BotID,
		ChannelSecret: secret,
		AccessToken:   token,
		KeyVersion:    version,

		ConfidenceThreshold: secrets.ConfidenceThreshold,
	}
	if err := s.store.PutCredential(ctx, c); err != nil {
		return nil, fmt.Errorf("credential: save: %w", err)
	}

	s.logger.InfoContext(ctx, "credential saved",
		"tenant_id", tenantID,
		"key_version", version,
	)
	return c, nil
}

// Resolve loads and decrypts a tenant's credential, trying the recorded key
// version first and the legacy key second. Decryption failures wrap
// vault.ErrCrypto.
func (s *Service) Resolve(ctx context.Context, tenantID string) (*Secrets, error) {
	c, err := s.store.GetCredential(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	secret, err := s.vault.DecryptWithFallback(c.ChannelSecret, c.KeyVersion)
	if err != nil {
		s.logger.ErrorContext(ctx, "credential decrypt failed",
			"tenant_id", tenantID,
			"field", "channel_secret",
			"key_version", c.KeyVersion,
		)
		return nil, fmt.Errorf("credential: channel secret: %w", err)
	}
	token, err := s.vault.DecryptWithFallback(c.AccessToken, c.KeyVersion)
	if err != nil {
		s.logger.ErrorContext(ctx, "credential decrypt failed",
			"tenant_id", tenantID,
			"field", "access_token",
			"key_version", c.KeyVersion,
		)
		return nil, fmt.Errorf("credential: access token: %w", err)
	}

	return &Secrets{
		BotID:               c.BotID,
		ChannelSecret:       secret,
		AccessToken:         token,
		ConfidenceThreshold: c.ConfidenceThreshold,
	}, nil
}
