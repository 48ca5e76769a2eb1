package credential

import "context"

// Store defines the persistence contract for tenant credentials.
type Store interface {
	// PutCredential inserts or replaces the credential of c.TenantID.
	PutCredential(ctx context.Context, c *Credential) error

	// GetCredential returns the credential of a tenant.
	GetCredential(ctx context.Context, tenantID string) (*Credential, error)

	// DeleteCredential removes the credential of a tenant.
	DeleteCredential(ctx context.Context, tenantID string) error
}
