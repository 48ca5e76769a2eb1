package credential_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/xraph/replydesk/credential"
	"github.com/xraph/replydesk/vault"
)

var errMissing = errors.New("missing")

type mapStore struct {
	mu    sync.Mutex
	creds map[string]*credential.Credential
}

func newMapStore() *mapStore {
	return &mapStore{creds: make(map[string]*credential.Credential)}
}

func (m *mapStore) PutCredential(_ context.Context, c *credential.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.creds[c.TenantID] = &cp
	return nil
}

func (m *mapStore) GetCredential(_ context.Context, tenantID string) (*credential.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[tenantID]
	if !ok {
		return nil, errMissing
	}
	cp := *c
	return &cp, nil
}

func (m *mapStore) DeleteCredential(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, tenantID)
	return nil
}

func newVault(t *testing.T, current int) *vault.Vault {
	t.Helper()
	v, err := vault.New(vault.Config{
		Keys: map[int]string{
			1: strings.Repeat("1", 32),
			2: strings.Repeat("2", 32),
		},
		Current: current,
		Legacy:  "legacy-master-key-material",
	})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSaveEncryptsAndResolveDecrypts(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	svc := credential.NewService(store, newVault(t, 2), nil)

	c, err := svc.Save(ctx, "t1", credential.Secrets{BotID: "Ubot", ChannelSecret: "chan-secret", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if c.KeyVersion != 2 {
		t.Fatalf("KeyVersion = %d, want 2", c.KeyVersion)
	}

	stored, _ := store.GetCredential(ctx, "t1")
	if strings.Contains(stored.ChannelSecret, "chan-secret") || strings.Contains(stored.AccessToken, "tok") {
		t.Fatal("plaintext persisted")
	}
	if stored.ChannelSecret == stored.AccessToken {
		t.Fatal("secrets must be encrypted independently")
	}

	got, err := svc.Resolve(ctx, "t1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ChannelSecret != "chan-secret" || got.AccessToken != "tok" || got.BotID != "Ubot" {
		t.Fatalf("Resolve = %+v", got)
	}
}

func TestResolveAfterRotation(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	if _, err := credential.NewService(store, newVault(t, 1), nil).Save(ctx, "t1", credential.Secrets{ChannelSecret: "s", AccessToken: "a"}); err != nil {
		t.Fatal(err)
	}

	got, err := credential.NewService(store, newVault(t, 2), nil).Resolve(ctx, "t1")
	if err != nil {
		t.Fatalf("Resolve after rotation: %v", err)
	}
	if got.AccessToken != "a" {
		t.Fatalf("AccessToken = %q", got.AccessToken)
	}
}

func TestResolveLegacyRecord(t *testing.T) {
	ctx := context.Background()
	v := newVault(t, 2)
	store := newMapStore()

	secret, _ := v.EncryptLegacy("legacy-secret")
	token, _ := v.EncryptLegacy("legacy-token")
	_ = store.PutCredential(ctx, &credential.Credential{TenantID: "t1", ChannelSecret: secret, AccessToken: token})

	got, err := credential.NewService(store, v, nil).Resolve(ctx, "t1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ChannelSecret != "legacy-secret" || got.AccessToken != "legacy-token" {
		t.Fatalf("Resolve = %+v", got)
	}
}

func TestResolveCorruptedIsCryptoError(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	_ = store.PutCredential(ctx, &credential.Credential{TenantID: "t1", ChannelSecret: "bm90LWEtY2lwaGVydGV4dA==", KeyVersion: 2})

	_, err := credential.NewService(store, newVault(t, 2), nil).Resolve(ctx, "t1")
	if !errors.Is(err, vault.ErrCrypto) {
		t.Fatalf("err = %v, want ErrCrypto", err)
	}
}

func TestResolveMissing(t *testing.T) {
	_, err := credential.NewService(newMapStore(), newVault(t, 2), nil).Resolve(context.Background(), "nobody")
	if !errors.Is(err, errMissing) {
		t.Fatalf("err = %v", err)
	}
}
