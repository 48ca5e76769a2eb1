package vault_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/xraph/replydesk/vault"
)

const hexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(vault.Config{
		Keys:    map[int]string{1: hexKey, 2: "a raw passphrase that is long enough"},
		Current: 2,
		Legacy:  "legacy-master-key-material",
	})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestRoundTrip(t *testing.T) {
	v := newVault(t)

	tests := []struct {
		name  string
		plain string
	}{
		{"empty", ""},
		{"ascii", "channel-secret-123"},
		{"multi-byte", "退款請求 – ありがとう 🙏"},
		{"long", strings.Repeat("token", 500)},
	}

	for _, version := range []int{1, 2} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ct, err := v.Encrypt(tt.plain, version)
				if err != nil {
					t.Fatalf("encrypt: %v", err)
				}
				got, err := v.Decrypt(ct, version)
				if err != nil {
					t.Fatalf("decrypt: %v", err)
				}
				if got != tt.plain {
					t.Fatalf("round trip mismatch: got %q, want %q", got, tt.plain)
				}
			})
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v := newVault(t)
	a, _ := v.Encrypt("same", 1)
	b, _ := v.Encrypt("same", 1)
	if a == b {
		t.Fatal("expected distinct ciphertexts for repeated encryption")
	}
}

func TestCorruptedTagFails(t *testing.T) {
	v := newVault(t)
	ct, err := v.Encrypt("secret", 1)
	if err != nil {
		t.Fatal(err)
	}

	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[vault.NonceSize] ^= 0xff // first tag byte
	corrupted := base64.StdEncoding.EncodeToString(raw)

	if _, err := v.Decrypt(corrupted, 1); !errors.Is(err, vault.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestShortPayloadFails(t *testing.T) {
	v := newVault(t)
	short := base64.StdEncoding.EncodeToString(make([]byte, vault.NonceSize+vault.TagSize-1))
	if _, err := v.Decrypt(short, 1); !errors.Is(err, vault.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestWrongVersionFails(t *testing.T) {
	v := newVault(t)
	ct, _ := v.Encrypt("secret", 1)
	if _, err := v.Decrypt(ct, 2); !errors.Is(err, vault.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
	if _, err := v.Decrypt(ct, 9); !errors.Is(err, vault.ErrCrypto) {
		t.Fatalf("expected ErrCrypto for missing version, got %v", err)
	}
}

func TestDecryptWithFallbackReadsLegacy(t *testing.T) {
	v := newVault(t)
	legacy, err := v.EncryptLegacy("old-token")
	if err != nil {
		t.Fatal(err)
	}

	got, err := v.DecryptWithFallback(legacy, vault.LegacyVersion)
	if err != nil {
		t.Fatalf("fallback decrypt: %v", err)
	}
	if got != "old-token" {
		t.Fatalf("got %q", got)
	}

	current, _ := v.Encrypt("new-token", 2)
	got, err = v.DecryptWithFallback(current, 2)
	if err != nil || got != "new-token" {
		t.Fatalf("current decrypt: %q, %v", got, err)
	}
}

func TestDecryptWithFallbackBothFail(t *testing.T) {
	v := newVault(t)
	other, _ := vault.New(vault.Config{Keys: map[int]string{1: strings.Repeat("z", 32)}, Current: 1})
	ct, _ := other.Encrypt("x", 1)

	if _, err := v.DecryptWithFallback(ct, 1); !errors.Is(err, vault.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"hex", hexKey, false},
		{"raw padded", "sixteen-byte-key", false},
		{"raw truncated", strings.Repeat("k", 80), false},
		{"too short", "short", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := vault.ParseKey(tt.in)
			if tt.wantErr {
				if !errors.Is(err, vault.ErrCrypto) {
					t.Fatalf("expected ErrCrypto, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(key) != vault.KeySize {
				t.Fatalf("key length %d", len(key))
			}
		})
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := vault.New(vault.Config{Keys: map[int]string{1: "tiny"}, Current: 1})
	if !errors.Is(err, vault.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestDeriveKeyIsUsable(t *testing.T) {
	salt := []byte("0123456789abcdef")
	hexed := vault.DeriveKey("correct horse battery staple", salt)
	if len(hexed) != 2*vault.KeySize {
		t.Fatalf("derived key length %d", len(hexed))
	}
	if hexed != vault.DeriveKey("correct horse battery staple", salt) {
		t.Fatal("derivation is not deterministic for the same salt")
	}
	v, err := vault.New(vault.Config{Keys: map[int]string{1: hexed}, Current: 1})
	if err != nil {
		t.Fatal(err)
	}
	ct, _ := v.Encrypt("ok", 1)
	if got, _ := v.Decrypt(ct, 1); got != "ok" {
		t.Fatalf("got %q", got)
	}
}
