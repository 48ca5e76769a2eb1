// Package vault provides envelope encryption for per-tenant platform secrets.
//
// Ciphertext is AES-256-GCM sealed with a fresh random nonce per call and
// stored as base64(nonce ‖ tag ‖ encrypted). Every ciphertext is bound to a
// key version; records written before versioning existed are readable
// through the legacy single-key scheme, so key-format migrations need no
// backfill.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrCrypto is returned for every encryption or decryption failure.
var ErrCrypto = errors.New("vault: crypto error")

const (
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12

	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	// LegacyVersion is the key version recorded on credentials that predate
	// key versioning.
	LegacyVersion = 0
)

// Config holds the key material for a Vault. Values accept either a
// hex-encoded 32-byte key or a raw string (see ParseKey).
type Config struct {
	// Keys maps a key version to its master key.
	Keys map[int]string `json:"keys" yaml:"keys" mapstructure:"keys"`

	// Current is the version used for new encryptions.
	Current int `json:"current" yaml:"current" mapstructure:"current"`

	// Legacy is the pre-versioning master key. Optional.
	Legacy string `json:"legacy" yaml:"legacy" mapstructure:"legacy"`
}

// Vault encrypts and decrypts secrets. It holds no mutable state after
// construction and is safe for concurrent use.
type Vault struct {
	keys    map[int][]byte
	current int
	legacy  []byte
}

// New parses the configured keys. A configured key that is too short is
// rejected here so a misconfiguration surfaces at startup.
func New(cfg Config) (*Vault, error) {
	v := &Vault{
		keys:    make(map[int][]byte, len(cfg.Keys)),
		current: cfg.Current,
	}
	for version, material := range cfg.Keys {
		if material == "" {
			continue
		}
		key, err := ParseKey(material)
		if err != nil {
			return nil, fmt.Errorf("key version %d: %w", version, err)
		}
		v.keys[version] = key
	}
	if cfg.Legacy != "" {
		key, err := ParseKey(cfg.Legacy)
		if err != nil {
			return nil, fmt.Errorf("legacy key: %w", err)
		}
		v.legacy = key
	}
	return v, nil
}

// CurrentVersion returns the key version used for new ciphertext.
func (v *Vault) CurrentVersion() int { return v.current }

// Encrypt seals plaintext with the master key for version.
func (v *Vault) Encrypt(plaintext string, version int) (string, error) {
	gcm, err := v.aead(version)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: generate nonce: %v", ErrCrypto, err)
	}

	// Seal returns encrypted‖tag; the stored layout puts the tag first.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - TagSize

	packed := make([]byte, 0, NonceSize+len(sealed))
	packed = append(packed, nonce...)
	packed = append(packed, sealed[split:]...)
	packed = append(packed, sealed[:split]...)

	return base64.StdEncoding.EncodeToString(packed), nil
}

// Decrypt opens ciphertext produced by Encrypt with the same version.
func (v *Vault) Decrypt(ciphertext string, version int) (string, error) {
	gcm, err := v.aead(version)
	if err != nil {
		return "", err
	}

	packed, err := unpack(ciphertext)
	if err != nil {
		return "", err
	}

	nonce := packed[:NonceSize]
	tag := packed[NonceSize : NonceSize+TagSize]
	body := packed[NonceSize+TagSize:]

	sealed := make([]byte, 0, len(body)+TagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrCrypto)
	}
	return string(plain), nil
}

// DecryptWithFallback tries the recorded key version first and then the
// legacy scheme.
func (v *Vault) DecryptWithFallback(ciphertext string, version int) (string, error) {
	plain, err := v.Decrypt(ciphertext, version)
	if err == nil {
		return plain, nil
	}
	if v.legacy == nil {
		return "", err
	}
	plain, legacyErr := v.DecryptLegacy(ciphertext)
	if legacyErr != nil {
		return "", fmt.Errorf("%w: version %d and legacy decrypt both failed", ErrCrypto, version)
	}
	return plain, nil
}

// EncryptLegacy seals plaintext with the legacy key in the pre-versioning
// layout base64(nonce ‖ encrypted ‖ tag). It exists for migration tooling
// and tests; new records always use Encrypt.
func (v *Vault) EncryptLegacy(plaintext string) (string, error) {
	gcm, err := newGCM(v.legacy)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: generate nonce: %v", ErrCrypto, err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptLegacy opens ciphertext written by the legacy scheme.
func (v *Vault) DecryptLegacy(ciphertext string) (string, error) {
	gcm, err := newGCM(v.legacy)
	if err != nil {
		return "", err
	}
	packed, err := unpack(ciphertext)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, packed[:NonceSize], packed[NonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: legacy authentication failed", ErrCrypto)
	}
	return string(plain), nil
}

func (v *Vault) aead(version int) (cipher.AEAD, error) {
	key, ok := v.keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: no master key for version %d", ErrCrypto, version)
	}
	return newGCM(key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: master key absent or too short", ErrCrypto)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return gcm, nil
}

func unpack(ciphertext string) ([]byte, error) {
	packed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", ErrCrypto)
	}
	if len(packed) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: payload shorter than nonce and tag", ErrCrypto)
	}
	return packed, nil
}
