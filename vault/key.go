package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 master key length in bytes.
const KeySize = 32

// minRawKeyLen is the shortest raw (non-hex) key material accepted.
const minRawKeyLen = 16

// argon2id parameters for DeriveKey.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltLen      = 16
)

// ParseKey turns operator-supplied key material into a 32-byte master key.
// A 64-character hex string decodes to the key directly. Anything else is
// taken as raw bytes, zero-padded or truncated to 32.
func ParseKey(material string) ([]byte, error) {
	if len(material) == 2*KeySize {
		if key, err := hex.DecodeString(material); err == nil {
			return key, nil
		}
	}
	if len(material) < minRawKeyLen {
		return nil, fmt.Errorf("%w: master key absent or too short", ErrCrypto)
	}
	key := make([]byte, KeySize)
	copy(key, material)
	return key, nil
}

// DeriveKey stretches a passphrase into a hex-encoded master key with
// argon2id. The result is accepted by ParseKey.
func DeriveKey(passphrase string, salt []byte) string {
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
	return hex.EncodeToString(key)
}

// NewSalt returns a random salt for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}
