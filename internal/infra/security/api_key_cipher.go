package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"freshdesk-simulator/internal/domain/ports/adapter"
)

// sealedPrefix marks values produced by Seal. Rows without it are treated as
// plaintext so keys written before encryption was enabled still load.
const sealedPrefix = "enc:v1:"

var _ adapter.SecretCipher = (*APIKeyCipher)(nil)

// APIKeyCipher encrypts Freshdesk API keys at rest with AES-256-GCM.
// Format: "enc:v1:" + base64(nonce || ciphertext).
type APIKeyCipher struct {
	gcm cipher.AEAD
}

// NewAPIKeyCipher derives a 32 byte key from passphrase with SHA-256.
// An empty passphrase returns a cipher that stores keys unchanged.
func NewAPIKeyCipher(passphrase string) (*APIKeyCipher, error) {
	if passphrase == "" {
		return &APIKeyCipher{}, nil
	}
	sum := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &APIKeyCipher{gcm: gcm}, nil
}

// Enabled reports whether Seal actually encrypts.
func (c *APIKeyCipher) Enabled() bool { return c.gcm != nil }

func (c *APIKeyCipher) Seal(plaintext string) (string, error) {
	if c.gcm == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

func (c *APIKeyCipher) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return sealed, nil
	}
	if c.gcm == nil {
		return "", fmt.Errorf("api key is encrypted but no encryption key is configured")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := c.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	pt, err := c.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
