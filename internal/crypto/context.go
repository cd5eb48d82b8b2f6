package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/domain"
)

// nonceSize is the AES-GCM nonce length. A fresh random nonce prefixes
// every sealed payload.
const nonceSize = 12

// EncryptionContext gives scoped symmetric encrypt/decrypt bound to one
// key for its lifetime. There is no ambient key: every call site
// constructs a context from explicit key material, which prevents
// accidental cross-key reuse.
type EncryptionContext struct {
	aead cipher.AEAD
}

// NewContext builds an EncryptionContext for the given key.
func NewContext(key EncryptionKey) (*EncryptionContext, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &EncryptionContext{aead: aead}, nil
}

// WithContext runs fn with a context bound to key. The context must not
// escape fn.
func WithContext(key EncryptionKey, fn func(*EncryptionContext) error) error {
	ec, err := NewContext(key)
	if err != nil {
		return err
	}
	return fn(ec)
}

// Encrypt seals plaintext. Layout: nonce || ciphertext+tag.
func (c *EncryptionContext) Encrypt(plaintext []byte) []byte {
	nonce := RandomBytes(nonceSize)
	return c.aead.Seal(nonce, nonce, plaintext, nil)
}

// Decrypt opens a sealed payload. A failed authentication tag (tampering
// or wrong key) yields domain.ErrDecryption; callers must treat it as
// fatal for that payload and never retry.
func (c *EncryptionContext) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("sealed payload too short: %w", domain.ErrDecryption)
	}
	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", domain.ErrDecryption)
	}
	return plaintext, nil
}

// EncryptString seals a string and returns it base64-encoded.
func (c *EncryptionContext) EncryptString(plaintext string) string {
	return base64.StdEncoding.EncodeToString(c.Encrypt([]byte(plaintext)))
}

// DecryptString is the inverse of EncryptString.
func (c *EncryptionContext) DecryptString(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed string: %w", domain.ErrDecryption)
	}
	plaintext, err := c.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
