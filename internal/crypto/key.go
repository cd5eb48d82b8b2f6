// Package crypto implements the symmetric primitives of the key
// hierarchy: scoped AES-GCM encryption contexts, random key generation,
// the passphrase KDF and item-key signatures.
package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"
)

// KeySize is the length of all symmetric keys in the hierarchy (AES-256).
const KeySize = 32

// EncryptionKey is raw symmetric key material. Callers should Clear it
// as soon as the key leaves scope.
type EncryptionKey []byte

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() EncryptionKey {
	return EncryptionKey(RandomBytes(KeySize))
}

// Clear zeroes the key material in place.
func (k EncryptionKey) Clear() {
	for i := range k {
		k[i] = 0
	}
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return buf
}

// DeriveUserKey derives the user key from a passphrase and salt using
// argon2id. The user key wraps vault key material on vault creation and
// export.
func DeriveUserKey(passphrase, salt []byte) EncryptionKey {
	return EncryptionKey(argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize))
}
