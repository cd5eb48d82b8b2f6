package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/0KvinayK0/android-pass/internal/domain"
	"golang.org/x/crypto/hkdf"
)

// Signer signs wrapped item keys and item content to prove provenance.
// The ed25519 seed is derived deterministically from the owning key
// material, so both sides of a share derive the same signer.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner derives a signer from key material. info scopes the
// derivation so different uses of the same key material yield
// independent signing keys.
func NewSigner(material []byte, info string) (*Signer, error) {
	seed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, material, nil, []byte(info))
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("derive signing seed: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Sign returns the signature over data.
func (s *Signer) Sign(data []byte) []byte {
	return ed25519.Sign(s.priv, data)
}

// PublicKey returns the signer's public key bytes, shared with the
// remote so other members can verify signatures.
func (s *Signer) PublicKey() []byte {
	return []byte(s.pub)
}

// Verify checks sig over data, returning domain.ErrInvalidSignature on
// mismatch. Callers must abort the read rather than continue with
// unverified key material.
func (s *Signer) Verify(data, sig []byte) error {
	if !ed25519.Verify(s.pub, data, sig) {
		return domain.ErrInvalidSignature
	}
	return nil
}
