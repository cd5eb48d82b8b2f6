// Package keystore models the vault key hierarchy: per-vault key
// rotations (one current, historical ones retained for decrypting older
// items) and per-item content keys wrapped under exactly one rotation.
package keystore

import (
	"context"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/crypto"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/logging"
	lru "github.com/hashicorp/golang-lru/v2"
)

// signerInfo scopes the HKDF derivation of the per-rotation signing key.
const signerInfo = "item-key-signature"

// VaultKeyRotation is one generation of a vault's symmetric key.
// Rotations are append-only and ordered by creation; a rotation is never
// deleted while any item key references it.
type VaultKeyRotation struct {
	ShareID    domain.ShareID
	RotationID domain.RotationID
	Key        crypto.EncryptionKey
	CreatedAt  int64
	Current    bool
}

// ItemKey is a per-item content key wrapped under a vault rotation key
// and signed to prove provenance.
type ItemKey struct {
	RotationID domain.RotationID
	WrappedKey []byte
	Signature  []byte
}

// Store is the persistence contract the key hierarchy is cached on. The
// SQLite local store implements it.
type Store interface {
	Rotations(ctx context.Context, shareID domain.ShareID) ([]VaultKeyRotation, error)
	SaveRotations(ctx context.Context, rotations []VaultKeyRotation) error
	DeleteRotations(ctx context.Context, shareID domain.ShareID, ids []domain.RotationID) error
}

// Refresher re-fetches a vault's key hierarchy from the remote. An
// unknown rotation is a recoverable condition (the local cache is
// behind), not data corruption; the manager refreshes once before
// giving up.
type Refresher interface {
	RefreshVaultKeys(ctx context.Context, shareID domain.ShareID) ([]VaultKeyRotation, error)
}

type rotationCacheKey struct {
	shareID    domain.ShareID
	rotationID domain.RotationID
}

// Manager is the key hierarchy store.
type Manager struct {
	store     Store
	refresher Refresher
	cache     *lru.Cache[rotationCacheKey, VaultKeyRotation]
	retain    int
	log       logging.Logger
}

const rotationCacheSize = 256

// NewManager builds a Manager. refresher may be nil for offline use.
// retain is the number of superseded, unreferenced rotations kept per
// vault on garbage collection; 0 keeps everything.
func NewManager(store Store, refresher Refresher, retain int, log logging.Logger) (*Manager, error) {
	cache, err := lru.New[rotationCacheKey, VaultKeyRotation](rotationCacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, refresher: refresher, cache: cache, retain: retain, log: log}, nil
}

// SetRefresher installs the refresher after construction. The vault
// manager implements Refresher but itself needs the key manager, so the
// two are wired in two steps.
func (m *Manager) SetRefresher(r Refresher) {
	m.refresher = r
}

// CurrentRotation returns the vault's active rotation, used for all new
// item keys.
func (m *Manager) CurrentRotation(ctx context.Context, shareID domain.ShareID) (VaultKeyRotation, error) {
	rotations, err := m.store.Rotations(ctx, shareID)
	if err != nil {
		return VaultKeyRotation{}, fmt.Errorf("load rotations: %w", err)
	}
	for _, r := range rotations {
		if r.Current {
			return r, nil
		}
	}
	return VaultKeyRotation{}, fmt.Errorf("share %s: %w", shareID, domain.ErrNoActiveRotation)
}

// RotationByID looks up a rotation for decrypting historical items. A
// miss triggers one refresh from the remote before reporting
// domain.ErrUnknownRotation.
func (m *Manager) RotationByID(ctx context.Context, shareID domain.ShareID, rotationID domain.RotationID) (VaultKeyRotation, error) {
	key := rotationCacheKey{shareID: shareID, rotationID: rotationID}
	if rot, ok := m.cache.Get(key); ok {
		return rot, nil
	}

	if rot, ok, err := m.lookup(ctx, shareID, rotationID); err != nil || ok {
		if ok {
			m.cache.Add(key, rot)
		}
		return rot, err
	}

	if m.refresher != nil {
		m.log.Debug(ctx, "rotation missing locally, refreshing vault keys", "shareId", shareID, "rotationId", rotationID)
		refreshed, err := m.refresher.RefreshVaultKeys(ctx, shareID)
		if err != nil {
			return VaultKeyRotation{}, fmt.Errorf("refresh vault keys: %w", err)
		}
		if err := m.store.SaveRotations(ctx, refreshed); err != nil {
			return VaultKeyRotation{}, fmt.Errorf("save refreshed rotations: %w", err)
		}
		if rot, ok, err := m.lookup(ctx, shareID, rotationID); err != nil || ok {
			if ok {
				m.cache.Add(key, rot)
			}
			return rot, err
		}
	}

	return VaultKeyRotation{}, fmt.Errorf("share %s rotation %s: %w", shareID, rotationID, domain.ErrUnknownRotation)
}

func (m *Manager) lookup(ctx context.Context, shareID domain.ShareID, rotationID domain.RotationID) (VaultKeyRotation, bool, error) {
	rotations, err := m.store.Rotations(ctx, shareID)
	if err != nil {
		return VaultKeyRotation{}, false, fmt.Errorf("load rotations: %w", err)
	}
	for _, r := range rotations {
		if r.RotationID == rotationID {
			return r, true, nil
		}
	}
	return VaultKeyRotation{}, false, nil
}

// AddRotation appends a new rotation and marks it current; the previous
// current rotation is retained as historical.
func (m *Manager) AddRotation(ctx context.Context, rot VaultKeyRotation) error {
	existing, err := m.store.Rotations(ctx, rot.ShareID)
	if err != nil {
		return fmt.Errorf("load rotations: %w", err)
	}
	rot.Current = true
	updated := make([]VaultKeyRotation, 0, len(existing)+1)
	for _, r := range existing {
		r.Current = false
		updated = append(updated, r)
	}
	updated = append(updated, rot)
	if err := m.store.SaveRotations(ctx, updated); err != nil {
		return fmt.Errorf("save rotations: %w", err)
	}
	for _, r := range updated {
		m.cache.Add(rotationCacheKey{shareID: r.ShareID, rotationID: r.RotationID}, r)
	}
	return nil
}

// WrapItemKey encrypts a freshly generated item content key under the
// given rotation and signs the wrapped bytes.
func (m *Manager) WrapItemKey(raw crypto.EncryptionKey, rot VaultKeyRotation) (ItemKey, error) {
	ec, err := crypto.NewContext(rot.Key)
	if err != nil {
		return ItemKey{}, fmt.Errorf("rotation key context: %w", err)
	}
	wrapped := ec.Encrypt(raw)

	signer, err := crypto.NewSigner(rot.Key, signerInfo)
	if err != nil {
		return ItemKey{}, err
	}
	return ItemKey{
		RotationID: rot.RotationID,
		WrappedKey: wrapped,
		Signature:  signer.Sign(wrapped),
	}, nil
}

// UnwrapItemKey verifies the item key's signature against the owning
// rotation and decrypts it. A signature mismatch aborts the read with
// domain.ErrInvalidSignature; no partial data is returned.
func (m *Manager) UnwrapItemKey(ctx context.Context, shareID domain.ShareID, itemKey ItemKey) (crypto.EncryptionKey, error) {
	rot, err := m.RotationByID(ctx, shareID, itemKey.RotationID)
	if err != nil {
		return nil, err
	}

	signer, err := crypto.NewSigner(rot.Key, signerInfo)
	if err != nil {
		return nil, err
	}
	if err := signer.Verify(itemKey.WrappedKey, itemKey.Signature); err != nil {
		return nil, fmt.Errorf("item key under rotation %s: %w", itemKey.RotationID, err)
	}

	ec, err := crypto.NewContext(rot.Key)
	if err != nil {
		return nil, err
	}
	raw, err := ec.Decrypt(itemKey.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap item key: %w", err)
	}
	return crypto.EncryptionKey(raw), nil
}

// UnwrapKeyPacket decrypts the ephemeral key packet the remote returns
// for a single item, avoiding a full key hierarchy fetch.
func (m *Manager) UnwrapKeyPacket(ctx context.Context, shareID domain.ShareID, pkt domain.KeyPacket) (crypto.EncryptionKey, error) {
	rot, err := m.RotationByID(ctx, shareID, pkt.RotationID)
	if err != nil {
		return nil, err
	}
	ec, err := crypto.NewContext(rot.Key)
	if err != nil {
		return nil, err
	}
	raw, err := ec.Decrypt(pkt.Packet)
	if err != nil {
		return nil, fmt.Errorf("unwrap key packet for item %s: %w", pkt.ItemID, err)
	}
	return crypto.EncryptionKey(raw), nil
}

// CollectUnreferenced removes superseded rotations with no referencing
// item keys, keeping the newest retain of them. With retain == 0 it is a
// no-op. The current rotation and any referenced rotation always
// survive.
func (m *Manager) CollectUnreferenced(ctx context.Context, shareID domain.ShareID, referenced map[domain.RotationID]bool) error {
	if m.retain <= 0 {
		return nil
	}
	rotations, err := m.store.Rotations(ctx, shareID)
	if err != nil {
		return fmt.Errorf("load rotations: %w", err)
	}

	var candidates []VaultKeyRotation
	for _, r := range rotations {
		if r.Current || referenced[r.RotationID] {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) <= m.retain {
		return nil
	}

	// candidates arrive ordered oldest first; drop from the front
	var drop []domain.RotationID
	for _, r := range candidates[:len(candidates)-m.retain] {
		drop = append(drop, r.RotationID)
		m.cache.Remove(rotationCacheKey{shareID: shareID, rotationID: r.RotationID})
	}
	m.log.Info(ctx, "collecting unreferenced rotations", "shareId", shareID, "count", len(drop))
	return m.store.DeleteRotations(ctx, shareID, drop)
}
