// Package vaults manages vault (share) lifecycle: creation with fresh
// key material, deletion with local cascade, listing, and refreshing the
// key hierarchy from the remote.
package vaults

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/0KvinayK0/android-pass/internal/crypto"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/keystore"
	"github.com/0KvinayK0/android-pass/internal/local"
	"github.com/0KvinayK0/android-pass/internal/logging"
	"github.com/0KvinayK0/android-pass/internal/remote"
)

var b64 = base64.StdEncoding

const vaultContentFormatVersion = 1

// vaultMetaV1 is the sealed vault metadata payload.
type vaultMetaV1 struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Manager owns vault lifecycle and implements keystore.Refresher. The
// user key wraps vault key material so only the account holder can
// recover it; the signer proves the material's provenance.
type Manager struct {
	local   local.DataSource
	remote  remote.DataSource
	keys    *keystore.Manager
	userCtx *crypto.EncryptionContext
	signer  *crypto.Signer
	log     logging.Logger
}

func NewManager(localDS local.DataSource, remoteDS remote.DataSource, keys *keystore.Manager, userCtx *crypto.EncryptionContext, signer *crypto.Signer, log logging.Logger) *Manager {
	return &Manager{
		local:   localDS,
		remote:  remoteDS,
		keys:    keys,
		userCtx: userCtx,
		signer:  signer,
		log:     log,
	}
}

// CreateVault generates a fresh vault key, seals the vault metadata
// under it, and registers the vault remotely. The remote assigns the
// share and rotation ids; the first rotation is stored locally from the
// acknowledged response.
func (m *Manager) CreateVault(ctx context.Context, name, color string) (*domain.Vault, error) {
	vaultKey := crypto.GenerateKey()
	defer vaultKey.Clear()

	meta, err := json.Marshal(vaultMetaV1{Name: name, Color: color})
	if err != nil {
		return nil, fmt.Errorf("encode vault metadata: %w", err)
	}
	vaultCtx, err := crypto.NewContext(vaultKey)
	if err != nil {
		return nil, err
	}
	sealedMeta := vaultCtx.Encrypt(meta)

	// the passphrase travels wrapped under the user key; the vault key
	// itself is wrapped under a key derived from the passphrase
	passphrase := crypto.RandomBytes(crypto.KeySize)
	wrappedKey, wrappedPassphrase, err := m.wrapVaultKey(vaultKey, passphrase)
	if err != nil {
		return nil, err
	}

	itemKey := crypto.GenerateKey()
	defer itemKey.Clear()
	itemKeyPassphrase := crypto.RandomBytes(crypto.KeySize)
	wrappedItemKey, wrappedItemKeyPassphrase, err := m.wrapVaultKey(itemKey, itemKeyPassphrase)
	if err != nil {
		return nil, err
	}

	keyPacket := m.userCtx.Encrypt(vaultKey)

	resp, err := m.remote.CreateVault(ctx, remote.CreateVaultRequest{
		Content:              b64.EncodeToString(sealedMeta),
		ContentFormatVersion: vaultContentFormatVersion,
		VaultKey:             b64.EncodeToString(wrappedKey),
		VaultKeyPassphrase:   b64.EncodeToString(wrappedPassphrase),
		VaultKeySignature:    b64.EncodeToString(m.signer.Sign(wrappedKey)),
		KeyPacket:            b64.EncodeToString(keyPacket),
		KeyPacketSignature:   b64.EncodeToString(m.signer.Sign(keyPacket)),
		SigningKey:           b64.EncodeToString(m.signer.PublicKey()),
		SigningKeyPassphrase: b64.EncodeToString(wrappedPassphrase),
		AcceptanceSignature:  b64.EncodeToString(m.signer.Sign(m.signer.PublicKey())),
		ItemKey:              b64.EncodeToString(wrappedItemKey),
		ItemKeyPassphrase:    b64.EncodeToString(wrappedItemKeyPassphrase),
		ItemKeySignature:     b64.EncodeToString(m.signer.Sign(wrappedItemKey)),
	})
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}

	shareID := domain.ShareID(resp.ShareID)
	rotationID := domain.RotationID(resp.ContentRotationID)

	ctx = context.WithoutCancel(ctx)
	err = m.keys.AddRotation(ctx, keystore.VaultKeyRotation{
		ShareID:    shareID,
		RotationID: rotationID,
		Key:        append(crypto.EncryptionKey(nil), vaultKey...),
		CreatedAt:  resp.CreateTime,
	})
	if err != nil {
		return nil, fmt.Errorf("store vault rotation: %w", err)
	}

	m.log.Info(ctx, "vault created", "shareId", shareID, "rotationId", rotationID)
	return &domain.Vault{
		ShareID:   shareID,
		Name:      name,
		Color:     color,
		IsPrimary: resp.Primary,
	}, nil
}

// DeleteVault deletes the vault remotely, then cascades the local cache:
// items, keys and the sync cursor all go with the share.
func (m *Manager) DeleteVault(ctx context.Context, shareID domain.ShareID) error {
	if err := m.remote.DeleteVault(ctx, shareID); err != nil {
		return fmt.Errorf("delete vault %s: %w", shareID, err)
	}
	ctx = context.WithoutCancel(ctx)
	if err := m.local.DeleteShare(ctx, shareID); err != nil {
		return fmt.Errorf("cascade vault delete %s: %w", shareID, err)
	}
	m.log.Info(ctx, "vault deleted", "shareId", shareID)
	return nil
}

// ListVaults fetches the account's shares and decrypts each vault's
// metadata. Unknown rotations trigger a key hierarchy refresh through
// the keystore.
func (m *Manager) ListVaults(ctx context.Context) ([]domain.Vault, error) {
	shares, err := m.remote.GetShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}

	vaults := make([]domain.Vault, 0, len(shares))
	for _, share := range shares {
		v, err := m.decodeVault(ctx, share)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *v)
	}
	return vaults, nil
}

// PrimaryVault returns the account's primary vault.
func (m *Manager) PrimaryVault(ctx context.Context) (*domain.Vault, error) {
	vaults, err := m.ListVaults(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range vaults {
		if v.IsPrimary {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("primary vault: %w", domain.ErrNotFound)
}

func (m *Manager) decodeVault(ctx context.Context, share remote.ShareResponse) (*domain.Vault, error) {
	shareID := domain.ShareID(share.ShareID)
	rot, err := m.keys.RotationByID(ctx, shareID, domain.RotationID(share.ContentRotationID))
	if err != nil {
		return nil, fmt.Errorf("vault %s keys: %w", shareID, err)
	}

	sealed, err := b64.DecodeString(share.Content)
	if err != nil {
		return nil, fmt.Errorf("decode vault %s content: %w", shareID, err)
	}
	vaultCtx, err := crypto.NewContext(rot.Key)
	if err != nil {
		return nil, err
	}
	meta, err := vaultCtx.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("open vault %s metadata: %w", shareID, err)
	}

	var parsed vaultMetaV1
	if err := json.Unmarshal(meta, &parsed); err != nil {
		return nil, fmt.Errorf("parse vault %s metadata: %w", shareID, err)
	}
	return &domain.Vault{
		ShareID:   shareID,
		Name:      parsed.Name,
		Color:     parsed.Color,
		IsPrimary: share.Primary,
	}, nil
}

// RefreshVaultKeys implements keystore.Refresher: it pages through the
// remote key endpoint, unwraps and verifies each rotation, and returns
// the full hierarchy with the newest rotation marked current.
func (m *Manager) RefreshVaultKeys(ctx context.Context, shareID domain.ShareID) ([]keystore.VaultKeyRotation, error) {
	var keys []remote.VaultKeyData
	for page := 0; ; page++ {
		resp, err := m.remote.GetVaultKeys(ctx, shareID, page, refreshPageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch vault keys page %d: %w", page, err)
		}
		keys = append(keys, resp.Keys...)
		if len(keys) >= resp.Total || len(resp.Keys) == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("share %s has no vault keys", shareID)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Rotation < keys[j].Rotation })

	rotations := make([]keystore.VaultKeyRotation, 0, len(keys))
	for i, k := range keys {
		vaultKey, err := m.unwrapVaultKey(k)
		if err != nil {
			return nil, fmt.Errorf("rotation %s of share %s: %w", k.RotationID, shareID, err)
		}
		rotations = append(rotations, keystore.VaultKeyRotation{
			ShareID:    shareID,
			RotationID: domain.RotationID(k.RotationID),
			Key:        vaultKey,
			CreatedAt:  k.CreateTime,
			Current:    i == len(keys)-1,
		})
	}
	return rotations, nil
}

const refreshPageSize = 50

// wrapVaultKey seals key under a passphrase-derived key and the
// passphrase under the user key; unwrap reverses both layers from the
// wire fields alone.
func (m *Manager) wrapVaultKey(key crypto.EncryptionKey, passphrase []byte) (wrappedKey, wrappedPassphrase []byte, err error) {
	derived := crypto.DeriveUserKey(passphrase, vaultKeySalt)
	defer derived.Clear()

	keyCtx, err := crypto.NewContext(derived)
	if err != nil {
		return nil, nil, err
	}
	return keyCtx.Encrypt(key), m.userCtx.Encrypt(passphrase), nil
}

// vaultKeySalt is the fixed KDF salt for passphrase-derived vault key
// wrapping. The passphrase itself is random per vault, so a fixed salt
// does not enable precomputation across vaults.
var vaultKeySalt = []byte("vault-key-wrap.v1")

func (m *Manager) unwrapVaultKey(k remote.VaultKeyData) (crypto.EncryptionKey, error) {
	wrappedPassphrase, err := b64.DecodeString(k.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("decode key passphrase: %w", err)
	}
	wrappedKey, err := b64.DecodeString(k.Key)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	sig, err := b64.DecodeString(k.KeySignature)
	if err != nil {
		return nil, fmt.Errorf("decode key signature: %w", err)
	}
	if err := m.signer.Verify(wrappedKey, sig); err != nil {
		return nil, fmt.Errorf("vault key signature: %w", err)
	}

	passphrase, err := m.userCtx.Decrypt(wrappedPassphrase)
	if err != nil {
		return nil, fmt.Errorf("unwrap key passphrase: %w", err)
	}
	derived := crypto.DeriveUserKey(passphrase, vaultKeySalt)
	defer derived.Clear()

	keyCtx, err := crypto.NewContext(derived)
	if err != nil {
		return nil, err
	}
	vaultKey, err := keyCtx.Decrypt(wrappedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap vault key: %w", err)
	}
	return crypto.EncryptionKey(vaultKey), nil
}
