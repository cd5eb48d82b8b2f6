package vaults

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/0KvinayK0/android-pass/internal/crypto"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/keystore"
	"github.com/0KvinayK0/android-pass/internal/local"
	"github.com/0KvinayK0/android-pass/internal/logging"
	"github.com/0KvinayK0/android-pass/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var testDBCounter int

type fakeRemote struct {
	remote.DataSource

	createVault func(req remote.CreateVaultRequest) (*remote.ShareResponse, error)
	shares      []remote.ShareResponse
	vaultKeys   []remote.VaultKeyData
	deleted     []domain.ShareID
}

func (f *fakeRemote) CreateVault(_ context.Context, req remote.CreateVaultRequest) (*remote.ShareResponse, error) {
	return f.createVault(req)
}

func (f *fakeRemote) DeleteVault(_ context.Context, shareID domain.ShareID) error {
	f.deleted = append(f.deleted, shareID)
	return nil
}

func (f *fakeRemote) GetShares(context.Context) ([]remote.ShareResponse, error) {
	return f.shares, nil
}

func (f *fakeRemote) GetVaultKeys(_ context.Context, _ domain.ShareID, page, pageSize int) (*remote.GetVaultKeysResponse, error) {
	start := page * pageSize
	end := min(start+pageSize, len(f.vaultKeys))
	if start > end {
		start = end
	}
	return &remote.GetVaultKeysResponse{Keys: f.vaultKeys[start:end], Total: len(f.vaultKeys)}, nil
}

func newTestManager(t *testing.T, fr *fakeRemote) (*Manager, *keystore.Manager, *local.SQLiteStore) {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:vaults_test_%d?mode=memory&cache=shared", testDBCounter)
	store, err := local.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	keys, err := keystore.NewManager(store, nil, 0, logging.Nop())
	require.NoError(t, err)

	userCtx, err := crypto.NewContext(crypto.GenerateKey())
	require.NoError(t, err)
	signer, err := crypto.NewSigner([]byte("account signing material"), "user-signature")
	require.NoError(t, err)

	m := NewManager(store, fr, keys, userCtx, signer, logging.Nop())
	keys.SetRefresher(m)
	return m, keys, store
}

func TestCreateVault(t *testing.T) {
	var captured remote.CreateVaultRequest
	fr := &fakeRemote{}
	fr.createVault = func(req remote.CreateVaultRequest) (*remote.ShareResponse, error) {
		captured = req
		return &remote.ShareResponse{
			ShareID:           "share-1",
			ContentRotationID: "rot-1",
			Primary:           true,
			CreateTime:        100,
		}, nil
	}
	m, keys, _ := newTestManager(t, fr)
	ctx := context.Background()

	v, err := m.CreateVault(ctx, "Personal", "#f00")
	require.NoError(t, err)
	assert.Equal(t, domain.ShareID("share-1"), v.ShareID)
	assert.Equal(t, "Personal", v.Name)
	assert.True(t, v.IsPrimary)

	assert.NotEmpty(t, captured.VaultKeySignature)
	assert.NotEmpty(t, captured.SigningKey)

	// the acknowledged rotation is stored and decrypts the sealed
	// metadata that was sent
	rot, err := keys.CurrentRotation(ctx, "share-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RotationID("rot-1"), rot.RotationID)

	sealed, err := base64.StdEncoding.DecodeString(captured.Content)
	require.NoError(t, err)
	vaultCtx, err := crypto.NewContext(rot.Key)
	require.NoError(t, err)
	meta, err := vaultCtx.Decrypt(sealed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Personal","color":"#f00"}`, string(meta))
}

func TestDeleteVaultCascadesLocally(t *testing.T) {
	fr := &fakeRemote{}
	m, keys, store := newTestManager(t, fr)
	ctx := context.Background()

	require.NoError(t, keys.AddRotation(ctx, keystore.VaultKeyRotation{
		ShareID: "share-1", RotationID: "rot-1", Key: crypto.GenerateKey(), CreatedAt: 1,
	}))

	require.NoError(t, m.DeleteVault(ctx, "share-1"))
	assert.Equal(t, []domain.ShareID{"share-1"}, fr.deleted)

	rotations, err := store.Rotations(ctx, "share-1")
	require.NoError(t, err)
	assert.Empty(t, rotations)
}

func TestListVaults(t *testing.T) {
	fr := &fakeRemote{}
	m, keys, _ := newTestManager(t, fr)
	ctx := context.Background()

	vaultKey := crypto.GenerateKey()
	require.NoError(t, keys.AddRotation(ctx, keystore.VaultKeyRotation{
		ShareID: "share-1", RotationID: "rot-1", Key: vaultKey, CreatedAt: 1,
	}))

	vaultCtx, err := crypto.NewContext(vaultKey)
	require.NoError(t, err)
	sealed := vaultCtx.Encrypt([]byte(`{"name":"Work","color":"#00f"}`))
	fr.shares = []remote.ShareResponse{{
		ShareID:           "share-1",
		Content:           base64.StdEncoding.EncodeToString(sealed),
		ContentRotationID: "rot-1",
		Primary:           true,
	}}

	vaults, err := m.ListVaults(ctx)
	require.NoError(t, err)
	require.Len(t, vaults, 1)
	assert.Equal(t, domain.Vault{ShareID: "share-1", Name: "Work", Color: "#00f", IsPrimary: true}, vaults[0])

	primary, err := m.PrimaryVault(ctx)
	require.NoError(t, err)
	assert.Equal(t, vaults[0], *primary)
}

func TestPrimaryVaultMissing(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRemote{})

	_, err := m.PrimaryVault(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshVaultKeys(t *testing.T) {
	fr := &fakeRemote{}
	m, _, _ := newTestManager(t, fr)

	keyA := crypto.GenerateKey()
	keyB := crypto.GenerateKey()
	fr.vaultKeys = []remote.VaultKeyData{
		// served newest first; refresh must order by rotation number
		wireVaultKey(t, m, "rot-2", 2, keyB, 200),
		wireVaultKey(t, m, "rot-1", 1, keyA, 100),
	}

	rotations, err := m.RefreshVaultKeys(context.Background(), "share-1")
	require.NoError(t, err)
	require.Len(t, rotations, 2)

	assert.Equal(t, domain.RotationID("rot-1"), rotations[0].RotationID)
	assert.Equal(t, keyA, rotations[0].Key)
	assert.False(t, rotations[0].Current)

	assert.Equal(t, domain.RotationID("rot-2"), rotations[1].RotationID)
	assert.Equal(t, keyB, rotations[1].Key)
	assert.True(t, rotations[1].Current)
}

func TestRefreshVaultKeysRejectsBadSignature(t *testing.T) {
	fr := &fakeRemote{}
	m, _, _ := newTestManager(t, fr)

	k := wireVaultKey(t, m, "rot-1", 1, crypto.GenerateKey(), 100)
	k.KeySignature = base64.StdEncoding.EncodeToString([]byte("forged signature material here.."))
	fr.vaultKeys = []remote.VaultKeyData{k}

	_, err := m.RefreshVaultKeys(context.Background(), "share-1")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

// wireVaultKey builds the wire form of a rotation the way vault creation
// uploads it.
func wireVaultKey(t *testing.T, m *Manager, rotationID string, rotation int64, key crypto.EncryptionKey, createTime int64) remote.VaultKeyData {
	t.Helper()
	passphrase := crypto.RandomBytes(crypto.KeySize)
	wrappedKey, wrappedPassphrase, err := m.wrapVaultKey(key, passphrase)
	require.NoError(t, err)
	return remote.VaultKeyData{
		RotationID:    rotationID,
		Rotation:      rotation,
		Key:           base64.StdEncoding.EncodeToString(wrappedKey),
		KeyPassphrase: base64.StdEncoding.EncodeToString(wrappedPassphrase),
		KeySignature:  base64.StdEncoding.EncodeToString(m.signer.Sign(wrappedKey)),
		CreateTime:    createTime,
	}
}
