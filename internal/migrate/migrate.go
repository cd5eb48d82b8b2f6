// Package migrate re-keys an item's sealed content from a source
// vault's key domain into a destination vault's current rotation.
// Migration is a pure re-keying operation: the decoded plaintext is
// byte-identical before and after, and the content format version is
// carried over unchanged.
package migrate

import (
	"context"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/crypto"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/keystore"
	"github.com/0KvinayK0/android-pass/internal/logging"
)

// Input carries everything needed to move one item between key domains.
type Input struct {
	SourceShareID        domain.ShareID
	SourceItemKey        keystore.ItemKey
	Content              []byte // sealed under the source item key
	ContentFormatVersion int
	DestinationShareID   domain.ShareID
}

// ReEncrypted is the result of a migration: a fresh wrapped item key and
// the same plaintext sealed under it, bound to the destination vault's
// current rotation.
type ReEncrypted struct {
	ItemKey              keystore.ItemKey
	Content              []byte
	ContentFormatVersion int
	RotationID           domain.RotationID
}

// Engine performs migrations against the key hierarchy store.
type Engine struct {
	keys *keystore.Manager
	log  logging.Logger
}

func NewEngine(keys *keystore.Manager, log logging.Logger) *Engine {
	return &Engine{keys: keys, log: log}
}

// Migrate re-encrypts in.Content under a new item key wrapped by the
// destination vault's current rotation. Failure modes: an invalid
// source key aborts with domain.ErrDecryption (nothing is partially
// migrated); a destination without a current rotation fails with
// domain.ErrNoActiveRotation (the vault is malformed).
func (e *Engine) Migrate(ctx context.Context, in Input) (*ReEncrypted, error) {
	destRotation, err := e.keys.CurrentRotation(ctx, in.DestinationShareID)
	if err != nil {
		return nil, fmt.Errorf("destination vault: %w", err)
	}

	sourceKey, err := e.keys.UnwrapItemKey(ctx, in.SourceShareID, in.SourceItemKey)
	if err != nil {
		return nil, fmt.Errorf("source item key: %w", err)
	}
	defer sourceKey.Clear()

	sourceCtx, err := crypto.NewContext(sourceKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := sourceCtx.Decrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("decrypt source content: %w", err)
	}

	newKey := crypto.GenerateKey()
	defer newKey.Clear()

	wrapped, err := e.keys.WrapItemKey(newKey, destRotation)
	if err != nil {
		return nil, fmt.Errorf("wrap destination item key: %w", err)
	}

	destCtx, err := crypto.NewContext(newKey)
	if err != nil {
		return nil, err
	}

	e.log.Debug(ctx, "migrated item content",
		"sourceShareId", in.SourceShareID,
		"destinationShareId", in.DestinationShareID,
		"rotationId", destRotation.RotationID)

	return &ReEncrypted{
		ItemKey:              wrapped,
		Content:              destCtx.Encrypt(plaintext),
		ContentFormatVersion: in.ContentFormatVersion,
		RotationID:           destRotation.RotationID,
	}, nil
}
