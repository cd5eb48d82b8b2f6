// Package local implements the local cache adapter: items, key
// hierarchy and sync cursors persisted in SQLite. No network I/O and no
// decryption happens here.
package local

import (
	"context"

	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/keystore"
)

// DataSource is the local adapter contract consumed by the reconciler.
// The reconciler is the single logical writer per vault; readers observe
// either the pre- or post-batch state, never a partially applied batch.
type DataSource interface {
	keystore.Store

	UpsertItems(ctx context.Context, items []domain.Item) error
	DeleteItems(ctx context.Context, shareID domain.ShareID, ids []domain.ItemID) error
	GetItem(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*domain.Item, error)
	GetItems(ctx context.Context, shareID domain.ShareID) ([]domain.Item, error)

	// ApplyEventBatch commits one page of the event feed atomically:
	// upserts (kept only when the incoming revision is not older than
	// the cached one), deletes, and the new cursor. Re-applying the
	// same batch is a no-op.
	ApplyEventBatch(ctx context.Context, shareID domain.ShareID, upserts []domain.Item, deletes []domain.ItemID, cursor string) error

	// DeleteShare removes a vault's items, keys and cursor (vault
	// deletion cascades to its items).
	DeleteShare(ctx context.Context, shareID domain.ShareID) error

	GetCursor(ctx context.Context, shareID domain.ShareID) (string, error)
	SetCursor(ctx context.Context, shareID domain.ShareID, eventID string) error

	UpsertItemKey(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, key keystore.ItemKey) error
	GetItemKey(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*keystore.ItemKey, error)

	// ReferencedRotations reports which rotations still wrap at least
	// one item key, for the rotation GC policy.
	ReferencedRotations(ctx context.Context, shareID domain.ShareID) (map[domain.RotationID]bool, error)
}
