package syncer

import (
	"context"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/migrate"
	"github.com/0KvinayK0/android-pass/internal/remote"
)

// MoveItem migrates an item into another vault: the content is re-keyed
// into the destination's current rotation, created there, and deleted
// from the source after the destination acknowledged it. A crash between
// the two remote calls leaves the item duplicated, never lost.
func (r *Reconciler) MoveItem(ctx context.Context, sourceShareID domain.ShareID, itemID domain.ItemID, destShareID domain.ShareID) (*domain.Item, error) {
	var re *migrate.ReEncrypted
	var labels []string
	err := r.locks.do(sourceShareID, PhasePushing, func() error {
		it, err := r.local.GetItem(ctx, sourceShareID, itemID)
		if err != nil {
			return err
		}
		keyRec, err := r.local.GetItemKey(ctx, sourceShareID, itemID)
		if err != nil {
			return err
		}
		labels = it.Labels
		re, err = r.migrator.Migrate(ctx, migrate.Input{
			SourceShareID:        sourceShareID,
			SourceItemKey:        *keyRec,
			Content:              it.Content,
			ContentFormatVersion: it.ContentFormatVersion,
			DestinationShareID:   destShareID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("migrate item %s: %w", itemID, err)
	}

	var created *domain.Item
	err = r.locks.do(destShareID, PhasePushing, func() error {
		rev, err := r.remote.CreateItem(ctx, destShareID, remote.CreateItemRequest{
			RotationID:           string(re.RotationID),
			Labels:               labels,
			ContentFormatVersion: re.ContentFormatVersion,
			Content:              b64.EncodeToString(re.Content),
			UserSignature:        b64.EncodeToString(r.signer.Sign(re.Content)),
			ItemKeySignature:     b64.EncodeToString(re.ItemKey.Signature),
		})
		if err != nil {
			return fmt.Errorf("create migrated item: %w", err)
		}
		created, err = r.persistRevision(ctx, destShareID, *rev, &re.ItemKey)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := r.DeleteItems(ctx, sourceShareID, []domain.ItemID{itemID}); err != nil {
		return nil, fmt.Errorf("delete source item %s after migration: %w", itemID, err)
	}
	return created, nil
}
