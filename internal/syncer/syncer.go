// Package syncer reconciles the local cache with the remote. The remote
// is authoritative for revisions: every mutation goes remote-first, and
// the local cache is updated only from acknowledged remote state.
package syncer

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/content"
	"github.com/0KvinayK0/android-pass/internal/crypto"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/keystore"
	"github.com/0KvinayK0/android-pass/internal/local"
	"github.com/0KvinayK0/android-pass/internal/logging"
	"github.com/0KvinayK0/android-pass/internal/migrate"
	"github.com/0KvinayK0/android-pass/internal/remote"
)

var b64 = base64.StdEncoding

// Reconciler coordinates item mutations and the event feed for all
// vaults. Operations on the same vault are serialized; different vaults
// reconcile concurrently.
type Reconciler struct {
	local    local.DataSource
	remote   remote.DataSource
	keys     *keystore.Manager
	signer   *crypto.Signer
	migrator *migrate.Engine
	locks    *shareSerializer
	hub      *changeHub
	pageSize int
	log      logging.Logger
}

// New builds a Reconciler. signer is the account signing key used for
// user signatures on created and updated content.
func New(localDS local.DataSource, remoteDS remote.DataSource, keys *keystore.Manager, signer *crypto.Signer, pageSize int, log logging.Logger) *Reconciler {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Reconciler{
		local:    localDS,
		remote:   remoteDS,
		keys:     keys,
		signer:   signer,
		migrator: migrate.NewEngine(keys, log),
		locks:    newShareSerializer(),
		hub:      newChangeHub(),
		pageSize: pageSize,
		log:      log,
	}
}

// Subscribe registers a listener for item changes. The cancel func must
// be called when the listener is done.
func (r *Reconciler) Subscribe() (<-chan domain.Change, func()) {
	return r.hub.subscribe()
}

// Phase reports the vault's current reconciliation phase.
func (r *Reconciler) Phase(shareID domain.ShareID) Phase {
	return r.locks.phase(shareID)
}

// ListItems returns the vault's cached items. The snapshot reflects the
// last committed event batch or mutation, never a partial one.
func (r *Reconciler) ListItems(ctx context.Context, shareID domain.ShareID) ([]domain.Item, error) {
	return r.local.GetItems(ctx, shareID)
}

// CreateItem seals the content under a fresh item key wrapped by the
// vault's current rotation and creates the item remotely. The local
// cache receives only the acknowledged revision, so the remote-assigned
// revision number is never guessed at.
func (r *Reconciler) CreateItem(ctx context.Context, shareID domain.ShareID, c domain.ItemContent, labels []string) (*domain.Item, error) {
	var created *domain.Item
	err := r.locks.do(shareID, PhasePushing, func() error {
		rot, err := r.keys.CurrentRotation(ctx, shareID)
		if err != nil {
			return err
		}

		rawKey := crypto.GenerateKey()
		defer rawKey.Clear()

		sealed, err := r.seal(c, rawKey)
		if err != nil {
			return err
		}
		itemKey, err := r.keys.WrapItemKey(rawKey, rot)
		if err != nil {
			return err
		}
		if labels == nil {
			labels = []string{}
		}

		rev, err := r.remote.CreateItem(ctx, shareID, remote.CreateItemRequest{
			RotationID:           string(rot.RotationID),
			Labels:               labels,
			ContentFormatVersion: content.FormatVersionV1,
			Content:              b64.EncodeToString(sealed),
			UserSignature:        b64.EncodeToString(r.signer.Sign(sealed)),
			ItemKeySignature:     b64.EncodeToString(itemKey.Signature),
		})
		if err != nil {
			return fmt.Errorf("create item: %w", err)
		}

		created, err = r.persistRevision(ctx, shareID, *rev, &itemKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateItem re-seals the content under the item's existing key and
// pushes it with the locally observed revision. A concurrent remote
// update surfaces as domain.ErrConflict and leaves the local cache
// untouched; the caller re-syncs and retries on fresh state.
func (r *Reconciler) UpdateItem(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, c domain.ItemContent) (*domain.Item, error) {
	var updated *domain.Item
	err := r.locks.do(shareID, PhasePushing, func() error {
		cur, err := r.local.GetItem(ctx, shareID, itemID)
		if err != nil {
			return err
		}
		keyRec, err := r.local.GetItemKey(ctx, shareID, itemID)
		if err != nil {
			return err
		}
		rawKey, err := r.keys.UnwrapItemKey(ctx, shareID, *keyRec)
		if err != nil {
			return err
		}
		defer rawKey.Clear()

		sealed, err := r.seal(c, rawKey)
		if err != nil {
			return err
		}

		rev, err := r.remote.UpdateItem(ctx, shareID, itemID, remote.UpdateItemRequest{
			RotationID:           string(keyRec.RotationID),
			LastRevision:         cur.Revision,
			Labels:               cur.Labels,
			ContentFormatVersion: content.FormatVersionV1,
			Content:              b64.EncodeToString(sealed),
			UserSignature:        b64.EncodeToString(r.signer.Sign(sealed)),
			ItemKeySignature:     b64.EncodeToString(keyRec.Signature),
		})
		if err != nil {
			return fmt.Errorf("update item %s: %w", itemID, err)
		}

		updated, err = r.persistRevision(ctx, shareID, *rev, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// OpenItem decrypts a cached item and decodes its content. Items that
// arrived through the event feed without a cached key fall back to the
// remote key packet, which is then cached for offline use.
func (r *Reconciler) OpenItem(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (domain.ItemContent, error) {
	it, err := r.local.GetItem(ctx, shareID, itemID)
	if err != nil {
		return domain.ItemContent{}, err
	}

	rawKey, err := r.itemKeyFor(ctx, shareID, it)
	if err != nil {
		return domain.ItemContent{}, err
	}
	defer rawKey.Clear()

	ec, err := crypto.NewContext(rawKey)
	if err != nil {
		return domain.ItemContent{}, err
	}
	plain, err := ec.Decrypt(it.Content)
	if err != nil {
		return domain.ItemContent{}, fmt.Errorf("open item %s: %w", itemID, err)
	}
	return content.Decode(plain, it.ContentFormatVersion, it.AliasEmail)
}

// UpdateLastUsedTime records an autofill use remotely, then mirrors the
// timestamp locally.
func (r *Reconciler) UpdateLastUsedTime(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, lastUseTime int64) error {
	if err := r.remote.UpdateLastUsedTime(ctx, shareID, itemID, lastUseTime); err != nil {
		return fmt.Errorf("update last used time: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	it, err := r.local.GetItem(ctx, shareID, itemID)
	if err != nil {
		return err
	}
	it.LastUseTime = lastUseTime
	if err := r.local.UpsertItems(ctx, []domain.Item{*it}); err != nil {
		return err
	}
	r.hub.publish(domain.Change{ShareID: shareID, ItemID: itemID, Kind: domain.ChangeUpserted})
	return nil
}

func (r *Reconciler) seal(c domain.ItemContent, key crypto.EncryptionKey) ([]byte, error) {
	plain, err := content.Encode(c, content.FormatVersionV1)
	if err != nil {
		return nil, err
	}
	ec, err := crypto.NewContext(key)
	if err != nil {
		return nil, err
	}
	return ec.Encrypt(plain), nil
}

// persistRevision writes an acknowledged remote revision to the local
// cache. The context is detached first: once the remote accepted the
// mutation, cancelling the caller must not lose the new revision
// locally.
func (r *Reconciler) persistRevision(ctx context.Context, shareID domain.ShareID, rev remote.ItemRevision, key *keystore.ItemKey) (*domain.Item, error) {
	ctx = context.WithoutCancel(ctx)

	it, err := rev.Item(shareID)
	if err != nil {
		return nil, err
	}
	if err := r.local.UpsertItems(ctx, []domain.Item{it}); err != nil {
		return nil, fmt.Errorf("persist revision %d of item %s: %w", it.Revision, it.ID, err)
	}
	if key != nil {
		if err := r.local.UpsertItemKey(ctx, shareID, it.ID, *key); err != nil {
			return nil, fmt.Errorf("persist key of item %s: %w", it.ID, err)
		}
	}
	r.hub.publish(domain.Change{ShareID: shareID, ItemID: it.ID, Kind: domain.ChangeUpserted})
	return &it, nil
}

// itemKeyFor returns the item's raw content key, consulting the cached
// wrapped key first and the remote key packet as fallback.
func (r *Reconciler) itemKeyFor(ctx context.Context, shareID domain.ShareID, it *domain.Item) (crypto.EncryptionKey, error) {
	keyRec, err := r.local.GetItemKey(ctx, shareID, it.ID)
	if err == nil {
		return r.keys.UnwrapItemKey(ctx, shareID, *keyRec)
	}

	pktResp, err := r.remote.GetKeyPacket(ctx, shareID, it.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch key packet for item %s: %w", it.ID, err)
	}
	packet, err := b64.DecodeString(pktResp.KeyPacket)
	if err != nil {
		return nil, fmt.Errorf("decode key packet for item %s: %w", it.ID, err)
	}
	rawKey, err := r.keys.UnwrapKeyPacket(ctx, shareID, domain.KeyPacket{
		ItemID:     it.ID,
		RotationID: domain.RotationID(pktResp.RotationID),
		Packet:     packet,
	})
	if err != nil {
		return nil, err
	}

	// cache a wrapped copy so the next open works offline
	rot, err := r.keys.RotationByID(ctx, shareID, domain.RotationID(pktResp.RotationID))
	if err == nil {
		if wrapped, werr := r.keys.WrapItemKey(rawKey, rot); werr == nil {
			if serr := r.local.UpsertItemKey(ctx, shareID, it.ID, wrapped); serr != nil {
				r.log.Warn(ctx, "caching fetched item key failed", "itemId", it.ID, "error", serr)
			}
		}
	}
	return rawKey, nil
}
