package syncer

import (
	"context"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/remote"
)

// BatchOutcome reports per-item results of a batched state change. A
// partially failed batch is not an error: accepted items are applied and
// rejected ones are listed for the caller to retry after a sync.
type BatchOutcome struct {
	Succeeded []domain.ItemID
	Failed    []domain.ItemID
}

// TrashItems moves items to the trash.
func (r *Reconciler) TrashItems(ctx context.Context, shareID domain.ShareID, ids []domain.ItemID) (BatchOutcome, error) {
	return r.batchStateChange(ctx, shareID, ids, r.remote.TrashItems)
}

// UntrashItems restores trashed items.
func (r *Reconciler) UntrashItems(ctx context.Context, shareID domain.ShareID, ids []domain.ItemID) (BatchOutcome, error) {
	return r.batchStateChange(ctx, shareID, ids, r.remote.UntrashItems)
}

// DeleteItems permanently deletes items remotely, then drops the
// accepted ones and their keys from the local cache.
func (r *Reconciler) DeleteItems(ctx context.Context, shareID domain.ShareID, ids []domain.ItemID) (BatchOutcome, error) {
	var out BatchOutcome
	err := r.locks.do(shareID, PhasePushing, func() error {
		req, err := r.batchRequest(ctx, shareID, ids)
		if err != nil {
			return err
		}
		resp, err := r.remote.DeleteItems(ctx, shareID, req)
		if err != nil {
			return fmt.Errorf("delete items: %w", err)
		}

		ctx := context.WithoutCancel(ctx)
		for _, ch := range resp.Items {
			out.Succeeded = append(out.Succeeded, domain.ItemID(ch.ItemID))
		}
		for _, id := range resp.FailedItemIDs {
			out.Failed = append(out.Failed, domain.ItemID(id))
		}
		if err := r.local.DeleteItems(ctx, shareID, out.Succeeded); err != nil {
			return err
		}
		for _, id := range out.Succeeded {
			r.hub.publish(domain.Change{ShareID: shareID, ItemID: id, Kind: domain.ChangeDeleted})
		}
		return nil
	})
	return out, err
}

type batchCall func(ctx context.Context, shareID domain.ShareID, req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error)

func (r *Reconciler) batchStateChange(ctx context.Context, shareID domain.ShareID, ids []domain.ItemID, call batchCall) (BatchOutcome, error) {
	var out BatchOutcome
	err := r.locks.do(shareID, PhasePushing, func() error {
		req, err := r.batchRequest(ctx, shareID, ids)
		if err != nil {
			return err
		}
		resp, err := call(ctx, shareID, req)
		if err != nil {
			return fmt.Errorf("batch state change: %w", err)
		}

		ctx := context.WithoutCancel(ctx)
		for _, ch := range resp.Items {
			id := domain.ItemID(ch.ItemID)
			it, err := r.local.GetItem(ctx, shareID, id)
			if err != nil {
				return err
			}
			it.Revision = ch.Revision
			it.State = domain.ItemState(ch.State)
			it.ModifyTime = ch.ModifyTime
			it.RevisionTime = ch.RevisionTime
			if err := r.local.UpsertItems(ctx, []domain.Item{*it}); err != nil {
				return err
			}
			out.Succeeded = append(out.Succeeded, id)
			r.hub.publish(domain.Change{ShareID: shareID, ItemID: id, Kind: domain.ChangeUpserted})
		}
		for _, id := range resp.FailedItemIDs {
			out.Failed = append(out.Failed, domain.ItemID(id))
		}
		return nil
	})
	return out, err
}

// batchRequest resolves the locally observed revision for each id; the
// remote uses them for the same optimistic-concurrency check as single
// updates.
func (r *Reconciler) batchRequest(ctx context.Context, shareID domain.ShareID, ids []domain.ItemID) (remote.BatchItemsRequest, error) {
	refs := make([]remote.ItemRef, 0, len(ids))
	for _, id := range ids {
		it, err := r.local.GetItem(ctx, shareID, id)
		if err != nil {
			return remote.BatchItemsRequest{}, err
		}
		refs = append(refs, remote.ItemRef{ItemID: string(id), Revision: it.Revision})
	}
	return remote.BatchItemsRequest{Items: refs}, nil
}
