package syncer

import (
	"context"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ApplyPendingEvents drains the vault's event feed into the local cache.
// Each page is applied atomically together with its cursor, so a crash
// between pages resumes from the last committed cursor without gaps or
// duplicated effects.
func (r *Reconciler) ApplyPendingEvents(ctx context.Context, shareID domain.ShareID) error {
	return r.locks.do(shareID, PhasePulling, func() error {
		cursor, err := r.local.GetCursor(ctx, shareID)
		if err != nil {
			return err
		}
		if cursor == "" {
			if cursor, err = r.bootstrap(ctx, shareID); err != nil {
				return fmt.Errorf("bootstrap share %s: %w", shareID, err)
			}
		}

		for {
			resp, err := r.remote.GetEvents(ctx, shareID, cursor)
			if err != nil {
				return fmt.Errorf("fetch events after %s: %w", cursor, err)
			}

			upserts := make([]domain.Item, 0, len(resp.UpdatedItems))
			for _, rev := range resp.UpdatedItems {
				it, err := rev.Item(shareID)
				if err != nil {
					return err
				}
				upserts = append(upserts, it)
			}
			deletes := make([]domain.ItemID, 0, len(resp.DeletedItemIDs))
			for _, id := range resp.DeletedItemIDs {
				deletes = append(deletes, domain.ItemID(id))
			}

			if err := r.local.ApplyEventBatch(ctx, shareID, upserts, deletes, resp.LatestEventID); err != nil {
				return fmt.Errorf("apply event batch %s: %w", resp.LatestEventID, err)
			}

			for _, it := range upserts {
				r.hub.publish(domain.Change{ShareID: shareID, ItemID: it.ID, Kind: domain.ChangeUpserted})
			}
			for _, id := range deletes {
				r.hub.publish(domain.Change{ShareID: shareID, ItemID: id, Kind: domain.ChangeDeleted})
			}
			r.log.Debug(ctx, "applied event batch",
				"shareId", shareID, "upserts", len(upserts), "deletes", len(deletes), "cursor", resp.LatestEventID)

			cursor = resp.LatestEventID
			if !resp.EventsPending {
				break
			}
		}

		return r.collectRotations(ctx, shareID)
	})
}

// bootstrap performs the first sync of a vault: record the current event
// horizon, then fetch the full item listing. Changes racing the listing
// are picked up by the following delta fetch because the horizon was
// taken first.
func (r *Reconciler) bootstrap(ctx context.Context, shareID domain.ShareID) (string, error) {
	eventID, err := r.remote.GetLastEventID(ctx, shareID)
	if err != nil {
		return "", err
	}

	var items []domain.Item
	for page := 0; ; page++ {
		resp, err := r.remote.GetItems(ctx, shareID, page, r.pageSize)
		if err != nil {
			return "", err
		}
		for _, rev := range resp.Items {
			it, err := rev.Item(shareID)
			if err != nil {
				return "", err
			}
			items = append(items, it)
		}
		if len(items) >= resp.Total || len(resp.Items) == 0 {
			break
		}
	}

	if err := r.local.ApplyEventBatch(ctx, shareID, items, nil, eventID); err != nil {
		return "", err
	}
	r.log.Info(ctx, "bootstrapped share", "shareId", shareID, "items", len(items), "cursor", eventID)

	for _, it := range items {
		r.hub.publish(domain.Change{ShareID: shareID, ItemID: it.ID, Kind: domain.ChangeUpserted})
	}
	return eventID, nil
}

// SyncAll reconciles the given vaults concurrently and returns the first
// failure, if any.
func (r *Reconciler) SyncAll(ctx context.Context, shareIDs []domain.ShareID) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, shareID := range shareIDs {
		g.Go(func() error {
			if err := r.ApplyPendingEvents(ctx, shareID); err != nil {
				return fmt.Errorf("sync share %s: %w", shareID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// collectRotations applies the rotation retention policy after a sync,
// when the set of referenced rotations is up to date.
func (r *Reconciler) collectRotations(ctx context.Context, shareID domain.ShareID) error {
	referenced, err := r.local.ReferencedRotations(ctx, shareID)
	if err != nil {
		return err
	}
	return r.keys.CollectUnreferenced(ctx, shareID, referenced)
}
