package syncer

import (
	"context"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/content"
	"github.com/0KvinayK0/android-pass/internal/crypto"
	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/remote"
)

// CreateAlias provisions an email alias and creates its item in one
// remote call. The provisioned address comes back on the acknowledged
// revision and is stored out of band, never inside the sealed content.
func (r *Reconciler) CreateAlias(ctx context.Context, shareID domain.ShareID, title, prefix, signedSuffix string, mailboxIDs []int64) (*domain.Item, error) {
	var created *domain.Item
	err := r.locks.do(shareID, PhasePushing, func() error {
		rot, err := r.keys.CurrentRotation(ctx, shareID)
		if err != nil {
			return err
		}

		rawKey := crypto.GenerateKey()
		defer rawKey.Clear()

		sealed, err := r.seal(domain.ItemContent{Title: title, Type: domain.Alias{}}, rawKey)
		if err != nil {
			return err
		}
		itemKey, err := r.keys.WrapItemKey(rawKey, rot)
		if err != nil {
			return err
		}

		rev, err := r.remote.CreateAlias(ctx, shareID, remote.CreateAliasRequest{
			Prefix:       prefix,
			SignedSuffix: signedSuffix,
			MailboxIDs:   mailboxIDs,
			Item: remote.CreateItemRequest{
				RotationID:           string(rot.RotationID),
				Labels:               []string{},
				ContentFormatVersion: content.FormatVersionV1,
				Content:              b64.EncodeToString(sealed),
				UserSignature:        b64.EncodeToString(r.signer.Sign(sealed)),
				ItemKeySignature:     b64.EncodeToString(itemKey.Signature),
			},
		})
		if err != nil {
			return fmt.Errorf("create alias: %w", err)
		}

		created, err = r.persistRevision(ctx, shareID, *rev, &itemKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AliasOptions returns the suffixes and mailboxes available for new
// aliases in the share.
func (r *Reconciler) AliasOptions(ctx context.Context, shareID domain.ShareID) (*remote.AliasOptionsResponse, error) {
	opts, err := r.remote.GetAliasOptions(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("alias options: %w", err)
	}
	return opts, nil
}

// AliasDetails returns the alias address and its forwarding mailboxes.
func (r *Reconciler) AliasDetails(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*remote.AliasDetailsResponse, error) {
	details, err := r.remote.GetAliasDetails(ctx, shareID, itemID)
	if err != nil {
		return nil, fmt.Errorf("alias details of %s: %w", itemID, err)
	}
	return details, nil
}

// UpdateAliasMailboxes replaces the alias's forwarding mailbox set.
func (r *Reconciler) UpdateAliasMailboxes(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, mailboxIDs []int64) (*remote.AliasDetailsResponse, error) {
	details, err := r.remote.UpdateAliasMailboxes(ctx, shareID, itemID, remote.UpdateAliasMailboxesRequest{MailboxIDs: mailboxIDs})
	if err != nil {
		return nil, fmt.Errorf("update alias mailboxes of %s: %w", itemID, err)
	}
	return details, nil
}
