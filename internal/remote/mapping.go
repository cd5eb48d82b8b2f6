package remote

import (
	"encoding/base64"
	"fmt"

	"github.com/0KvinayK0/android-pass/internal/domain"
)

// Item converts the wire revision into the domain representation. The
// sealed content stays sealed; only the base64 transport encoding is
// stripped.
func (r ItemRevision) Item(shareID domain.ShareID) (domain.Item, error) {
	sealed, err := base64.StdEncoding.DecodeString(r.Content)
	if err != nil {
		return domain.Item{}, fmt.Errorf("decode content of item %s: %w", r.ItemID, err)
	}
	labels := r.Labels
	if labels == nil {
		labels = []string{}
	}
	return domain.Item{
		ID:                   domain.ItemID(r.ItemID),
		ShareID:              shareID,
		Revision:             r.Revision,
		ContentFormatVersion: r.ContentFormatVersion,
		RotationID:           domain.RotationID(r.RotationID),
		Content:              sealed,
		State:                domain.ItemState(r.State),
		SignatureEmail:       r.SignatureEmail,
		AliasEmail:           r.AliasEmail,
		Labels:               labels,
		CreateTime:           r.CreateTime,
		ModifyTime:           r.ModifyTime,
		LastUseTime:          r.LastUseTime,
		RevisionTime:         r.RevisionTime,
	}, nil
}
