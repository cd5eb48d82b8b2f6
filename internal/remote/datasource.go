// Package remote implements the pass/v1 transport contract: a narrow
// request/response data source the reconciler and vault manager talk to.
// No server-pushed notifications are assumed; polling cadence is the
// caller's concern.
package remote

import (
	"context"

	"github.com/0KvinayK0/android-pass/internal/domain"
)

// DataSource is the remote adapter contract. All operations are plain
// request/response; transient transport failures surface as
// domain.ErrNetwork after retries are exhausted.
type DataSource interface {
	CreateVault(ctx context.Context, req CreateVaultRequest) (*ShareResponse, error)
	DeleteVault(ctx context.Context, shareID domain.ShareID) error
	GetShares(ctx context.Context) ([]ShareResponse, error)
	GetShare(ctx context.Context, shareID domain.ShareID) (*ShareResponse, error)

	GetVaultKeys(ctx context.Context, shareID domain.ShareID, page, pageSize int) (*GetVaultKeysResponse, error)
	GetKeyPacket(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*KeyPacketResponse, error)

	GetItems(ctx context.Context, shareID domain.ShareID, page, pageSize int) (*GetItemsResponse, error)
	CreateItem(ctx context.Context, shareID domain.ShareID, req CreateItemRequest) (*ItemRevision, error)
	UpdateItem(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, req UpdateItemRequest) (*ItemRevision, error)
	UpdateLastUsedTime(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, lastUseTime int64) error
	TrashItems(ctx context.Context, shareID domain.ShareID, req BatchItemsRequest) (*BatchItemsResponse, error)
	UntrashItems(ctx context.Context, shareID domain.ShareID, req BatchItemsRequest) (*BatchItemsResponse, error)
	DeleteItems(ctx context.Context, shareID domain.ShareID, req BatchItemsRequest) (*BatchItemsResponse, error)

	CreateAlias(ctx context.Context, shareID domain.ShareID, req CreateAliasRequest) (*ItemRevision, error)
	GetAliasOptions(ctx context.Context, shareID domain.ShareID) (*AliasOptionsResponse, error)
	GetAliasDetails(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*AliasDetailsResponse, error)
	UpdateAliasMailboxes(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, req UpdateAliasMailboxesRequest) (*AliasDetailsResponse, error)

	GetLastEventID(ctx context.Context, shareID domain.ShareID) (string, error)
	GetEvents(ctx context.Context, shareID domain.ShareID, lastEventID string) (*GetEventsResponse, error)
}
