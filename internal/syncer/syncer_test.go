package syncer

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

const testShare = domain.ShareID("share-1")

var testDBCounter int

// fakeRemote implements only the endpoints a test exercises; calling
// anything else panics through the nil embedded interface.
type fakeRemote struct {
	remote.DataSource

	createItem      func(shareID domain.ShareID, req remote.CreateItemRequest) (*remote.ItemRevision, error)
	updateItem      func(shareID domain.ShareID, itemID domain.ItemID, req remote.UpdateItemRequest) (*remote.ItemRevision, error)
	trashItems      func(req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error)
	deleteItems     func(req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error)
	lastEventID     string
	items           []remote.ItemRevision
	events          []remote.GetEventsResponse
	eventCursors    []string
	lastUsedUpdates map[domain.ItemID]int64
}

func (f *fakeRemote) CreateItem(_ context.Context, shareID domain.ShareID, req remote.CreateItemRequest) (*remote.ItemRevision, error) {
	return f.createItem(shareID, req)
}

func (f *fakeRemote) UpdateItem(_ context.Context, shareID domain.ShareID, itemID domain.ItemID, req remote.UpdateItemRequest) (*remote.ItemRevision, error) {
	return f.updateItem(shareID, itemID, req)
}

func (f *fakeRemote) TrashItems(_ context.Context, _ domain.ShareID, req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error) {
	return f.trashItems(req)
}

func (f *fakeRemote) DeleteItems(_ context.Context, _ domain.ShareID, req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error) {
	return f.deleteItems(req)
}

func (f *fakeRemote) GetLastEventID(context.Context, domain.ShareID) (string, error) {
	return f.lastEventID, nil
}

func (f *fakeRemote) GetItems(_ context.Context, _ domain.ShareID, page, pageSize int) (*remote.GetItemsResponse, error) {
	start := page * pageSize
	end := min(start+pageSize, len(f.items))
	if start > end {
		start = end
	}
	return &remote.GetItemsResponse{Items: f.items[start:end], Total: len(f.items)}, nil
}

func (f *fakeRemote) GetEvents(_ context.Context, _ domain.ShareID, lastEventID string) (*remote.GetEventsResponse, error) {
	f.eventCursors = append(f.eventCursors, lastEventID)
	if len(f.events) == 0 {
		return &remote.GetEventsResponse{LatestEventID: lastEventID}, nil
	}
	resp := f.events[0]
	f.events = f.events[1:]
	return &resp, nil
}

func (f *fakeRemote) UpdateLastUsedTime(_ context.Context, _ domain.ShareID, itemID domain.ItemID, lastUseTime int64) error {
	if f.lastUsedUpdates == nil {
		f.lastUsedUpdates = make(map[domain.ItemID]int64)
	}
	f.lastUsedUpdates[itemID] = lastUseTime
	return nil
}

func newTestReconciler(t *testing.T, fr *fakeRemote) (*Reconciler, *local.SQLiteStore) {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:syncer_test_%d?mode=memory&cache=shared", testDBCounter)
	store, err := local.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	keys, err := keystore.NewManager(store, nil, 0, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, keys.AddRotation(context.Background(), keystore.VaultKeyRotation{
		ShareID:    testShare,
		RotationID: "rot-1",
		Key:        crypto.GenerateKey(),
		CreatedAt:  1,
	}))

	signer, err := crypto.NewSigner([]byte("account signing material"), "user-signature")
	require.NoError(t, err)

	return New(store, fr, keys, signer, 2, logging.Nop()), store
}

// echoRevision builds the remote's answer to a create or update: same
// sealed content, remote-assigned id and revision.
func echoRevision(itemID string, revision int64, content string, rotationID string) *remote.ItemRevision {
	return &remote.ItemRevision{
		ItemID:               itemID,
		Revision:             revision,
		ContentFormatVersion: 1,
		RotationID:           rotationID,
		Content:              content,
		State:                int(domain.ItemStateActive),
		SignatureEmail:       "user@example.com",
		Labels:               []string{},
		CreateTime:           100,
		ModifyTime:           100,
		RevisionTime:         100,
	}
}

func sealedRevision(t *testing.T, itemID string, revision int64) remote.ItemRevision {
	t.Helper()
	return *echoRevision(itemID, revision, base64.StdEncoding.EncodeToString([]byte("sealed")), "rot-1")
}

func TestCreateItem(t *testing.T) {
	fr := &fakeRemote{}
	fr.createItem = func(shareID domain.ShareID, req remote.CreateItemRequest) (*remote.ItemRevision, error) {
		assert.Equal(t, testShare, shareID)
		assert.Equal(t, "rot-1", req.RotationID)
		assert.NotEmpty(t, req.UserSignature)
		assert.NotEmpty(t, req.ItemKeySignature)
		return echoRevision("item-1", 1, req.Content, req.RotationID), nil
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()

	c := domain.ItemContent{
		Title: "example.com",
		Type:  domain.Login{Username: "user", Password: "secret", Websites: []string{"https://example.com"}},
	}
	created, err := r.CreateItem(ctx, testShare, c, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID("item-1"), created.ID)
	assert.Equal(t, int64(1), created.Revision)

	// the acknowledged revision and the wrapped key are cached
	got, err := store.GetItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Revision)
	_, err = store.GetItemKey(ctx, testShare, "item-1")
	require.NoError(t, err)

	opened, err := r.OpenItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, c, opened)
}

func TestUpdateItem(t *testing.T) {
	fr := &fakeRemote{}
	fr.createItem = func(_ domain.ShareID, req remote.CreateItemRequest) (*remote.ItemRevision, error) {
		return echoRevision("item-1", 1, req.Content, req.RotationID), nil
	}
	var sentLastRevision int64
	fr.updateItem = func(_ domain.ShareID, itemID domain.ItemID, req remote.UpdateItemRequest) (*remote.ItemRevision, error) {
		sentLastRevision = req.LastRevision
		return echoRevision(string(itemID), req.LastRevision+1, req.Content, req.RotationID), nil
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()

	_, err := r.CreateItem(ctx, testShare, domain.ItemContent{Title: "n", Type: domain.Note{Text: "v1"}}, nil)
	require.NoError(t, err)

	updated, err := r.UpdateItem(ctx, testShare, "item-1", domain.ItemContent{Title: "n", Type: domain.Note{Text: "v2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sentLastRevision)
	assert.Equal(t, int64(2), updated.Revision)

	got, err := store.GetItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)

	opened, err := r.OpenItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Note{Text: "v2"}, opened.Type)
}

func TestUpdateItemConflictLeavesLocalUntouched(t *testing.T) {
	fr := &fakeRemote{}
	fr.createItem = func(_ domain.ShareID, req remote.CreateItemRequest) (*remote.ItemRevision, error) {
		return echoRevision("item-1", 1, req.Content, req.RotationID), nil
	}
	fr.updateItem = func(domain.ShareID, domain.ItemID, remote.UpdateItemRequest) (*remote.ItemRevision, error) {
		return nil, domain.ErrConflict
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()

	_, err := r.CreateItem(ctx, testShare, domain.ItemContent{Title: "n", Type: domain.Note{Text: "v1"}}, nil)
	require.NoError(t, err)

	_, err = r.UpdateItem(ctx, testShare, "item-1", domain.ItemContent{Title: "n", Type: domain.Note{Text: "v2"}})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := store.GetItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Revision)

	opened, err := r.OpenItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Note{Text: "v1"}, opened.Type)
}

func TestApplyPendingEventsBootstrap(t *testing.T) {
	fr := &fakeRemote{
		lastEventID: "evt-10",
		items: []remote.ItemRevision{
			sealedRevision(t, "item-1", 1),
			sealedRevision(t, "item-2", 3),
			sealedRevision(t, "item-3", 2),
		},
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()

	require.NoError(t, r.ApplyPendingEvents(ctx, testShare))

	items, err := store.GetItems(ctx, testShare)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	cursor, err := store.GetCursor(ctx, testShare)
	require.NoError(t, err)
	assert.Equal(t, "evt-10", cursor)

	// delta fetch starts from the pre-listing horizon
	assert.Equal(t, []string{"evt-10"}, fr.eventCursors)
}

func TestApplyPendingEventsPaginates(t *testing.T) {
	fr := &fakeRemote{
		events: []remote.GetEventsResponse{
			{
				LatestEventID: "evt-2",
				UpdatedItems:  []remote.ItemRevision{sealedRevision(t, "item-1", 2)},
				EventsPending: true,
			},
			{
				LatestEventID:  "evt-3",
				DeletedItemIDs: []string{"item-1"},
			},
		},
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()
	require.NoError(t, store.SetCursor(ctx, testShare, "evt-1"))

	require.NoError(t, r.ApplyPendingEvents(ctx, testShare))

	assert.Equal(t, []string{"evt-1", "evt-2"}, fr.eventCursors)
	cursor, err := store.GetCursor(ctx, testShare)
	require.NoError(t, err)
	assert.Equal(t, "evt-3", cursor)

	_, err = store.GetItem(ctx, testShare, "item-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyPendingEventsKeepsNewerLocalRevision(t *testing.T) {
	fr := &fakeRemote{
		events: []remote.GetEventsResponse{
			{
				LatestEventID: "evt-2",
				UpdatedItems:  []remote.ItemRevision{sealedRevision(t, "item-1", 3)},
			},
		},
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()
	require.NoError(t, store.SetCursor(ctx, testShare, "evt-1"))

	newer, err := sealedRevision(t, "item-1", 5).Item(testShare)
	require.NoError(t, err)
	require.NoError(t, store.UpsertItems(ctx, []domain.Item{newer}))

	require.NoError(t, r.ApplyPendingEvents(ctx, testShare))

	got, err := store.GetItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Revision)
}

func TestTrashItemsPartialFailure(t *testing.T) {
	fr := &fakeRemote{}
	fr.trashItems = func(req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error) {
		require.Len(t, req.Items, 2)
		return &remote.BatchItemsResponse{
			Items: []remote.ItemStateChange{
				{ItemID: "item-1", Revision: 2, State: int(domain.ItemStateTrashed), ModifyTime: 200, RevisionTime: 200},
			},
			FailedItemIDs: []string{"item-2"},
		}, nil
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()

	for _, id := range []string{"item-1", "item-2"} {
		it, err := sealedRevision(t, id, 1).Item(testShare)
		require.NoError(t, err)
		require.NoError(t, store.UpsertItems(ctx, []domain.Item{it}))
	}

	out, err := r.TrashItems(ctx, testShare, []domain.ItemID{"item-1", "item-2"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemID{"item-1"}, out.Succeeded)
	assert.Equal(t, []domain.ItemID{"item-2"}, out.Failed)

	got, err := store.GetItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStateTrashed, got.State)
	assert.Equal(t, int64(2), got.Revision)

	got, err = store.GetItem(ctx, testShare, "item-2")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStateActive, got.State)
}

func TestDeleteItemsRemovesLocal(t *testing.T) {
	fr := &fakeRemote{}
	fr.deleteItems = func(req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error) {
		return &remote.BatchItemsResponse{
			Items: []remote.ItemStateChange{{ItemID: "item-1"}},
		}, nil
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()

	it, err := sealedRevision(t, "item-1", 1).Item(testShare)
	require.NoError(t, err)
	require.NoError(t, store.UpsertItems(ctx, []domain.Item{it}))

	out, err := r.DeleteItems(ctx, testShare, []domain.ItemID{"item-1"})
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemID{"item-1"}, out.Succeeded)

	_, err = store.GetItem(ctx, testShare, "item-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateLastUsedTime(t *testing.T) {
	fr := &fakeRemote{}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()

	it, err := sealedRevision(t, "item-1", 1).Item(testShare)
	require.NoError(t, err)
	require.NoError(t, store.UpsertItems(ctx, []domain.Item{it}))

	require.NoError(t, r.UpdateLastUsedTime(ctx, testShare, "item-1", 12345))
	assert.Equal(t, int64(12345), fr.lastUsedUpdates["item-1"])

	got, err := store.GetItem(ctx, testShare, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), got.LastUseTime)
}

func TestMoveItem(t *testing.T) {
	const destShare = domain.ShareID("share-2")

	fr := &fakeRemote{}
	fr.createItem = func(shareID domain.ShareID, req remote.CreateItemRequest) (*remote.ItemRevision, error) {
		if shareID == destShare {
			assert.Equal(t, "rot-2", req.RotationID)
			return echoRevision("item-moved", 1, req.Content, req.RotationID), nil
		}
		return echoRevision("item-1", 1, req.Content, req.RotationID), nil
	}
	var deleted remote.BatchItemsRequest
	fr.deleteItems = func(req remote.BatchItemsRequest) (*remote.BatchItemsResponse, error) {
		deleted = req
		return &remote.BatchItemsResponse{Items: []remote.ItemStateChange{{ItemID: "item-1"}}}, nil
	}
	r, store := newTestReconciler(t, fr)
	ctx := context.Background()
	require.NoError(t, r.keys.AddRotation(ctx, keystore.VaultKeyRotation{
		ShareID: destShare, RotationID: "rot-2", Key: crypto.GenerateKey(), CreatedAt: 2,
	}))

	c := domain.ItemContent{Title: "n", Type: domain.Note{Text: "moving"}}
	_, err := r.CreateItem(ctx, testShare, c, nil)
	require.NoError(t, err)

	moved, err := r.MoveItem(ctx, testShare, "item-1", destShare)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemID("item-moved"), moved.ID)
	assert.Equal(t, destShare, moved.ShareID)

	// plaintext survives the re-keying
	opened, err := r.OpenItem(ctx, destShare, "item-moved")
	require.NoError(t, err)
	assert.Equal(t, c, opened)

	// source copy is deleted remotely and locally
	require.Len(t, deleted.Items, 1)
	assert.Equal(t, "item-1", deleted.Items[0].ItemID)
	_, err = store.GetItem(ctx, testShare, "item-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	fr := &fakeRemote{}
	fr.createItem = func(_ domain.ShareID, req remote.CreateItemRequest) (*remote.ItemRevision, error) {
		return echoRevision("item-1", 1, req.Content, req.RotationID), nil
	}
	r, _ := newTestReconciler(t, fr)
	ctx := context.Background()

	ch, cancel := r.Subscribe()
	defer cancel()

	_, err := r.CreateItem(ctx, testShare, domain.ItemContent{Title: "n", Type: domain.Note{Text: "x"}}, nil)
	require.NoError(t, err)

	change := <-ch
	assert.Equal(t, domain.Change{ShareID: testShare, ItemID: "item-1", Kind: domain.ChangeUpserted}, change)
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	r, _ := newTestReconciler(t, &fakeRemote{})

	ch, cancel := r.Subscribe()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestPhaseIdleByDefault(t *testing.T) {
	r, _ := newTestReconciler(t, &fakeRemote{})
	assert.Equal(t, PhaseIdle, r.Phase(testShare))
}
