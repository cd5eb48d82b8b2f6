package domain

// Vault is a named container of items with its own key hierarchy.
type Vault struct {
	ShareID   ShareID
	Name      string
	Color     string
	IsPrimary bool
}

// ChangeKind classifies a local-cache change announced to subscribers.
type ChangeKind int

const (
	ChangeUpserted ChangeKind = iota + 1
	ChangeDeleted
)

// Change is the notification emitted after the reconciler commits a
// mutation or an event batch to the local cache.
type Change struct {
	ShareID ShareID
	ItemID  ItemID
	Kind    ChangeKind
}
