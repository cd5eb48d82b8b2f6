package domain

// ShareID identifies a vault (share) on both the remote and the local cache.
type ShareID string

// ItemID identifies an item within a share.
type ItemID string

// RotationID identifies one generation of a vault's symmetric key.
type RotationID string

// ItemState is the lifecycle state of an item.
type ItemState int

const (
	ItemStateActive  ItemState = 1
	ItemStateTrashed ItemState = 2
)

// Item is the locally cached representation of an item revision. Content
// stays sealed: decryption happens only transiently through the codec.
type Item struct {
	ID                   ItemID
	ShareID              ShareID
	Revision             int64
	ContentFormatVersion int
	RotationID           RotationID
	Content              []byte // sealed bytes, never plaintext
	State                ItemState
	SignatureEmail       string
	AliasEmail           string
	Labels               []string
	CreateTime           int64
	ModifyTime           int64
	LastUseTime          int64
	RevisionTime         int64
}

// ItemType is the closed set of content variants. The codec switches on
// the concrete type, so adding a variant forces every switch to be
// revisited.
type ItemType interface{ itemType() }

// Login holds credentials plus the websites they were saved for.
type Login struct {
	Username string
	Password string
	Websites []string
}

// Note holds free-form secure text.
type Note struct {
	Text string
}

// Alias holds the provisioned alias address. The address is associated
// out-of-band (it comes from the alias provisioning flow, not from
// user-entered content), so it never travels inside the sealed bytes.
type Alias struct {
	AliasEmail string
}

func (Login) itemType() {}
func (Note) itemType()  {}
func (Alias) itemType() {}

// ItemContent is the decoded form of an item's sealed content. Produced
// transiently by decryption and never persisted.
type ItemContent struct {
	Title string
	Type  ItemType

	// AllowedApps lists application package identifiers permitted to
	// autofill from this item.
	AllowedApps []string
}

// KeyPacket is the ephemeral wrapped key artifact the remote returns to
// authorize decrypting a single item's latest key.
type KeyPacket struct {
	ItemID     ItemID
	RotationID RotationID
	Packet     []byte
}
