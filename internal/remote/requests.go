package remote

// CreateItemRequest is the item create wire payload. Content carries the
// base64 sealed bytes; the key-wrapping fields prove the item key was
// wrapped under the stated rotation.
type CreateItemRequest struct {
	RotationID              string   `json:"rotationId"`
	Labels                  []string `json:"labels"`
	VaultKeyPacket          string   `json:"vaultKeyPacket,omitempty"`
	VaultKeyPacketSignature string   `json:"vaultKeyPacketSignature,omitempty"`
	ContentFormatVersion    int      `json:"contentFormatVersion"`
	Content                 string   `json:"content"`
	UserSignature           string   `json:"userSignature"`
	ItemKeySignature        string   `json:"itemKeySignature"`
}

// UpdateItemRequest adds the optimistic-concurrency revision the caller
// last observed; the remote rejects the update if its own revision
// differs.
type UpdateItemRequest struct {
	RotationID           string   `json:"rotationId"`
	LastRevision         int64    `json:"lastRevision"`
	Labels               []string `json:"labels"`
	ContentFormatVersion int      `json:"contentFormatVersion"`
	Content              string   `json:"content"`
	UserSignature        string   `json:"userSignature"`
	ItemKeySignature     string   `json:"itemKeySignature"`
}

// CreateVaultRequest carries the vault metadata plus the wrapped key
// material generated at vault creation.
type CreateVaultRequest struct {
	Content              string `json:"content"`
	ContentFormatVersion int    `json:"contentFormatVersion"`
	VaultKey             string `json:"vaultKey"`
	VaultKeyPassphrase   string `json:"vaultKeyPassphrase"`
	VaultKeySignature    string `json:"vaultKeySignature"`
	KeyPacket            string `json:"keyPacket"`
	KeyPacketSignature   string `json:"keyPacketSignature"`
	SigningKey           string `json:"signingKey"`
	SigningKeyPassphrase string `json:"signingKeyPassphrase"`
	AcceptanceSignature  string `json:"acceptanceSignature"`
	ItemKey              string `json:"itemKey"`
	ItemKeyPassphrase    string `json:"itemKeyPassphrase"`
	ItemKeySignature     string `json:"itemKeySignature"`
}

// ItemRef names one item revision inside a batched mutation.
type ItemRef struct {
	ItemID   string `json:"itemId"`
	Revision int64  `json:"revision"`
}

// BatchItemsRequest is shared by trash, untrash and the body-carrying
// delete endpoint.
type BatchItemsRequest struct {
	Items []ItemRef `json:"items"`
}

type UpdateLastUsedTimeRequest struct {
	LastUseTime int64 `json:"lastUseTime"`
}

type UpdateAliasMailboxesRequest struct {
	MailboxIDs []int64 `json:"mailboxIds"`
}

// CreateAliasRequest provisions a custom alias and creates its item in
// one call.
type CreateAliasRequest struct {
	Prefix       string            `json:"prefix"`
	SignedSuffix string            `json:"signedSuffix"`
	MailboxIDs   []int64           `json:"mailboxIds"`
	Item         CreateItemRequest `json:"item"`
}
