package remote

// ItemRevision is the remote's authoritative view of one item revision.
type ItemRevision struct {
	ItemID               string   `json:"itemId"`
	Revision             int64    `json:"revision"`
	ContentFormatVersion int      `json:"contentFormatVersion"`
	RotationID           string   `json:"rotationId"`
	Content              string   `json:"content"`
	UserSignature        string   `json:"userSignature"`
	ItemKeySignature     string   `json:"itemKeySignature"`
	State                int      `json:"state"`
	SignatureEmail       string   `json:"signatureEmail"`
	AliasEmail           string   `json:"aliasEmail,omitempty"`
	Labels               []string `json:"labels"`
	CreateTime           int64    `json:"createTime"`
	ModifyTime           int64    `json:"modifyTime"`
	LastUseTime          int64    `json:"lastUseTime"`
	RevisionTime         int64    `json:"revisionTime"`
}

type GetItemsResponse struct {
	Items []ItemRevision `json:"items"`
	Total int            `json:"total"`
}

// ItemStateChange reports one accepted entry of a batched mutation.
type ItemStateChange struct {
	ItemID       string `json:"itemId"`
	Revision     int64  `json:"revision"`
	State        int    `json:"state"`
	ModifyTime   int64  `json:"modifyTime"`
	RevisionTime int64  `json:"revisionTime"`
}

// BatchItemsResponse carries per-item outcomes: callers need to know
// which ids succeeded, not an all-or-nothing boolean.
type BatchItemsResponse struct {
	Items         []ItemStateChange `json:"items"`
	FailedItemIDs []string          `json:"failedItemIds,omitempty"`
}

type ShareResponse struct {
	ShareID               string `json:"shareId"`
	VaultID               string `json:"vaultId"`
	Content               string `json:"content"`
	ContentFormatVersion  int    `json:"contentFormatVersion"`
	ContentRotationID     string `json:"contentRotationId"`
	ContentSignatureEmail string `json:"contentSignatureEmail"`
	Primary               bool   `json:"primary"`
	ExpirationTime        int64  `json:"expirationTime,omitempty"`
	CreateTime            int64  `json:"createTime"`
}

type GetSharesResponse struct {
	Shares []ShareResponse `json:"shares"`
}

// VaultKeyData is one wrapped vault key rotation as served by the paged
// key endpoint.
type VaultKeyData struct {
	RotationID    string `json:"rotationId"`
	Rotation      int64  `json:"rotation"`
	Key           string `json:"key"`
	KeyPassphrase string `json:"keyPassphrase"`
	KeySignature  string `json:"keySignature"`
	CreateTime    int64  `json:"createTime"`
}

type GetVaultKeysResponse struct {
	Keys  []VaultKeyData `json:"keys"`
	Total int            `json:"total"`
}

type KeyPacketResponse struct {
	ItemID             string `json:"itemId"`
	RotationID         string `json:"rotationId"`
	KeyPacket          string `json:"keyPacket"`
	KeyPacketSignature string `json:"keyPacketSignature"`
}

type AliasSuffix struct {
	Suffix       string `json:"suffix"`
	SignedSuffix string `json:"signedSuffix"`
	Domain       string `json:"domain"`
}

type AliasMailbox struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type AliasOptionsResponse struct {
	Suffixes  []AliasSuffix  `json:"suffixes"`
	Mailboxes []AliasMailbox `json:"mailboxes"`
}

type AliasDetailsResponse struct {
	Email     string         `json:"email"`
	Mailboxes []AliasMailbox `json:"mailboxes"`
}

type LastEventIDResponse struct {
	EventID string `json:"eventId"`
}

// GetEventsResponse is one page of a vault's change feed. EventsPending
// signals that more pages follow the returned cursor.
type GetEventsResponse struct {
	LatestEventID  string         `json:"latestEventId"`
	UpdatedItems   []ItemRevision `json:"updatedItems"`
	DeletedItemIDs []string       `json:"deletedItemIds"`
	EventsPending  bool           `json:"eventsPending"`
}

// apiError is the error body the backend returns on non-2xx statuses.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}
