package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0KvinayK0/android-pass/internal/domain"
	"github.com/0KvinayK0/android-pass/internal/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const apiPrefix = "pass/v1"

// Client is the HTTP implementation of DataSource. Transient failures
// (transport errors, 5xx) are retried with exponential backoff;
// conflicts, not-found and quota responses are returned immediately
// since retrying cannot fix them.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logging.Logger

	maxElapsed time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMaxElapsed bounds total retry time for transient failures.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

// NewClient builds a Client for the given base URL. token is an opaque
// bearer credential attached to every request; issuing and refreshing it
// is out of scope here.
func NewClient(baseURL, token string, log logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        log,
		maxElapsed: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one JSON request with retries. in may be nil (no body);
// out may be nil (response body discarded).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	url := fmt.Sprintf("%s/%s%s", c.baseURL, apiPrefix, path)
	// one id across all retries of the same logical request
	requestID := uuid.NewString()

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("X-Request-Id", requestID)

		resp, err := c.http.Do(req)
		if err != nil {
			c.log.Warn(ctx, "request failed, will retry", "method", method, "url", url, "err", err)
			return fmt.Errorf("%s %s: %w", method, path, domain.ErrNetwork)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			err := c.mapError(resp)
			if isTransient(err) {
				c.log.Warn(ctx, "server error, will retry", "method", method, "url", url, "status", resp.StatusCode)
				return err
			}
			return backoff.Permanent(err)
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// mapError translates a non-2xx response into the domain taxonomy.
func (c *Client) mapError(resp *http.Response) error {
	var ae apiError
	_ = json.NewDecoder(resp.Body).Decode(&ae)

	switch {
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("remote revision mismatch: %w", domain.ErrConflict)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("remote resource missing: %w", domain.ErrNotFound)
	case resp.StatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("plan limit reached: %w", domain.ErrQuota)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("content rejected: %w", domain.ErrUnsupportedContent)
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error %d: %w", resp.StatusCode, domain.ErrNetwork)
	default:
		if ae.Message != "" {
			return fmt.Errorf("request rejected (%d): %s", resp.StatusCode, ae.Message)
		}
		return fmt.Errorf("request rejected with status %d", resp.StatusCode)
	}
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrNetwork)
}

func (c *Client) CreateVault(ctx context.Context, req CreateVaultRequest) (*ShareResponse, error) {
	var out ShareResponse
	if err := c.do(ctx, http.MethodPost, "/vault", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVault(ctx context.Context, shareID domain.ShareID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/vault/%s", shareID), nil, nil)
}

func (c *Client) GetShares(ctx context.Context) ([]ShareResponse, error) {
	var out GetSharesResponse
	if err := c.do(ctx, http.MethodGet, "/share", nil, &out); err != nil {
		return nil, err
	}
	return out.Shares, nil
}

func (c *Client) GetShare(ctx context.Context, shareID domain.ShareID) (*ShareResponse, error) {
	var out ShareResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/share/%s", shareID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetVaultKeys(ctx context.Context, shareID domain.ShareID, page, pageSize int) (*GetVaultKeysResponse, error) {
	var out GetVaultKeysResponse
	path := fmt.Sprintf("/share/%s/key/vault?Page=%d&PageSize=%d", shareID, page, pageSize)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetKeyPacket(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*KeyPacketResponse, error) {
	var out KeyPacketResponse
	path := fmt.Sprintf("/share/%s/item/%s/keypacket", shareID, itemID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetItems(ctx context.Context, shareID domain.ShareID, page, pageSize int) (*GetItemsResponse, error) {
	var out GetItemsResponse
	path := fmt.Sprintf("/share/%s/item?Page=%d&PageSize=%d", shareID, page, pageSize)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateItem(ctx context.Context, shareID domain.ShareID, req CreateItemRequest) (*ItemRevision, error) {
	var out ItemRevision
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/share/%s/item", shareID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItem(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, req UpdateItemRequest) (*ItemRevision, error) {
	var out ItemRevision
	path := fmt.Sprintf("/share/%s/item/%s", shareID, itemID)
	if err := c.do(ctx, http.MethodPut, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLastUsedTime(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, lastUseTime int64) error {
	path := fmt.Sprintf("/share/%s/item/%s/lastuse", shareID, itemID)
	return c.do(ctx, http.MethodPut, path, UpdateLastUsedTimeRequest{LastUseTime: lastUseTime}, nil)
}

func (c *Client) TrashItems(ctx context.Context, shareID domain.ShareID, req BatchItemsRequest) (*BatchItemsResponse, error) {
	var out BatchItemsResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/share/%s/item/trash", shareID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UntrashItems(ctx context.Context, shareID domain.ShareID, req BatchItemsRequest) (*BatchItemsResponse, error) {
	var out BatchItemsResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/share/%s/item/untrash", shareID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteItems uses the body-carrying DELETE the protocol defines.
func (c *Client) DeleteItems(ctx context.Context, shareID domain.ShareID, req BatchItemsRequest) (*BatchItemsResponse, error) {
	var out BatchItemsResponse
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/share/%s/item", shareID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAlias(ctx context.Context, shareID domain.ShareID, req CreateAliasRequest) (*ItemRevision, error) {
	var out ItemRevision
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/share/%s/alias/custom", shareID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAliasOptions(ctx context.Context, shareID domain.ShareID) (*AliasOptionsResponse, error) {
	var out AliasOptionsResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/share/%s/alias/options", shareID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAliasDetails(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID) (*AliasDetailsResponse, error) {
	var out AliasDetailsResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/share/%s/alias/%s", shareID, itemID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAliasMailboxes(ctx context.Context, shareID domain.ShareID, itemID domain.ItemID, req UpdateAliasMailboxesRequest) (*AliasDetailsResponse, error) {
	var out AliasDetailsResponse
	path := fmt.Sprintf("/share/%s/alias/%s/mailbox", shareID, itemID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetLastEventID(ctx context.Context, shareID domain.ShareID) (string, error) {
	var out LastEventIDResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/share/%s/event", shareID), nil, &out); err != nil {
		return "", err
	}
	return out.EventID, nil
}

func (c *Client) GetEvents(ctx context.Context, shareID domain.ShareID, lastEventID string) (*GetEventsResponse, error) {
	var out GetEventsResponse
	path := fmt.Sprintf("/share/%s/event/%s", shareID, lastEventID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
