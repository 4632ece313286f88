// Package quantitystore implements the HTTP client for the authoritative
// external inventory ledger.
package quantitystore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/workmate-pos/workmate-sub003/internal/ledger"
)

// Client wraps interactions with the quantity store API. It is the only
// implementation of ledger.QuantityStore that leaves the process.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new client. timeout bounds every request including
// body read.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping checks if the remote quantity store is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health returned status %d", ledger.ErrStoreUnavailable, resp.StatusCode)
	}
	return nil
}

type moveChangePayload struct {
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
	Quantity        int    `json:"quantity"`
	From            string `json:"from"`
	To              string `json:"to"`
}

type movePayload struct {
	Reason               string              `json:"reason"`
	ReferenceDocumentURI string              `json:"referenceDocumentUri"`
	Changes              []moveChangePayload `json:"changes"`
}

type setQuantityPayload struct {
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
	Quantity        int    `json:"quantity"`
	CompareQuantity *int   `json:"compareQuantity,omitempty"`
}

type setPayload struct {
	Name                 string               `json:"name"`
	Reason               string               `json:"reason"`
	ReferenceDocumentURI string               `json:"referenceDocumentUri"`
	Quantities           []setQuantityPayload `json:"quantities"`
}

type adjustChangePayload struct {
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
	Delta           int    `json:"delta"`
}

type adjustPayload struct {
	Name                 string                `json:"name"`
	Reason               string                `json:"reason"`
	ReferenceDocumentURI string                `json:"referenceDocumentUri"`
	Changes              []adjustChangePayload `json:"changes"`
}

type mutationResponse struct {
	UserErrors []ledger.UserError `json:"userErrors"`
}

// Move submits a batched bucket-to-bucket move.
func (c *Client) Move(ctx context.Context, in ledger.MoveInstruction) error {
	changes := make([]moveChangePayload, 0, len(in.Changes))
	for _, change := range in.Changes {
		changes = append(changes, moveChangePayload{
			InventoryItemID: change.InventoryItemID,
			LocationID:      change.LocationID,
			Quantity:        change.Quantity,
			From:            string(change.From),
			To:              string(change.To),
		})
	}
	return c.post(ctx, "/inventory/quantities/move", movePayload{
		Reason:               in.Reason,
		ReferenceDocumentURI: in.ReferenceDocumentURI,
		Changes:              changes,
	})
}

// Set submits absolute quantities for one bucket, with optional compare
// values. The store rejects the whole call when any compare value is stale.
func (c *Client) Set(ctx context.Context, in ledger.SetInstruction) error {
	quantities := make([]setQuantityPayload, 0, len(in.Quantities))
	for _, change := range in.Quantities {
		quantities = append(quantities, setQuantityPayload{
			InventoryItemID: change.InventoryItemID,
			LocationID:      change.LocationID,
			Quantity:        change.Quantity,
			CompareQuantity: change.CompareQuantity,
		})
	}
	return c.post(ctx, "/inventory/quantities/set", setPayload{
		Name:                 string(in.Name),
		Reason:               in.Reason,
		ReferenceDocumentURI: in.ReferenceDocumentURI,
		Quantities:           quantities,
	})
}

// Adjust submits signed deltas for one bucket.
func (c *Client) Adjust(ctx context.Context, in ledger.AdjustInstruction) error {
	changes := make([]adjustChangePayload, 0, len(in.Changes))
	for _, change := range in.Changes {
		changes = append(changes, adjustChangePayload{
			InventoryItemID: change.InventoryItemID,
			LocationID:      change.LocationID,
			Delta:           change.Delta,
		})
	}
	return c.post(ctx, "/inventory/quantities/adjust", adjustPayload{
		Name:                 string(in.Name),
		Reason:               in.Reason,
		ReferenceDocumentURI: in.ReferenceDocumentURI,
		Changes:              changes,
	})
}

// post sends the payload and translates the response: 2xx with empty
// userErrors means applied, any userErrors mean the call was rejected as a
// whole, everything else is a transport failure.
func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("quantitystore: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("quantitystore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ledger.ErrStoreUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ledger.ErrStoreUnavailable, resp.StatusCode)
	}

	var decoded mutationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: status %d", ledger.ErrStoreUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("%w: decode response: %v", ledger.ErrStoreUnavailable, err)
	}
	if len(decoded.UserErrors) > 0 {
		return ledger.UserErrors(decoded.UserErrors)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ledger.ErrStoreUnavailable, resp.StatusCode)
	}
	return nil
}
