// Package payment integrates the external instant-payment provider.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChargeRequest asks the provider for a new Pix charge.
type ChargeRequest struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Description   string  `json:"description"`
	CustomerPhone string  `json:"customer_phone,omitempty"`

	// CorrelationID ties the charge back to the originating reservation so
	// reconciliation and provider-side dedup both work.
	CorrelationID string `json:"correlation_id"`

	ExpiresInSec int `json:"expires_in_sec,omitempty"`
}

// Charge is the provider's view of a payment request.
type Charge struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	PaymentCode string    `json:"payment_code"` // Pix copy-and-paste payload
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Client is the HTTP client for the payment provider's API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCharge creates a new charge. The provider treats CorrelationID as an
// idempotency key, so retrying an identical request returns the same charge.
func (c *Client) CreateCharge(ctx context.Context, req *ChargeRequest) (*Charge, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var charge Charge
	if err := c.do(httpReq, &charge); err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}
	return &charge, nil
}

// GetCharge fetches the current provider state of a charge.
func (c *Client) GetCharge(ctx context.Context, id string) (*Charge, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/charges/"+id, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var charge Charge
	if err := c.do(httpReq, &charge); err != nil {
		return nil, fmt.Errorf("get charge: %w", err)
	}
	return &charge, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
