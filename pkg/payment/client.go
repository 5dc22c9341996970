package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/evently/ticketing/config"
)

// Client talks to the external checkout API over HTTP. The provider hosts
// the actual payment page; this service only creates sessions and reads them
// back.
type Client struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string

	hc *http.Client
}

func NewClient(cfg *config.PaymentConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createSessionRequest struct {
	LineItems  []LineItem        `json:"line_items"`
	Metadata   map[string]string `json:"metadata"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, items []LineItem, metadata map[string]string) (*CheckoutSession, error) {
	body := createSessionRequest{
		LineItems:  items,
		Metadata:   metadata,
		SuccessURL: c.successURL,
		CancelURL:  c.cancelURL,
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", &body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if in != nil {
		if err := json.NewEncoder(reqBody).Encode(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payment provider returned %s for %s %s", resp.Status, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}
