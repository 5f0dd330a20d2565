// Package sms sends guardian notifications through a simple HTTP gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client talks to an SMS gateway accepting JSON POST requests.
type Client struct {
	url    string
	token  string
	from   string
	client *http.Client
}

// NewClient creates a gateway client. The url must point at the gateway's
// send endpoint; token is sent as a bearer token when non-empty.
func NewClient(url, token, from string) *Client {
	return &Client{
		url:   url,
		token: token,
		from:  from,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// Notify sends a single message to the given phone number.
func (c *Client) Notify(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(sendRequest{
		To:      phone,
		From:    c.from,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("could not encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not send sms: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status code %d", resp.StatusCode)
	}
	return nil
}
