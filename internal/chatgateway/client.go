// Package chatgateway delivers notices to the chat bridge over HTTP.
package chatgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/psds-microservice/support-service/internal/notify"
)

const notifyPath = "/api/v1/notify"

// Client implements notify.Sender against POST {baseURL}/api/v1/notify.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a client. token, when set, is sent as a bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts one notice. Any non-2xx answer (403 for a chat that blocked the bot) is an error.
func (c *Client) Send(ctx context.Context, n notify.Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("chatgateway: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+notifyPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chatgateway: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.ID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatgateway: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("chatgateway: status %d for recipient %s: %s", resp.StatusCode, n.RecipientID, bytes.TrimSpace(snippet))
	}
	return nil
}
