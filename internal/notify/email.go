// Package notify contains outbound notification collaborators: the HTTP
// client for the external status-email service and the payload types it
// accepts. Sends are best-effort; callers log and continue on failure.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusEmail is the body POSTed to the external status-email endpoint.
type StatusEmail struct {
	ServiceRequestID string `json:"serviceRequestId"`
	PreviousStatus   string `json:"previousStatus"`
	NewStatus        string `json:"newStatus"`
	RecipientEmail   string `json:"recipientEmail"`
	RecipientName    string `json:"recipientName"`
}

// EmailSender is implemented by anything that can deliver a status email.
type EmailSender interface {
	SendStatusEmail(ctx context.Context, e StatusEmail) error
}

// EmailClient posts status emails to the configured external endpoint.
// An empty endpoint makes every send a no-op, which keeps local and test
// environments quiet without extra wiring.
type EmailClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewEmailClient returns a client for the given endpoint URL.
func NewEmailClient(endpoint string) *EmailClient {
	return &EmailClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// SendStatusEmail delivers one status email. Non-2xx responses are returned
// as errors so the dispatcher can log them per recipient.
func (c *EmailClient) SendStatusEmail(ctx context.Context, e StatusEmail) error {
	if c.endpoint == "" {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status email endpoint returned %d", resp.StatusCode)
	}
	return nil
}
