// ABOUTME: Resend HTTP API email provider
// ABOUTME: Posts plain-text messages to the Resend transactional email service

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

const resendEndpoint = "https://api.resend.com/emails"

// ResendProvider sends email through the Resend HTTP API.
type ResendProvider struct {
	apiKey   string
	fromAddr string
	endpoint string
	client   *http.Client
}

// NewResendProvider creates a Resend provider with the given API key and
// From address.
func NewResendProvider(apiKey, fromAddr string) *ResendProvider {
	return &ResendProvider{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send posts one message to the Resend API.
func (p *ResendProvider) Send(ctx context.Context, to, subject, text string) error {
	reqBody := resendSendRequest{
		From:    p.fromAddr,
		To:      []string{to},
		Subject: subject,
		Text:    text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
