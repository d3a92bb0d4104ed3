package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"firesmoke-api/internal/models"
)

// WebhookSender delivers a JSON payload to an HTTP endpoint
type WebhookSender interface {
	PostWebhook(ctx context.Context, url string, payload interface{}) (int, error)
}

// HTTPWebhookSender posts webhooks with net/http
type HTTPWebhookSender struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPWebhookSender creates a webhook sender with a per-request timeout
func NewHTTPWebhookSender(timeout time.Duration, userAgent string) *HTTPWebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPWebhookSender{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// webhookAccepted lists the status codes treated as delivered
var webhookAccepted = map[int]bool{
	http.StatusOK:        true,
	http.StatusCreated:   true,
	http.StatusAccepted:  true,
	http.StatusNoContent: true,
}

// PostWebhook sends payload as JSON and returns the response status code
func (s *HTTPWebhookSender) PostWebhook(ctx context.Context, url string, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, &models.ProviderError{Provider: "webhook", Err: err}
	}
	defer resp.Body.Close()

	if !webhookAccepted[resp.StatusCode] {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return resp.StatusCode, &models.ProviderError{
			Provider:   "webhook",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", bytes.TrimSpace(snippet)),
		}
	}
	return resp.StatusCode, nil
}
