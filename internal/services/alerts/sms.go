package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"firesmoke-api/internal/models"
)

// SMSSender sends a text message
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// TwilioSender sends SMS through the Twilio Messages API
type TwilioSender struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

// NewTwilioSender creates a Twilio sender
func NewTwilioSender(baseURL, accountSID, authToken, from string, timeout time.Duration) *TwilioSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SendSMS posts a message and returns the Twilio message SID
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", fmt.Errorf("twilio credentials: %w", models.ErrNotConfigured)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create sms request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &models.ProviderError{Provider: "twilio", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var msg twilioMessage
	_ = json.Unmarshal(raw, &msg)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail := msg.Message
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return "", &models.ProviderError{
			Provider:   "twilio",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", detail),
		}
	}
	return msg.SID, nil
}

// SMSBody formats the short alert text
func SMSBody(event models.AlertEvent) string {
	label := "Smoke"
	var confidence float64
	if r := event.DetectionResult; r != nil {
		if r.HasFire {
			label = "Fire"
		}
		confidence = r.MaxConfidence
	}
	location := event.Location
	if location == "" {
		location = "Unknown"
	}
	return fmt.Sprintf("ALERT: %s detected at %s with %.0f%% confidence. Time: %s",
		label, location, models.FractionToPercent(confidence), event.Timestamp.Format("15:04:05"))
}
