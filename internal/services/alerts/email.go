package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"firesmoke-api/internal/models"
)

const (
	emailSubject        = "ALERT: Fire/Smoke Detected!"
	defaultSenderName   = "Fire Detection System"
	maxEmailPredictions = 5
)

// EmailSender sends an alert email for an event
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject string, event models.AlertEvent) (string, error)
}

// SendGridSender sends HTML email through the SendGrid v3 API
type SendGridSender struct {
	baseURL    string
	apiKey     string
	fromName   string
	fromEmail  string
	httpClient *http.Client
}

// NewSendGridSender creates a SendGrid sender. from may be "Name <addr>" or a bare address.
func NewSendGridSender(baseURL, apiKey, from string, timeout time.Duration) *SendGridSender {
	name, addr := parseFrom(from)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SendGridSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		fromName:   name,
		fromEmail:  addr,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func parseFrom(from string) (string, string) {
	if a, err := mail.ParseAddress(from); err == nil {
		name := a.Name
		if name == "" {
			name = defaultSenderName
		}
		return name, a.Address
	}
	return defaultSenderName, strings.TrimSpace(from)
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To      []sgAddress `json:"to"`
	Subject string      `json:"subject"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMessage struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Content          []sgContent         `json:"content"`
}

// SendEmail renders the alert template and posts it to /v3/mail/send
func (s *SendGridSender) SendEmail(ctx context.Context, to, subject string, event models.AlertEvent) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("sendgrid api key: %w", models.ErrNotConfigured)
	}

	html, err := RenderEmail(event)
	if err != nil {
		return "", err
	}

	msg := sgMessage{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: to}}, Subject: subject}},
		From:             sgAddress{Email: s.fromEmail, Name: s.fromName},
		Content:          []sgContent{{Type: "text/html", Value: html}},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &models.ProviderError{Provider: "sendgrid", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return resp.Header.Get("X-Message-Id"), nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &models.ProviderError{
			Provider:   "sendgrid",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", bytes.TrimSpace(snippet)),
		}
	}
}

type emailPrediction struct {
	Class      string
	Confidence string
}

type emailView struct {
	Time        string
	Location    string
	HasFire     bool
	HasSmoke    bool
	Confidence  string
	Count       int
	Predictions []emailPrediction
}

var emailTemplate = template.Must(template.New("alert").Parse(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; }
.header { background-color: #ff4444; color: white; padding: 20px; text-align: center; }
.content { padding: 20px; }
.alert-box { background-color: #fff3cd; border-left: 4px solid #ff4444; padding: 15px; margin: 20px 0; }
.detection { background-color: #f8f9fa; padding: 10px; margin: 10px 0; border-radius: 5px; }
.footer { background-color: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666; }
</style>
</head>
<body>
<div class="header"><h1>Fire/Smoke Detection Alert</h1></div>
<div class="content">
<div class="alert-box">
<h2>Detection Alert</h2>
<p><strong>Time:</strong> {{.Time}}</p>
<p><strong>Location:</strong> {{.Location}}</p>
</div>
<h3>Detection Details:</h3>
<div class="detection">
<p><strong>Fire Detected:</strong> {{if .HasFire}}Yes{{else}}No{{end}}</p>
<p><strong>Smoke Detected:</strong> {{if .HasSmoke}}Yes{{else}}No{{end}}</p>
<p><strong>Confidence:</strong> {{.Confidence}}%</p>
<p><strong>Total Detections:</strong> {{.Count}}</p>
</div>
<h3>Predictions:</h3>
{{range .Predictions}}<div class="detection">
<p><strong>Class:</strong> {{.Class}}</p>
<p><strong>Confidence:</strong> {{.Confidence}}%</p>
</div>
{{end}}<p style="margin-top: 20px;"><strong>Action Required:</strong> Please verify the detection and take appropriate action if necessary.</p>
</div>
<div class="footer">
<p>This is an automated alert from Fire &amp; Smoke Detection API</p>
</div>
</body>
</html>
`))

// RenderEmail renders the HTML alert body. At most five predictions are listed.
func RenderEmail(event models.AlertEvent) (string, error) {
	view := emailView{
		Time:     event.Timestamp.Format("2006-01-02 15:04:05"),
		Location: event.Location,
	}
	if view.Location == "" {
		view.Location = "Unknown"
	}
	if r := event.DetectionResult; r != nil {
		view.HasFire = r.HasFire
		view.HasSmoke = r.HasSmoke
		view.Confidence = formatPercent(r.MaxConfidence)
		view.Count = r.Count
		for i, p := range r.Predictions {
			if i == maxEmailPredictions {
				break
			}
			view.Predictions = append(view.Predictions, emailPrediction{
				Class:      strings.ToUpper(p.Class),
				Confidence: formatPercent(p.Confidence),
			})
		}
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.1f", models.FractionToPercent(fraction))
}
