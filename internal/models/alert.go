package models

import (
	"time"
)

// ChannelKind identifies a notification sink type
type ChannelKind string

const (
	ChannelWebhook ChannelKind = "webhook"
	ChannelEmail   ChannelKind = "email"
	ChannelSMS     ChannelKind = "sms"
)

// Webhook event types
const (
	EventAll           = "all"
	EventFireDetected  = "fire_detected"
	EventSmokeDetected = "smoke_detected"
)

// AlertChannel is a configured notification sink. Implementations are plain
// configuration values; the dispatcher owns trigger rules and transport.
type AlertChannel interface {
	Kind() ChannelKind
	Target() string
}

// WebhookChannel posts the detection as JSON to an HTTP endpoint
type WebhookChannel struct {
	ID        int64  `json:"id,omitempty"`
	URL       string `json:"url"`
	EventType string `json:"event_type"`
}

func (w WebhookChannel) Kind() ChannelKind { return ChannelWebhook }
func (w WebhookChannel) Target() string    { return w.URL }

// EmailChannel sends an HTML alert email. MinConfidence is a fraction.
type EmailChannel struct {
	Address       string  `json:"address"`
	MinConfidence float64 `json:"min_confidence"`
	AlertForFire  bool    `json:"alert_for_fire"`
	AlertForSmoke bool    `json:"alert_for_smoke"`
}

func (e EmailChannel) Kind() ChannelKind { return ChannelEmail }
func (e EmailChannel) Target() string    { return e.Address }

// SMSChannel sends a short text alert. MinConfidence is a fraction.
type SMSChannel struct {
	Phone         string  `json:"phone"`
	MinConfidence float64 `json:"min_confidence"`
	AlertForFire  bool    `json:"alert_for_fire"`
	AlertForSmoke bool    `json:"alert_for_smoke"`
}

func (s SMSChannel) Kind() ChannelKind { return ChannelSMS }
func (s SMSChannel) Target() string    { return s.Phone }

// AlertEvent is the payload delivered to every channel: the finalized
// detection result plus when and where it happened.
type AlertEvent struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location"`
	*DetectionResult
}

// OutcomeStatus is the per-channel dispatch result
type OutcomeStatus string

const (
	OutcomeSent     OutcomeStatus = "sent"
	OutcomeFailed   OutcomeStatus = "failed"
	OutcomeSkipped  OutcomeStatus = "skipped"  // trigger rule did not match
	OutcomeDisabled OutcomeStatus = "disabled" // provider credentials missing
)

// ChannelOutcome records what happened for one channel
type ChannelOutcome struct {
	Channel    ChannelKind   `json:"channel"`
	Target     string        `json:"target"`
	Status     OutcomeStatus `json:"status"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Reference  string        `json:"reference,omitempty"`
}

// DispatchReport lists every channel outcome in input order
type DispatchReport struct {
	EventID  string           `json:"event_id"`
	Outcomes []ChannelOutcome `json:"outcomes"`
	Sent     int              `json:"sent"`
	Failed   int              `json:"failed"`
	Skipped  int              `json:"skipped"`
}

// MessagePublisher interface for publishing alerts
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}

// User is a registered account
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey is a stored key. The raw key is only shown once at creation.
type APIKey struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// Webhook is a stored webhook registration
type Webhook struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	URL           string     `json:"url"`
	EventType     string     `json:"event_type"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}

// Channel converts a stored webhook into a dispatchable channel
func (w Webhook) Channel() WebhookChannel {
	return WebhookChannel{ID: w.ID, URL: w.URL, EventType: w.EventType}
}

// AlertSettings are a user's email/SMS preferences. MinConfidence is stored
// as a percentage, matching the API surface.
type AlertSettings struct {
	UserID        int64  `json:"user_id"`
	EmailEnabled  bool   `json:"email_enabled"`
	EmailAddress  string `json:"email_address"`
	SMSEnabled    bool   `json:"sms_enabled"`
	PhoneNumber   string `json:"phone_number"`
	AlertForFire  bool   `json:"alert_for_fire"`
	AlertForSmoke bool   `json:"alert_for_smoke"`
	MinConfidence int    `json:"min_confidence"`
}

// Channels expands the settings into the enabled email/SMS channels
func (s AlertSettings) Channels() []AlertChannel {
	var channels []AlertChannel
	minConf := PercentToFraction(float64(s.MinConfidence))
	if s.EmailEnabled && s.EmailAddress != "" {
		channels = append(channels, EmailChannel{
			Address:       s.EmailAddress,
			MinConfidence: minConf,
			AlertForFire:  s.AlertForFire,
			AlertForSmoke: s.AlertForSmoke,
		})
	}
	if s.SMSEnabled && s.PhoneNumber != "" {
		channels = append(channels, SMSChannel{
			Phone:         s.PhoneNumber,
			MinConfidence: minConf,
			AlertForFire:  s.AlertForFire,
			AlertForSmoke: s.AlertForSmoke,
		})
	}
	return channels
}
