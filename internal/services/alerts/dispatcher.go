package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
)

// Senders groups the transports used by the dispatcher
type Senders struct {
	Webhook WebhookSender
	Email   EmailSender
	SMS     SMSSender
}

// Dispatcher decides which channels an event triggers and delivers to each.
// Channels are attempted one after another; a failure on one never stops the rest.
type Dispatcher struct {
	senders   Senders
	publisher models.MessagePublisher
	subject   string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by HTTP webhooks, SendGrid and Twilio.
// publisher may be nil when the event bus is disabled.
func NewDispatcher(cfg *config.Config, publisher models.MessagePublisher) *Dispatcher {
	senders := Senders{
		Webhook: NewHTTPWebhookSender(cfg.WebhookTimeout, "firesmoke-api/"+cfg.Version),
		Email:   NewSendGridSender(cfg.SendGridBaseURL, cfg.SendGridAPIKey, cfg.EmailFrom, cfg.NotificationTimeout),
		SMS:     NewTwilioSender(cfg.TwilioBaseURL, cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.NotificationTimeout),
	}
	return NewDispatcherWithSenders(cfg, senders, publisher)
}

// NewDispatcherWithSenders creates a dispatcher with explicit transports
func NewDispatcherWithSenders(cfg *config.Config, senders Senders, publisher models.MessagePublisher) *Dispatcher {
	timeout := cfg.NotificationTimeout
	if cfg.WebhookTimeout > timeout {
		timeout = cfg.WebhookTimeout
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		senders:   senders,
		publisher: publisher,
		subject:   cfg.AlertsSubject,
		timeout:   timeout,
		logger:    logging.NewServiceLogger(cfg, "alerts"),
	}
}

// NewEvent wraps a finalized result as an alert event
func NewEvent(result *models.DetectionResult, location string, at time.Time) models.AlertEvent {
	if location == "" {
		location = "Unknown"
	}
	return models.AlertEvent{
		ID:              uuid.NewString(),
		Timestamp:       at,
		Location:        location,
		DetectionResult: result,
	}
}

// WebhookTriggered applies the webhook event-type rule
func WebhookTriggered(ch models.WebhookChannel, r *models.DetectionResult) bool {
	switch ch.EventType {
	case models.EventAll, "":
		return true
	case models.EventFireDetected:
		return r.HasFire
	case models.EventSmokeDetected:
		return r.HasSmoke
	default:
		return false
	}
}

// NotificationTriggered applies the email/SMS rule. minConfidence is a fraction.
func NotificationTriggered(alertForFire, alertForSmoke bool, minConfidence float64, r *models.DetectionResult) bool {
	classMatch := (r.HasFire && alertForFire) || (r.HasSmoke && alertForSmoke)
	return classMatch && r.MaxConfidence >= minConfidence
}

// Dispatch delivers event to every triggered channel and reports each
// outcome in channel order. It never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.AlertEvent, channels []models.AlertChannel) models.DispatchReport {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.DetectionResult == nil {
		event.DetectionResult = models.NewDetectionResult(nil)
	}

	report := models.DispatchReport{
		EventID:  event.ID,
		Outcomes: make([]models.ChannelOutcome, 0, len(channels)),
	}

	for _, ch := range channels {
		outcome := d.deliver(ctx, event, ch)
		switch outcome.Status {
		case models.OutcomeSent:
			report.Sent++
		case models.OutcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	d.publish(event)

	d.logger.Info().
		Str("event_id", event.ID).
		Bool("has_fire", event.HasFire).
		Bool("has_smoke", event.HasSmoke).
		Int("channels", len(channels)).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Alert dispatched")

	return report
}

func (d *Dispatcher) deliver(ctx context.Context, event models.AlertEvent, ch models.AlertChannel) models.ChannelOutcome {
	outcome := models.ChannelOutcome{Channel: ch.Kind(), Target: ch.Target()}
	r := event.DetectionResult

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	switch c := ch.(type) {
	case models.WebhookChannel:
		if !WebhookTriggered(c, r) {
			outcome.Status = models.OutcomeSkipped
			return outcome
		}
		if d.senders.Webhook == nil {
			err = models.ErrNotConfigured
			break
		}
		outcome.StatusCode, err = d.senders.Webhook.PostWebhook(callCtx, c.URL, event)

	case models.EmailChannel:
		if !NotificationTriggered(c.AlertForFire, c.AlertForSmoke, c.MinConfidence, r) {
			outcome.Status = models.OutcomeSkipped
			return outcome
		}
		if d.senders.Email == nil {
			err = models.ErrNotConfigured
			break
		}
		outcome.Reference, err = d.senders.Email.SendEmail(callCtx, c.Address, emailSubject, event)

	case models.SMSChannel:
		if !NotificationTriggered(c.AlertForFire, c.AlertForSmoke, c.MinConfidence, r) {
			outcome.Status = models.OutcomeSkipped
			return outcome
		}
		if d.senders.SMS == nil {
			err = models.ErrNotConfigured
			break
		}
		outcome.Reference, err = d.senders.SMS.SendSMS(callCtx, c.Phone, SMSBody(event))

	default:
		outcome.Status = models.OutcomeSkipped
		outcome.Error = "unsupported channel"
		return outcome
	}

	switch {
	case err == nil:
		outcome.Status = models.OutcomeSent
	case errors.Is(err, models.ErrNotConfigured):
		outcome.Status = models.OutcomeDisabled
		outcome.Error = err.Error()
	default:
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		var perr *models.ProviderError
		if errors.As(err, &perr) && outcome.StatusCode == 0 {
			outcome.StatusCode = perr.StatusCode
		}
		d.logger.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("channel", string(outcome.Channel)).
			Str("target", outcome.Target).
			Msg("Alert delivery failed")
	}
	return outcome
}

func (d *Dispatcher) publish(event models.AlertEvent) {
	if d.publisher == nil || d.subject == "" {
		return
	}
	if err := d.publisher.Publish(d.subject, event); err != nil {
		d.logger.Warn().Err(err).Str("event_id", event.ID).Str("subject", d.subject).Msg("Failed to publish alert event")
	}
}
