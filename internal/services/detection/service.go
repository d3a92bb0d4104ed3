package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/helpers"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/services/alerts"
	"firesmoke-api/internal/services/inference"
	"firesmoke-api/internal/services/weather"
)

var (
	// ErrInferenceTimeout is returned when the provider did not answer in time
	ErrInferenceTimeout = errors.New("inference timeout")

	// ErrInvalidImage is returned when the upload cannot be decoded
	ErrInvalidImage = errors.New("invalid image")
)

// Request is one single-image detection call
type Request struct {
	Image         []byte // encoded image bytes
	ModelID       string
	ConfidencePct int
	UseContext    bool
	Live          bool // webcam / live feed: tighter timeout, no context, alerts enabled
	Location      string
	City          string

	// Fallback notification targets for callers without stored settings
	NotificationEmail string
	NotificationPhone string

	UserID    *int64
	APIKeyID  *int64
	IPAddress string
}

// Response is the finalized result plus what happened downstream
type Response struct {
	*models.DetectionResult
	RecordID int64                  `json:"record_id,omitempty"`
	Dispatch *models.DispatchReport `json:"dispatch,omitempty"`
}

// Recorder persists detection results
type Recorder interface {
	Record(ctx context.Context, result *models.DetectionResult, meta models.RecordMetadata) (int64, error)
}

// WebhookStore lists a user's webhooks and records deliveries
type WebhookStore interface {
	ListActive(ctx context.Context, userID int64) ([]models.Webhook, error)
	MarkTriggered(ctx context.Context, id int64) error
}

// SettingsStore returns a user's alert settings
type SettingsStore interface {
	Get(ctx context.Context, userID int64) (*models.AlertSettings, error)
}

// Dispatcher delivers alert events
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.AlertEvent, channels []models.AlertChannel) models.DispatchReport
}

// Dependencies are the collaborators of the detection service. Any of the
// stores and the dispatcher may be nil.
type Dependencies struct {
	Inference  inference.Provider
	Weather    weather.Provider
	Adjuster   *weather.Adjuster
	Recorder   Recorder
	Webhooks   WebhookStore
	Settings   SettingsStore
	Dispatcher Dispatcher
}

// Service runs the single-image detection flow
type Service struct {
	deps     Dependencies
	defaults struct {
		modelID       string
		confidencePct int
		city          string
		singleTimeout time.Duration
		liveTimeout   time.Duration
	}
	fallback struct {
		email         string
		phone         string
		minConfidence int
	}
	optimize helpers.OptimizeOptions
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates the detection service
func NewService(cfg *config.Config, deps Dependencies) *Service {
	s := &Service{
		deps: deps,
		optimize: helpers.OptimizeOptions{
			MaxWidth:  cfg.MaxImageWidth,
			MaxHeight: cfg.MaxImageHeight,
			Quality:   cfg.ImageQuality,
		},
		now:    time.Now,
		logger: logging.NewServiceLogger(cfg, "detection"),
	}
	s.defaults.modelID = cfg.DefaultModelID
	s.defaults.confidencePct = cfg.DefaultConfidencePct
	s.defaults.city = cfg.WeatherCity
	s.defaults.singleTimeout = cfg.SingleInferenceTimeout
	s.defaults.liveTimeout = cfg.LiveInferenceTimeout
	s.fallback.email = cfg.DefaultAlertEmail
	s.fallback.phone = cfg.DefaultAlertPhone
	s.fallback.minConfidence = cfg.DefaultMinConfidence

	if s.deps.Adjuster == nil {
		s.deps.Adjuster = weather.NewAdjuster(cfg)
	}
	return s
}

func (s *Service) timeout(live bool) time.Duration {
	t := s.defaults.singleTimeout
	if live {
		t = s.defaults.liveTimeout
	}
	if t <= 0 {
		t = 15 * time.Second
	}
	return t
}

// Detect optimizes the image, runs inference, applies context, persists the
// result and dispatches alerts for live detections. Persistence and
// notification failures are logged and never fail the call.
func (s *Service) Detect(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	if req.ModelID == "" {
		req.ModelID = s.defaults.modelID
	}
	if req.ConfidencePct <= 0 {
		req.ConfidencePct = s.defaults.confidencePct
	}
	if req.City == "" {
		req.City = s.defaults.city
	}
	if req.Location == "" {
		req.Location = "Unknown"
	}

	optimized, err := helpers.OptimizeEncoded(req.Image, s.optimize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	timeout := s.timeout(req.Live)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	raw, err := s.deps.Inference.Detect(callCtx, inference.Request{
		ImageBase64:   optimized.Base64(),
		ModelID:       req.ModelID,
		ConfidencePct: req.ConfidencePct,
	})
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn().Str("model_id", req.ModelID).Dur("timeout", timeout).Msg("Inference timed out")
			return nil, fmt.Errorf("%w after %s", ErrInferenceTimeout, timeout)
		}
		return nil, err
	}
	raw.ImageWidth, raw.ImageHeight = optimized.Width, optimized.Height

	result := raw
	if req.UseContext && raw.Count > 0 && !req.Live {
		w := weather.Lookup(ctx, s.deps.Weather, req.City)
		result = s.deps.Adjuster.Contextualize(raw, w, req.Location)
	} else if raw.Count > 0 {
		result.SetAlert(raw.HasFireOrSmoke())
	}
	result.ProcessingTimeMs = float64(s.now().Sub(start).Microseconds()) / 1000

	resp := &Response{DetectionResult: result}

	if !req.Live || result.HasFireOrSmoke() {
		resp.RecordID = s.record(ctx, result, req)
	}

	if req.Live && result.HasFireOrSmoke() {
		report := s.alert(ctx, result, req)
		resp.Dispatch = &report
	}

	s.logger.Debug().
		Str("model_id", req.ModelID).
		Int("count", result.Count).
		Bool("has_fire", result.HasFire).
		Bool("has_smoke", result.HasSmoke).
		Bool("live", req.Live).
		Float64("processing_time_ms", result.ProcessingTimeMs).
		Msg("Detection completed")

	return resp, nil
}

func (s *Service) record(ctx context.Context, result *models.DetectionResult, req Request) int64 {
	if s.deps.Recorder == nil {
		return 0
	}
	id, err := s.deps.Recorder.Record(ctx, result, models.RecordMetadata{
		UserID:              req.UserID,
		APIKeyID:            req.APIKeyID,
		ModelID:             req.ModelID,
		Location:            req.Location,
		City:                req.City,
		IPAddress:           req.IPAddress,
		ConfidenceThreshold: float64(req.ConfidencePct),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to record detection")
		return 0
	}
	return id
}

func (s *Service) alert(ctx context.Context, result *models.DetectionResult, req Request) models.DispatchReport {
	channels := s.Channels(ctx, req)
	event := alerts.NewEvent(result, req.Location, s.now())
	if s.deps.Dispatcher == nil {
		return models.DispatchReport{EventID: event.ID, Outcomes: []models.ChannelOutcome{}}
	}

	report := s.deps.Dispatcher.Dispatch(ctx, event, channels)

	if s.deps.Webhooks != nil {
		for i, outcome := range report.Outcomes {
			if i >= len(channels) {
				break
			}
			hook, ok := channels[i].(models.WebhookChannel)
			if !ok || outcome.Status != models.OutcomeSent || hook.ID == 0 {
				continue
			}
			if err := s.deps.Webhooks.MarkTriggered(ctx, hook.ID); err != nil {
				s.logger.Warn().Err(err).Int64("webhook_id", hook.ID).Msg("Failed to mark webhook triggered")
			}
		}
	}
	return report
}

// Channels resolves the notification channels for a request: the caller's
// webhooks plus their stored alert settings, falling back to the request's
// email/phone and then the configured defaults.
func (s *Service) Channels(ctx context.Context, req Request) []models.AlertChannel {
	var channels []models.AlertChannel
	var settings *models.AlertSettings

	if req.UserID != nil {
		if s.deps.Webhooks != nil {
			hooks, err := s.deps.Webhooks.ListActive(ctx, *req.UserID)
			if err != nil {
				s.logger.Warn().Err(err).Int64("user_id", *req.UserID).Msg("Failed to load webhooks")
			}
			for _, h := range hooks {
				channels = append(channels, h.Channel())
			}
		}
		if s.deps.Settings != nil {
			stored, err := s.deps.Settings.Get(ctx, *req.UserID)
			switch {
			case err == nil:
				settings = stored
			case !errors.Is(err, models.ErrNotFound):
				s.logger.Warn().Err(err).Int64("user_id", *req.UserID).Msg("Failed to load alert settings, using default targets")
			}
		}
	}

	if settings == nil {
		email := firstNonEmpty(req.NotificationEmail, s.fallback.email)
		phone := firstNonEmpty(req.NotificationPhone, s.fallback.phone)
		settings = &models.AlertSettings{
			EmailEnabled:  email != "",
			EmailAddress:  email,
			SMSEnabled:    phone != "",
			PhoneNumber:   phone,
			AlertForFire:  true,
			AlertForSmoke: true,
			MinConfidence: s.fallback.minConfidence,
		}
	}

	return append(channels, settings.Channels()...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
