package detection

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/services/inference"
	"firesmoke-api/internal/services/weather"
)

type fakeInference struct {
	predictions []models.Detection
	err         error
	hang        bool
	calls       []inference.Request
}

func (f *fakeInference) Detect(ctx context.Context, req inference.Request) (*models.DetectionResult, error) {
	f.calls = append(f.calls, req)
	if f.hang {
		<-ctx.Done()
		return nil, &models.ProviderError{Provider: "fake", Err: ctx.Err()}
	}
	if f.err != nil {
		return nil, f.err
	}
	preds := make([]models.Detection, len(f.predictions))
	copy(preds, f.predictions)
	return models.NewDetectionResult(preds), nil
}

type fakeWeather struct {
	w     *models.WeatherContext
	calls int
}

func (f *fakeWeather) Current(ctx context.Context, city string) (*models.WeatherContext, error) {
	f.calls++
	return f.w, nil
}

type fakeRecorder struct {
	results []*models.DetectionResult
	metas   []models.RecordMetadata
	err     error
}

func (f *fakeRecorder) Record(ctx context.Context, result *models.DetectionResult, meta models.RecordMetadata) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.results = append(f.results, result)
	f.metas = append(f.metas, meta)
	return int64(len(f.results)), nil
}

type fakeWebhooks struct {
	hooks     []models.Webhook
	triggered []int64
}

func (f *fakeWebhooks) ListActive(ctx context.Context, userID int64) ([]models.Webhook, error) {
	return f.hooks, nil
}

func (f *fakeWebhooks) MarkTriggered(ctx context.Context, id int64) error {
	f.triggered = append(f.triggered, id)
	return nil
}

type fakeSettings struct {
	settings *models.AlertSettings
	err      error
}

func (f *fakeSettings) Get(ctx context.Context, userID int64) (*models.AlertSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.settings == nil {
		return nil, models.ErrNotFound
	}
	return f.settings, nil
}

type fakeDispatcher struct {
	events   []models.AlertEvent
	channels [][]models.AlertChannel
	extra    int // outcomes appended beyond the channel list
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, event models.AlertEvent, channels []models.AlertChannel) models.DispatchReport {
	f.events = append(f.events, event)
	f.channels = append(f.channels, channels)
	report := models.DispatchReport{EventID: event.ID}
	for _, ch := range channels {
		report.Outcomes = append(report.Outcomes, models.ChannelOutcome{Channel: ch.Kind(), Target: ch.Target(), Status: models.OutcomeSent})
		report.Sent++
	}
	for i := 0; i < f.extra; i++ {
		report.Outcomes = append(report.Outcomes, models.ChannelOutcome{Channel: models.ChannelWebhook, Status: models.OutcomeSent})
	}
	return report
}

func testConfig() *config.Config {
	return &config.Config{
		InstanceID:             "test",
		DefaultModelID:         "fire-and-smoke/2",
		DefaultConfidencePct:   40,
		SingleInferenceTimeout: time.Second,
		LiveInferenceTimeout:   50 * time.Millisecond,
		WeatherCity:            "Bongao",
		AlertThreshold:         0.3,
		MaxImageWidth:          1920,
		MaxImageHeight:         1080,
		ImageQuality:           85,
		DefaultMinConfidence:   50,
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func foggyWeather() *models.WeatherContext {
	return &models.WeatherContext{Condition: "Fog", Humidity: 90, Visibility: 500, Temperature: 15, City: "Bongao"}
}

func noon() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc        *Service
	inference  *fakeInference
	weather    *fakeWeather
	recorder   *fakeRecorder
	webhooks   *fakeWebhooks
	settings   *fakeSettings
	dispatcher *fakeDispatcher
}

func newFixture(cfg *config.Config, preds ...models.Detection) *fixture {
	f := &fixture{
		inference:  &fakeInference{predictions: preds},
		weather:    &fakeWeather{w: foggyWeather()},
		recorder:   &fakeRecorder{},
		webhooks:   &fakeWebhooks{},
		settings:   &fakeSettings{},
		dispatcher: &fakeDispatcher{},
	}
	f.svc = NewService(cfg, Dependencies{
		Inference:  f.inference,
		Weather:    f.weather,
		Adjuster:   weather.NewAdjusterWithClock(cfg.AlertThreshold, noon),
		Recorder:   f.recorder,
		Webhooks:   f.webhooks,
		Settings:   f.settings,
		Dispatcher: f.dispatcher,
	})
	return f
}

func TestDetect_AppliesContextForUploads(t *testing.T) {
	f := newFixture(testConfig(), models.Detection{Class: "smoke", Confidence: 0.5})

	resp, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t), UseContext: true, Location: "Kitchen"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.weather.calls)
	require.NotNil(t, resp.Context)
	assert.Equal(t, "Kitchen", resp.Context.Location)
	require.NotNil(t, resp.AdjustedConfidence)
	assert.Less(t, *resp.AdjustedConfidence, 0.5)
	assert.NotEmpty(t, resp.Recommendation)
	assert.Equal(t, 8, resp.ImageWidth)
	assert.Equal(t, 6, resp.ImageHeight)

	require.Len(t, f.inference.calls, 1)
	assert.Equal(t, "fire-and-smoke/2", f.inference.calls[0].ModelID)
	assert.Equal(t, 40, f.inference.calls[0].ConfidencePct)

	// Uploads are always recorded but never dispatched
	require.Len(t, f.recorder.metas, 1)
	assert.Equal(t, "Bongao", f.recorder.metas[0].City)
	assert.Equal(t, 40.0, f.recorder.metas[0].ConfidenceThreshold)
	assert.Equal(t, int64(1), resp.RecordID)
	assert.Nil(t, resp.Dispatch)
	assert.Empty(t, f.dispatcher.events)
}

func TestDetect_WithoutContextAlertsOnClass(t *testing.T) {
	f := newFixture(testConfig(), models.Detection{Class: "Fire", Confidence: 0.2})

	resp, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t), UseContext: false})
	require.NoError(t, err)

	assert.Zero(t, f.weather.calls)
	assert.Nil(t, resp.Context)
	assert.True(t, resp.ShouldAlert())
}

func TestDetect_NoPredictionsSkipsContext(t *testing.T) {
	f := newFixture(testConfig())

	resp, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t), UseContext: true})
	require.NoError(t, err)

	assert.Zero(t, f.weather.calls)
	assert.Nil(t, resp.Alert)
	assert.Equal(t, 0, resp.Count)
	assert.Len(t, f.recorder.results, 1)
}

func TestDetect_LiveSkipsContextAndDispatches(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultAlertEmail = "ops@example.com"
	f := newFixture(cfg, models.Detection{Class: "fire", Confidence: 0.8})

	resp, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t), UseContext: true, Live: true, Location: "Gate"})
	require.NoError(t, err)

	assert.Zero(t, f.weather.calls)
	assert.True(t, resp.ShouldAlert())
	assert.Len(t, f.recorder.results, 1)

	require.Len(t, f.dispatcher.events, 1)
	assert.Equal(t, "Gate", f.dispatcher.events[0].Location)
	require.NotNil(t, resp.Dispatch)
	assert.Equal(t, 1, resp.Dispatch.Sent)

	require.Len(t, f.dispatcher.channels[0], 1)
	email, ok := f.dispatcher.channels[0][0].(models.EmailChannel)
	require.True(t, ok)
	assert.Equal(t, "ops@example.com", email.Address)
	assert.Equal(t, 0.5, email.MinConfidence)
}

func TestDetect_LiveWithoutDetectionsIsNotRecorded(t *testing.T) {
	f := newFixture(testConfig())

	resp, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t), Live: true})
	require.NoError(t, err)

	assert.Empty(t, f.recorder.results)
	assert.Empty(t, f.dispatcher.events)
	assert.Zero(t, resp.RecordID)
	assert.Nil(t, resp.Dispatch)
}

func TestDetect_RecorderFailureDoesNotFailDetection(t *testing.T) {
	f := newFixture(testConfig(), models.Detection{Class: "smoke", Confidence: 0.6})
	f.recorder.err = errors.New("disk full")

	resp, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t)})
	require.NoError(t, err)
	assert.Zero(t, resp.RecordID)
	assert.True(t, resp.HasSmoke)
}

func TestDetect_LiveTimeout(t *testing.T) {
	f := newFixture(testConfig())
	f.inference.hang = true

	_, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t), Live: true})
	assert.ErrorIs(t, err, ErrInferenceTimeout)
}

func TestDetect_InvalidImage(t *testing.T) {
	f := newFixture(testConfig())

	_, err := f.svc.Detect(context.Background(), Request{Image: []byte("not an image")})
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Empty(t, f.inference.calls)
}

func TestDetect_ProviderErrorPropagates(t *testing.T) {
	f := newFixture(testConfig())
	f.inference.err = &models.ProviderError{Provider: "roboflow", StatusCode: 403, Err: errors.New("forbidden")}

	_, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t)})
	var perr *models.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 403, perr.StatusCode)
}

func TestChannels_StoredSettingsAndWebhooks(t *testing.T) {
	f := newFixture(testConfig(), models.Detection{Class: "fire", Confidence: 0.9})
	userID := int64(7)
	f.webhooks.hooks = []models.Webhook{{ID: 3, URL: "https://example.com/hook", EventType: models.EventAll}}
	f.settings.settings = &models.AlertSettings{
		UserID:        userID,
		SMSEnabled:    true,
		PhoneNumber:   "+15550001111",
		AlertForFire:  true,
		MinConfidence: 70,
	}

	resp, err := f.svc.Detect(context.Background(), Request{
		Image:             pngBytes(t),
		Live:              true,
		UserID:            &userID,
		NotificationEmail: "ignored@example.com",
	})
	require.NoError(t, err)

	channels := f.dispatcher.channels[0]
	require.Len(t, channels, 2)
	assert.Equal(t, models.ChannelWebhook, channels[0].Kind())
	sms, ok := channels[1].(models.SMSChannel)
	require.True(t, ok)
	assert.Equal(t, 0.7, sms.MinConfidence)

	assert.Equal(t, []int64{3}, f.webhooks.triggered)
	assert.Equal(t, 2, resp.Dispatch.Sent)
}

func TestChannels_RequestTargetsBeatDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultAlertEmail = "default@example.com"
	cfg.DefaultAlertPhone = "+15559999999"
	f := newFixture(cfg)

	channels := f.svc.Channels(context.Background(), Request{NotificationEmail: "me@example.com"})
	require.Len(t, channels, 2)
	assert.Equal(t, "me@example.com", channels[0].Target())
	assert.Equal(t, "+15559999999", channels[1].Target())
}

func TestChannels_NoTargets(t *testing.T) {
	f := newFixture(testConfig())
	assert.Empty(t, f.svc.Channels(context.Background(), Request{}))
}

func TestChannels_SettingsStoreFailureIsLogged(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultAlertEmail = "default@example.com"
	f := newFixture(cfg)
	f.settings.err = errors.New("database is locked")

	var buf bytes.Buffer
	f.svc.logger = zerolog.New(&buf)

	userID := int64(7)
	channels := f.svc.Channels(context.Background(), Request{UserID: &userID})
	require.Len(t, channels, 1)
	assert.Equal(t, "default@example.com", channels[0].Target())
	assert.Contains(t, buf.String(), "database is locked")
	assert.Contains(t, buf.String(), "Failed to load alert settings")
}

func TestChannels_MissingSettingsIsQuiet(t *testing.T) {
	f := newFixture(testConfig())

	var buf bytes.Buffer
	f.svc.logger = zerolog.New(&buf)

	userID := int64(7)
	f.svc.Channels(context.Background(), Request{UserID: &userID, NotificationEmail: "me@example.com"})
	assert.Empty(t, buf.String())
}

func TestDetect_ExtraDispatchOutcomesAreIgnored(t *testing.T) {
	f := newFixture(testConfig(), models.Detection{Class: "fire", Confidence: 0.9})
	userID := int64(7)
	f.webhooks.hooks = []models.Webhook{{ID: 5, URL: "https://example.com/hook", EventType: models.EventAll}}
	f.dispatcher.extra = 2

	resp, err := f.svc.Detect(context.Background(), Request{Image: pngBytes(t), Live: true, UserID: &userID})
	require.NoError(t, err)

	assert.Len(t, resp.Dispatch.Outcomes, 3)
	assert.Equal(t, []int64{5}, f.webhooks.triggered)
}
