package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesmoke-api/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, store *Store, username string) *models.User {
	t.Helper()
	user, err := store.Users.Create(context.Background(), username, username+"@example.com", "password123")
	require.NoError(t, err)
	return user
}

func TestOpen_CreatesSchema(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.DB.Ping())

	// Migrations are idempotent
	assert.NoError(t, store.DB.migrate())
}

func TestUsers_CreateAndVerify(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)

	got, err := store.Users.Verify(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = store.Users.Verify(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.Users.Verify(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	fetched, err := store.Users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", fetched.Username)

	_, err = store.Users.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsers_CreateRejectsDuplicates(t *testing.T) {
	store := openTestStore(t)
	createTestUser(t, store, "alice")

	_, err := store.Users.Create(context.Background(), "alice", "other@example.com", "password123")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUsers_CreateValidation(t *testing.T) {
	store := openTestStore(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		field    string
	}{
		{"missing fields", "", "a@example.com", "password123", ""},
		{"short username", "ab", "a@example.com", "password123", "username"},
		{"short password", "alice", "a@example.com", "short", "password"},
		{"bad email", "alice", "not-an-email", "password123", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Users.Create(context.Background(), tt.username, tt.email, tt.password)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAPIKeys_GenerateVerifyList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	raw, key, err := store.APIKeys.Generate(ctx, user.ID, "camera-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "fsd_"))
	assert.Equal(t, raw[:12], key.Prefix)

	verified, err := store.APIKeys.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, key.ID, verified.ID)
	assert.Equal(t, user.ID, verified.UserID)
	require.NotNil(t, verified.LastUsed)

	_, err = store.APIKeys.Verify(ctx, raw+"x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = store.APIKeys.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	keys, err := store.APIKeys.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "camera-1", keys[0].Name)
	assert.NotNil(t, keys[0].LastUsed)

	other := createTestUser(t, store, "bob")
	keys, err = store.APIKeys.List(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDetections_RecordAndHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	result := models.NewDetectionResult([]models.Detection{
		{Class: "fire", Confidence: 0.9, X: 10, Y: 20, Width: 30, Height: 40},
		{Class: "smoke", Confidence: 0.6},
	})
	result.ProcessingTimeMs = 120
	result.ImageWidth, result.ImageHeight = 640, 480
	result.Context = &models.DetectionContext{
		Weather: &models.WeatherContext{Condition: "Clear", Temperature: 31, Humidity: 40, Visibility: 10000, City: "Bongao"},
	}

	id, err := store.Detections.Record(ctx, result, models.RecordMetadata{
		UserID:              &user.ID,
		ModelID:             "fire-and-smoke/2",
		Location:            "Warehouse",
		City:                "Bongao",
		IPAddress:           "10.0.0.1",
		ConfidenceThreshold: 40,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = store.Detections.Record(ctx, models.NewDetectionResult(nil), models.RecordMetadata{ModelID: "fire-and-smoke/2"})
	require.NoError(t, err)

	all, err := store.Detections.History(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := store.Detections.History(ctx, &user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	rec := mine[0]
	assert.Equal(t, id, rec.ID)
	assert.True(t, rec.HasFire)
	assert.True(t, rec.HasSmoke)
	assert.Equal(t, 2, rec.DetectionCount)
	assert.Equal(t, 0.9, rec.MaxConfidence)
	assert.Equal(t, "640x480", rec.ImageSize)
	assert.Equal(t, "Warehouse", rec.Location)
	require.Len(t, rec.Predictions, 2)
	assert.Equal(t, 30.0, rec.Predictions[0].Width)
	require.NotNil(t, rec.Weather)
	assert.Equal(t, "Clear", rec.Weather.Condition)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, user.ID, *rec.UserID)

	page, err := store.Detections.History(ctx, nil, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestDetections_Stats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store.Detections.now = func() time.Time { return now.AddDate(0, 0, -40) }

	old := models.NewDetectionResult([]models.Detection{{Class: "fire", Confidence: 0.5}})
	_, err := store.Detections.Record(ctx, old, models.RecordMetadata{ModelID: "m"})
	require.NoError(t, err)

	store.Detections.now = func() time.Time { return now.AddDate(0, 0, -1) }
	fire := models.NewDetectionResult([]models.Detection{{Class: "fire", Confidence: 0.8}})
	fire.ProcessingTimeMs = 100
	_, err = store.Detections.Record(ctx, fire, models.RecordMetadata{ModelID: "m"})
	require.NoError(t, err)

	store.Detections.now = func() time.Time { return now }
	smoke := models.NewDetectionResult([]models.Detection{{Class: "smoke", Confidence: 0.4}})
	smoke.ProcessingTimeMs = 200
	_, err = store.Detections.Record(ctx, smoke, models.RecordMetadata{ModelID: "m"})
	require.NoError(t, err)

	stats, err := store.Detections.Stats(ctx, nil, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDetections)
	assert.Equal(t, 1, stats.FireDetections)
	assert.Equal(t, 1, stats.SmokeDetections)
	assert.InDelta(t, 0.6, stats.AvgConfidence, 1e-9)
	assert.InDelta(t, 150.0, stats.AvgProcessingTimeMs, 1e-9)
	require.Len(t, stats.DailyDetections, 2)
	assert.Equal(t, "2025-06-09", stats.DailyDetections[0].Date)
	assert.Equal(t, "2025-06-10", stats.DailyDetections[1].Date)
}

func TestDetections_StatsEmpty(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.Detections.Stats(context.Background(), nil, 7)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDetections)
	assert.Zero(t, stats.AvgConfidence)
	assert.Empty(t, stats.DailyDetections)
}

func TestWebhooks_Lifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	hook, err := store.Webhooks.Create(ctx, alice.ID, "https://example.com/hook", "")
	require.NoError(t, err)
	assert.Equal(t, models.EventAll, hook.EventType)

	_, err = store.Webhooks.Create(ctx, alice.ID, "https://example.com/fire", models.EventFireDetected)
	require.NoError(t, err)

	hooks, err := store.Webhooks.ListActive(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	assert.Equal(t, hook.ID, hooks[0].ID)
	assert.Nil(t, hooks[0].LastTriggered)

	require.NoError(t, store.Webhooks.MarkTriggered(ctx, hook.ID))
	hooks, err = store.Webhooks.ListActive(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, hooks[0].LastTriggered)

	// Only the owner can delete
	assert.ErrorIs(t, store.Webhooks.Delete(ctx, bob.ID, hook.ID), ErrNotFound)
	require.NoError(t, store.Webhooks.Delete(ctx, alice.ID, hook.ID))
	assert.ErrorIs(t, store.Webhooks.Delete(ctx, alice.ID, hook.ID), ErrNotFound)

	hooks, err = store.Webhooks.ListActive(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, hooks, 1)
}

func TestWebhooks_Validation(t *testing.T) {
	store := openTestStore(t)
	user := createTestUser(t, store, "alice")

	var verr *ValidationError
	_, err := store.Webhooks.Create(context.Background(), user.ID, "ftp://example.com", models.EventAll)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "url", verr.Field)

	_, err = store.Webhooks.Create(context.Background(), user.ID, "https://example.com", "earthquake")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "event_type", verr.Field)
}

func TestAlertSettings_GetAndUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "alice")

	_, err := store.AlertSettings.Get(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	settings := models.AlertSettings{
		UserID:        user.ID,
		EmailEnabled:  true,
		EmailAddress:  "ops@example.com",
		AlertForFire:  true,
		AlertForSmoke: false,
		MinConfidence: 60,
	}
	require.NoError(t, store.AlertSettings.Upsert(ctx, settings))

	got, err := store.AlertSettings.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, settings, *got)

	settings.SMSEnabled = true
	settings.PhoneNumber = "+15550001111"
	settings.MinConfidence = 75
	require.NoError(t, store.AlertSettings.Upsert(ctx, settings))

	got, err = store.AlertSettings.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, settings, *got)
	assert.Len(t, got.Channels(), 2)
}

func TestAlertSettings_Validation(t *testing.T) {
	store := openTestStore(t)
	user := createTestUser(t, store, "alice")

	var verr *ValidationError
	err := store.AlertSettings.Upsert(context.Background(), models.AlertSettings{UserID: user.ID, MinConfidence: 120})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "min_confidence", verr.Field)

	err = store.AlertSettings.Upsert(context.Background(), models.AlertSettings{UserID: user.ID, SMSEnabled: true, MinConfidence: 50})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "phone_number", verr.Field)
}
