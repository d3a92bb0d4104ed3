package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/storage/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// asUser mimics the auth middleware for routes under test
func asUser(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(logging.CtxUserID, userID)
		c.Next()
	}
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_RegisterLoginAndKeys(t *testing.T) {
	store := openStore(t)
	h := NewAuthHandler(store.Users, store.APIKeys)

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	w := do(r, http.MethodPost, "/register", gin.H{"username": "op", "email": "op@example.com", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "short username")

	w = do(r, http.MethodPost, "/register", gin.H{"username": "operator", "email": "op@example.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)
	var reg RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.True(t, reg.Success)
	assert.Contains(t, reg.APIKey, "fsd_")

	key, err := store.APIKeys.Verify(context.Background(), reg.APIKey)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, key.UserID)

	w = do(r, http.MethodPost, "/register", gin.H{"username": "operator", "email": "other@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/login", gin.H{"username": "operator", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/login", gin.H{"username": "operator"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/login", gin.H{"username": "operator", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, "operator", login.User.Username)
	require.Len(t, login.Keys, 1)
	assert.Equal(t, defaultKeyName, login.Keys[0].Name)
	assert.NotContains(t, w.Body.String(), "password_hash")

	keys := gin.New()
	keys.Use(asUser(reg.UserID))
	keys.GET("/keys", h.ListKeys)
	keys.POST("/keys", h.CreateKey)

	w = do(keys, http.MethodPost, "/keys", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "API Key", created.Key.Name)

	req := httptest.NewRequest(http.MethodPost, "/keys", bytes.NewBufferString(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	keys.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "malformed body is rejected")

	w = do(keys, http.MethodGet, "/keys", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list KeyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Keys, 2)
}

func TestWebhooks_CRUD(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	owner, err := store.Users.Create(ctx, "owner", "owner@example.com", "password123")
	require.NoError(t, err)
	other, err := store.Users.Create(ctx, "other", "other@example.com", "password123")
	require.NoError(t, err)

	h := NewWebhookHandler(store.Webhooks)
	router := func(userID int64) *gin.Engine {
		r := gin.New()
		r.Use(asUser(userID))
		r.GET("/webhooks", h.ListWebhooks)
		r.POST("/webhooks", h.CreateWebhook)
		r.DELETE("/webhooks/:id", h.DeleteWebhook)
		return r
	}
	r := router(owner.ID)

	w := do(r, http.MethodPost, "/webhooks", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/webhooks", gin.H{"url": "ftp://example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/webhooks", gin.H{"url": "https://example.com/hook", "event_type": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/webhooks", gin.H{"url": "https://example.com/hook"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.EventAll, created.Webhook.EventType)

	w = do(r, http.MethodGet, "/webhooks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list WebhookListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Webhooks, 1)

	path := "/webhooks/" + jsonNumber(created.WebhookID)
	w = do(router(other.ID), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "only the owner can delete")

	w = do(r, http.MethodDelete, "/webhooks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/webhooks", nil)
	assert.JSONEq(t, `{"success":true,"webhooks":[]}`, w.Body.String())
}

func TestSettings_DefaultsAndUpdate(t *testing.T) {
	store := openStore(t)
	user, err := store.Users.Create(context.Background(), "settings", "settings@example.com", "password123")
	require.NoError(t, err)

	h := NewSettingsHandler(store.AlertSettings, 50)
	r := gin.New()
	r.Use(asUser(user.ID))
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)

	w := do(r, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got AlertSettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 50, got.Settings.MinConfidence)
	assert.True(t, got.Settings.AlertForFire)
	assert.False(t, got.Settings.EmailEnabled)

	w = do(r, http.MethodPut, "/settings", gin.H{"email_enabled": true})
	assert.Equal(t, http.StatusBadRequest, w.Code, "email address required")

	w = do(r, http.MethodPut, "/settings", gin.H{"min_confidence": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/settings", gin.H{
		"email_enabled":   true,
		"email_address":   "ops@example.com",
		"alert_for_smoke": false,
		"min_confidence":  70,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/settings", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.AlertSettings{
		UserID:        user.ID,
		EmailEnabled:  true,
		EmailAddress:  "ops@example.com",
		AlertForFire:  true,
		AlertForSmoke: false,
		MinConfidence: 70,
	}, got.Settings)
}

func TestHistory_ValidatesPaging(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	user, err := store.Users.Create(ctx, "history", "history@example.com", "password123")
	require.NoError(t, err)

	uid := user.ID
	for i := 0; i < 3; i++ {
		result := models.NewDetectionResult([]models.Detection{{Class: "fire", Confidence: 0.9}})
		_, err := store.Detections.Record(ctx, result, models.RecordMetadata{UserID: &uid, ModelID: "m/1"})
		require.NoError(t, err)
	}

	h := NewHistoryHandler(store.Detections)
	r := gin.New()
	r.Use(asUser(user.ID))
	r.GET("/history", h.GetHistory)
	r.GET("/analytics", h.GetAnalytics)

	w := do(r, http.MethodGet, "/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/history?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Equal(t, 2, hist.Count)

	w = do(r, http.MethodGet, "/analytics?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats AnalyticsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 30, stats.PeriodDays)
	assert.Equal(t, 3, stats.Statistics.TotalDetections)
	assert.Equal(t, 3, stats.Statistics.FireDetections)
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
