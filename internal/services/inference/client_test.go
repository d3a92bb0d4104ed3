package inference

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&config.Config{
		InferenceBaseURL:      server.URL,
		InferenceAPIKey:       "test-key",
		BatchInferenceTimeout: 5 * time.Second,
	})
}

func TestClient_Detect(t *testing.T) {
	var gotPath, gotKey, gotConfidence, gotContentType, gotBody string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		gotConfidence = r.URL.Query().Get("confidence")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"time": 0.12,
			"image": {"width": 640, "height": 480},
			"predictions": [
				{"x": 10, "y": 20, "width": 30, "height": 40, "confidence": 0.82, "class": "Fire", "class_id": 0},
				{"x": 50, "y": 60, "width": 70, "height": 80, "confidence": 0.55, "class": "smoke", "class_id": 1}
			]
		}`))
	})

	result, err := client.Detect(context.Background(), Request{
		ImageBase64:   "aGVsbG8=",
		ModelID:       "fire-and-smoke-0izsi/2",
		ConfidencePct: 40,
	})
	require.NoError(t, err)

	assert.Equal(t, "/fire-and-smoke-0izsi/2", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "40", gotConfidence)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "aGVsbG8=", gotBody)

	assert.Equal(t, ProviderName, result.Provider)
	assert.Equal(t, "fire-and-smoke-0izsi/2", result.Model)
	assert.Equal(t, 2, result.Count)
	assert.True(t, result.HasFire, "class match is case-insensitive")
	assert.True(t, result.HasSmoke)
	assert.InDelta(t, 0.82, result.MaxConfidence, 1e-9)
	assert.Equal(t, 640, result.ImageWidth)
	require.NotNil(t, result.Predictions[1].ClassID)
	assert.Equal(t, 1, *result.Predictions[1].ClassID)
}

func TestClient_Detect_EmptyPredictions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions": []}`))
	})

	result, err := client.Detect(context.Background(), Request{ImageBase64: "eA==", ModelID: "m/1"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.NotNil(t, result.Predictions)
	assert.False(t, result.HasFireOrSmoke())
}

func TestClient_Detect_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"forbidden"}`))
	})

	_, err := client.Detect(context.Background(), Request{ImageBase64: "eA==", ModelID: "m/1"})
	require.Error(t, err)

	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestClient_Detect_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Detect(ctx, Request{ImageBase64: "eA==", ModelID: "m/1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_Detect_NotConfigured(t *testing.T) {
	client := NewClient(&config.Config{InferenceBaseURL: "http://127.0.0.1:0"})

	_, err := client.Detect(context.Background(), Request{ImageBase64: "eA==", ModelID: "m/1"})
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}
