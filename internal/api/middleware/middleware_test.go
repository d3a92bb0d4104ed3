package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeKeys struct {
	valid map[string]*models.APIKey
}

func (f *fakeKeys) Verify(ctx context.Context, raw string) (*models.APIKey, error) {
	if k, ok := f.valid[raw]; ok {
		return k, nil
	}
	return nil, errors.New("invalid credentials")
}

type fakeUsers struct{}

func (fakeUsers) Verify(ctx context.Context, username, password string) (*models.User, error) {
	if username == "alice" && password == "password123" {
		return &models.User{ID: 9, Username: "alice"}, nil
	}
	return nil, errors.New("invalid credentials")
}

func newKeys() *fakeKeys {
	return &fakeKeys{valid: map[string]*models.APIKey{
		"fsd_good": {ID: 4, UserID: 2},
	}}
}

func whoAmI(c *gin.Context) {
	userID, _ := UserID(c)
	keyID, _ := APIKeyID(c)
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "key_id": keyID})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logging.CtxRequestID))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = serve(r, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestRecovery_ReturnsJSON(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func TestMaxBodySize_RejectsDeclaredLength(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodySize(10))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 11))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_PerClientBudget(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients have independent buckets")

	// One token refills every 30s at 2/min
	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	rl := NewRateLimiter(5)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(idleTTL + time.Minute)
	rl.Allow("b")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	_, hasA := rl.clients["a"]
	assert.False(t, hasA)
	assert.Len(t, rl.clients, 1)
}

func TestRateLimit_Returns429(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(1)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestRequireAPIKey(t *testing.T) {
	r := gin.New()
	r.GET("/", RequireAPIKey(newKeys()), whoAmI)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key required")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "fsd_bad")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "fsd_good")
	w = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":2,"key_id":4}`, w.Body.String())

	// Query parameter is accepted too
	w = serve(r, httptest.NewRequest(http.MethodGet, "/?api_key=fsd_good", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAPIKey(t *testing.T) {
	r := gin.New()
	r.GET("/", OptionalAPIKey(newKeys()), whoAmI)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":0,"key_id":0}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "fsd_bad")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestRequireUser_BasicAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", RequireUser(newKeys(), fakeUsers{}), whoAmI)

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "password123")
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":9,"key_id":0}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "nope")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "fsd_good")
	w = serve(r, req)
	assert.JSONEq(t, `{"user_id":2,"key_id":4}`, w.Body.String())
}
