package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
)

// APIKeyHeader carries the caller's API key
const APIKeyHeader = "X-API-Key"

// KeyVerifier resolves a raw API key
type KeyVerifier interface {
	Verify(ctx context.Context, raw string) (*models.APIKey, error)
}

// PasswordVerifier checks username/password credentials
type PasswordVerifier interface {
	Verify(ctx context.Context, username, password string) (*models.User, error)
}

func apiKeyFrom(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	return c.Query("api_key")
}

func setKey(c *gin.Context, key *models.APIKey) {
	c.Set(logging.CtxUserID, key.UserID)
	c.Set(logging.CtxAPIKeyID, key.ID)
}

// RequireAPIKey rejects requests without a valid API key
func RequireAPIKey(keys KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := apiKeyFrom(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}
		key, err := keys.Verify(c.Request.Context(), raw)
		if err != nil {
			logging.Warn(c).Err(err).Msg("API key rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		setKey(c, key)
		c.Next()
	}
}

// OptionalAPIKey attaches the caller identity when a valid key is sent and
// lets anonymous requests through
func OptionalAPIKey(keys KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := apiKeyFrom(c)
		if raw == "" {
			c.Next()
			return
		}
		key, err := keys.Verify(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		setKey(c, key)
		c.Next()
	}
}

// RequireUser accepts either an API key or HTTP basic credentials
func RequireUser(keys KeyVerifier, users PasswordVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := apiKeyFrom(c); raw != "" {
			key, err := keys.Verify(c.Request.Context(), raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				return
			}
			setKey(c, key)
			c.Next()
			return
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated. Send an API key or basic credentials."})
			return
		}
		user, err := users.Verify(c.Request.Context(), username, password)
		if err != nil {
			logging.Warn(c).Err(err).Str("username", username).Msg("Basic auth rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.Set(logging.CtxUserID, user.ID)
		c.Next()
	}
}

// UserID returns the authenticated user id, if any
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(logging.CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}

// APIKeyID returns the authenticating key id, if any
func APIKeyID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(logging.CtxAPIKeyID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}
