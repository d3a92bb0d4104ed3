package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/storage/sqlite"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error" example:"Invalid API key"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is returned by endpoints with nothing else to report
type SuccessResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty"`
}

var (
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".bmp": true, ".tiff": true, ".webp": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".avi": true, ".mov": true,
	}
)

func fileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// parseBool accepts the usual truthy strings; empty returns def
func parseBool(value string, def bool) bool {
	if value == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return def
	}
	return b
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.PostForm(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// storageError maps repository errors to HTTP responses
func storageError(c *gin.Context, err error) {
	var verr *sqlite.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Message})
	case errors.Is(err, sqlite.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
	case errors.Is(err, sqlite.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Username or email already exists"})
	case errors.Is(err, sqlite.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid credentials"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
