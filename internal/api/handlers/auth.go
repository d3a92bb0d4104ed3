package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/api/middleware"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
)

const defaultKeyName = "Default Key"

// UserStore manages accounts
type UserStore interface {
	Create(ctx context.Context, username, email, password string) (*models.User, error)
	Verify(ctx context.Context, username, password string) (*models.User, error)
}

// KeyStore issues and lists API keys
type KeyStore interface {
	Generate(ctx context.Context, userID int64, name string) (string, *models.APIKey, error)
	List(ctx context.Context, userID int64) ([]models.APIKey, error)
}

type AuthHandler struct {
	users UserStore
	keys  KeyStore
}

func NewAuthHandler(users UserStore, keys KeyStore) *AuthHandler {
	return &AuthHandler{users: users, keys: keys}
}

type RegisterRequest struct {
	Username string `json:"username" example:"operator"`
	Email    string `json:"email" example:"operator@example.com"`
	Password string `json:"password" example:"correct-horse-battery"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	UserID  int64  `json:"user_id"`
	APIKey  string `json:"api_key"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username" example:"operator"`
	Password string `json:"password" example:"correct-horse-battery"`
}

type LoginResponse struct {
	Success bool            `json:"success"`
	User    *models.User    `json:"user"`
	Keys    []models.APIKey `json:"keys"`
}

type CreateKeyRequest struct {
	Name string `json:"name" example:"Warehouse camera"`
}

type CreateKeyResponse struct {
	Success bool           `json:"success"`
	APIKey  string         `json:"api_key"`
	Key     *models.APIKey `json:"key"`
	Message string         `json:"message"`
}

type KeyListResponse struct {
	Success bool            `json:"success"`
	Keys    []models.APIKey `json:"keys"`
}

// Register godoc
// @Summary Register a user
// @Description Creates an account and returns its first API key. The raw key is only shown once.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		storageError(c, err)
		return
	}

	raw, _, err := h.keys.Generate(c.Request.Context(), user.ID, defaultKeyName)
	if err != nil {
		logging.Error(c).Err(err).Int64("user_id", user.ID).Msg("Failed to issue initial API key")
		storageError(c, err)
		return
	}

	logging.Info(c).Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	c.JSON(http.StatusCreated, RegisterResponse{
		Success: true,
		UserID:  user.ID,
		APIKey:  raw,
		Message: "User registered successfully. Save your API key!",
	})
}

// Login godoc
// @Summary Verify credentials
// @Description Checks a username and password and lists the account's API keys. No session is created; send an API key or basic credentials on later requests.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	user, err := h.users.Verify(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		storageError(c, err)
		return
	}

	keys, err := h.keys.List(c.Request.Context(), user.ID)
	if err != nil {
		logging.Error(c).Err(err).Int64("user_id", user.ID).Msg("Failed to list API keys")
		storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Success: true, User: user, Keys: keys})
}

// ListKeys godoc
// @Summary List API keys
// @Tags auth
// @Produce json
// @Security BasicAuth
// @Param X-API-Key header string false "API key"
// @Success 200 {object} KeyListResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/keys [get]
func (h *AuthHandler) ListKeys(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	keys, err := h.keys.List(c.Request.Context(), userID)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list API keys")
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, KeyListResponse{Success: true, Keys: keys})
}

// CreateKey godoc
// @Summary Generate an API key
// @Description The raw key is only returned once
// @Tags auth
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param X-API-Key header string false "API key"
// @Param request body CreateKeyRequest false "Key name"
// @Success 201 {object} CreateKeyResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/keys [post]
func (h *AuthHandler) CreateKey(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req CreateKeyRequest
	// An empty body is allowed
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if req.Name == "" {
		req.Name = "API Key"
	}

	raw, key, err := h.keys.Generate(c.Request.Context(), userID, req.Name)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to generate API key")
		storageError(c, err)
		return
	}

	logging.Info(c).Int64("key_id", key.ID).Msg("API key generated")
	c.JSON(http.StatusCreated, CreateKeyResponse{
		Success: true,
		APIKey:  raw,
		Key:     key,
		Message: "API key generated. Save it securely!",
	})
}
