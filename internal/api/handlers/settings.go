package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/api/middleware"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/storage/sqlite"
)

// SettingsStore reads and writes per-user alert settings
type SettingsStore interface {
	Get(ctx context.Context, userID int64) (*models.AlertSettings, error)
	Upsert(ctx context.Context, settings models.AlertSettings) error
}

type SettingsHandler struct {
	store                SettingsStore
	defaultMinConfidence int
}

func NewSettingsHandler(store SettingsStore, defaultMinConfidence int) *SettingsHandler {
	return &SettingsHandler{store: store, defaultMinConfidence: defaultMinConfidence}
}

// AlertSettingsRequest updates email/SMS preferences. min_confidence is a percentage.
type AlertSettingsRequest struct {
	EmailEnabled  bool   `json:"email_enabled"`
	EmailAddress  string `json:"email_address" example:"ops@example.com"`
	SMSEnabled    bool   `json:"sms_enabled"`
	PhoneNumber   string `json:"phone_number" example:"+15550001111"`
	AlertForFire  *bool  `json:"alert_for_fire"`
	AlertForSmoke *bool  `json:"alert_for_smoke"`
	MinConfidence *int   `json:"min_confidence" example:"50"`
}

type AlertSettingsResponse struct {
	Success  bool                 `json:"success"`
	Settings models.AlertSettings `json:"settings"`
}

// GetSettings godoc
// @Summary Get alert settings
// @Description Returns the caller's email/SMS alert preferences, or the defaults when none are stored
// @Tags alerts
// @Produce json
// @Param X-API-Key header string true "API key"
// @Success 200 {object} AlertSettingsResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/alerts/settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	settings, err := h.store.Get(c.Request.Context(), userID)
	if errors.Is(err, sqlite.ErrNotFound) {
		c.JSON(http.StatusOK, AlertSettingsResponse{Success: true, Settings: h.defaults(userID)})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to load alert settings")
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, AlertSettingsResponse{Success: true, Settings: *settings})
}

// UpdateSettings godoc
// @Summary Update alert settings
// @Tags alerts
// @Accept json
// @Produce json
// @Param X-API-Key header string true "API key"
// @Param request body AlertSettingsRequest true "Alert settings"
// @Success 200 {object} AlertSettingsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/alerts/settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req AlertSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	settings := h.defaults(userID)
	settings.EmailEnabled = req.EmailEnabled
	settings.EmailAddress = req.EmailAddress
	settings.SMSEnabled = req.SMSEnabled
	settings.PhoneNumber = req.PhoneNumber
	if req.AlertForFire != nil {
		settings.AlertForFire = *req.AlertForFire
	}
	if req.AlertForSmoke != nil {
		settings.AlertForSmoke = *req.AlertForSmoke
	}
	if req.MinConfidence != nil {
		settings.MinConfidence = *req.MinConfidence
	}

	if err := h.store.Upsert(c.Request.Context(), settings); err != nil {
		storageError(c, err)
		return
	}

	logging.Info(c).
		Bool("email_enabled", settings.EmailEnabled).
		Bool("sms_enabled", settings.SMSEnabled).
		Int("min_confidence", settings.MinConfidence).
		Msg("Alert settings updated")
	c.JSON(http.StatusOK, AlertSettingsResponse{Success: true, Settings: settings})
}

func (h *SettingsHandler) defaults(userID int64) models.AlertSettings {
	return models.AlertSettings{
		UserID:        userID,
		AlertForFire:  true,
		AlertForSmoke: true,
		MinConfidence: h.defaultMinConfidence,
	}
}
