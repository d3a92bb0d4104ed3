package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/api/middleware"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
)

// WebhookStore manages webhook registrations
type WebhookStore interface {
	Create(ctx context.Context, userID int64, url, eventType string) (*models.Webhook, error)
	ListActive(ctx context.Context, userID int64) ([]models.Webhook, error)
	Delete(ctx context.Context, userID, id int64) error
}

type WebhookHandler struct {
	store WebhookStore
}

func NewWebhookHandler(store WebhookStore) *WebhookHandler {
	return &WebhookHandler{store: store}
}

type CreateWebhookRequest struct {
	URL       string `json:"url" binding:"required" example:"https://example.com/hooks/fire"`
	EventType string `json:"event_type" example:"all" enums:"all,fire_detected,smoke_detected"`
}

type WebhookResponse struct {
	Success   bool            `json:"success"`
	WebhookID int64           `json:"webhook_id"`
	Webhook   *models.Webhook `json:"webhook"`
	Message   string          `json:"message"`
}

type WebhookListResponse struct {
	Success  bool             `json:"success"`
	Webhooks []models.Webhook `json:"webhooks"`
}

// ListWebhooks godoc
// @Summary List webhooks
// @Tags webhooks
// @Produce json
// @Param X-API-Key header string true "API key"
// @Success 200 {object} WebhookListResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/webhooks [get]
func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	hooks, err := h.store.ListActive(c.Request.Context(), userID)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list webhooks")
		storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, WebhookListResponse{Success: true, Webhooks: hooks})
}

// CreateWebhook godoc
// @Summary Register a webhook
// @Description The webhook receives the detection result as JSON whenever a live detection matches its event type
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-API-Key header string true "API key"
// @Param request body CreateWebhookRequest true "Webhook"
// @Success 201 {object} WebhookResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/webhooks [post]
func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "URL required"})
		return
	}

	hook, err := h.store.Create(c.Request.Context(), userID, req.URL, req.EventType)
	if err != nil {
		storageError(c, err)
		return
	}

	logging.Info(c).Int64("webhook_id", hook.ID).Str("event_type", hook.EventType).Msg("Webhook created")
	c.JSON(http.StatusCreated, WebhookResponse{
		Success:   true,
		WebhookID: hook.ID,
		Webhook:   hook,
		Message:   "Webhook created successfully",
	})
}

// DeleteWebhook godoc
// @Summary Delete a webhook
// @Tags webhooks
// @Produce json
// @Param X-API-Key header string true "API key"
// @Param id path int true "Webhook ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/webhooks/{id} [delete]
func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid webhook id"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), userID, id); err != nil {
		storageError(c, err)
		return
	}

	logging.Info(c).Int64("webhook_id", id).Msg("Webhook deleted")
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Webhook deleted"})
}
