package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/api/middleware"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	defaultStatsDays    = 30
)

// HistoryStore reads the detection log
type HistoryStore interface {
	History(ctx context.Context, userID *int64, limit, offset int) ([]models.DetectionRecord, error)
	Stats(ctx context.Context, userID *int64, days int) (*models.DetectionStats, error)
}

type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

type HistoryResponse struct {
	Success bool                     `json:"success"`
	Count   int                      `json:"count"`
	History []models.DetectionRecord `json:"history"`
}

type AnalyticsResponse struct {
	Success    bool                   `json:"success"`
	PeriodDays int                    `json:"period_days"`
	Statistics *models.DetectionStats `json:"statistics"`
}

// GetHistory godoc
// @Summary Detection history
// @Description List the caller's recorded detections, newest first
// @Tags history
// @Produce json
// @Param X-API-Key header string true "API key"
// @Param limit query int false "Maximum records (default: 100)"
// @Param offset query int false "Records to skip (default: 0)"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/history [get]
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	limit, ok1 := queryInt(c, "limit", defaultHistoryLimit)
	offset, ok2 := queryInt(c, "offset", 0)
	if !ok1 || !ok2 || limit < 0 || offset < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit and offset must be non-negative integers"})
		return
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := h.store.History(c.Request.Context(), &userID, limit, offset)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to fetch detection history")
		storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Success: true,
		Count:   len(records),
		History: records,
	})
}

// GetAnalytics godoc
// @Summary Detection analytics
// @Description Aggregate statistics over the caller's detections
// @Tags history
// @Produce json
// @Param X-API-Key header string true "API key"
// @Param days query int false "Window in days (default: 30)"
// @Success 200 {object} AnalyticsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/analytics [get]
func (h *HistoryHandler) GetAnalytics(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	days, ok := queryInt(c, "days", defaultStatsDays)
	if !ok || days <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "days must be a positive integer"})
		return
	}

	stats, err := h.store.Stats(c.Request.Context(), &userID, days)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to aggregate detections")
		storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, AnalyticsResponse{
		Success:    true,
		PeriodDays: days,
		Statistics: stats,
	})
}
