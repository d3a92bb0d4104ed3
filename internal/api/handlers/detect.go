package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/api/middleware"
	"firesmoke-api/internal/config"
	"firesmoke-api/internal/helpers"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/services/batch"
	"firesmoke-api/internal/services/detection"
)

// Detector runs the single-image detection flow
type Detector interface {
	Detect(ctx context.Context, req detection.Request) (*detection.Response, error)
}

// BatchRunner runs detection over many images
type BatchRunner interface {
	DetectBatch(ctx context.Context, items []batch.ImageInput, opts batch.Options) []models.BatchItemResult
}

type DetectHandler struct {
	cfg      *config.Config
	detector Detector
	batch    BatchRunner
}

func NewDetectHandler(cfg *config.Config, detector Detector, batchRunner BatchRunner) *DetectHandler {
	return &DetectHandler{cfg: cfg, detector: detector, batch: batchRunner}
}

// DetectRequest is the JSON form of a single detection
type DetectRequest struct {
	Image             string `json:"image" example:"data:image/jpeg;base64,/9j/4AAQ..."`
	ModelID           string `json:"model_id" example:"fire-and-smoke-0izsi/2"`
	Confidence        int    `json:"confidence" example:"40"`
	UseContext        *bool  `json:"use_context"`
	IsWebcam          bool   `json:"is_webcam"`
	Live              bool   `json:"live"`
	Location          string `json:"location" example:"Warehouse A"`
	City              string `json:"city" example:"Bongao"`
	NotificationEmail string `json:"notification_email"`
	NotificationPhone string `json:"notification_phone"`
}

// TimeoutResponse keeps live clients polling when the provider is slow
type TimeoutResponse struct {
	Error       string             `json:"error" example:"Inference timeout"`
	Predictions []models.Detection `json:"predictions"`
	Count       int                `json:"count"`
}

// BatchRequest is a batch of base64 images
type BatchRequest struct {
	Images     []string `json:"images"`
	ModelID    string   `json:"model_id" example:"fire-and-smoke-0izsi/2"`
	Confidence int      `json:"confidence" example:"40"`
	MaxWorkers int      `json:"max_workers" example:"5"`
}

type BatchResponse struct {
	Success bool                     `json:"success"`
	Summary models.BatchSummary      `json:"summary"`
	Results []models.BatchItemResult `json:"results"`
}

func (h *DetectHandler) inferenceReady(c *gin.Context) bool {
	if h.cfg.InferenceAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Inference API key not configured"})
		return false
	}
	return true
}

func (h *DetectHandler) withCaller(c *gin.Context, req *detection.Request) {
	if id, ok := middleware.UserID(c); ok {
		req.UserID = &id
	}
	if id, ok := middleware.APIKeyID(c); ok {
		req.APIKeyID = &id
	}
	req.IPAddress = c.ClientIP()
}

func (h *DetectHandler) parseMultipart(c *gin.Context) (*detection.Request, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image provided"})
		return nil, false
	}
	if file.Filename == "" || !imageExtensions[fileExt(file.Filename)] {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid file"})
		return nil, false
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid file"})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read upload"})
		return nil, false
	}

	confidence, ok := formInt(c, "confidence", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "confidence must be an integer"})
		return nil, false
	}

	return &detection.Request{
		Image:             data,
		ModelID:           c.PostForm("model_id"),
		ConfidencePct:     confidence,
		UseContext:        parseBool(c.PostForm("use_context"), true),
		Live:              parseBool(c.PostForm("is_webcam"), false) || parseBool(c.PostForm("live"), false),
		Location:          c.PostForm("location"),
		City:              c.PostForm("city"),
		NotificationEmail: c.PostForm("notification_email"),
		NotificationPhone: c.PostForm("notification_phone"),
	}, true
}

func (h *DetectHandler) parseJSON(c *gin.Context) (*detection.Request, bool) {
	var body DetectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return nil, false
	}
	if body.Image == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image provided"})
		return nil, false
	}

	data, err := helpers.DecodeBase64Image(body.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid image", Details: err.Error()})
		return nil, false
	}

	useContext := true
	if body.UseContext != nil {
		useContext = *body.UseContext
	}

	return &detection.Request{
		Image:             data,
		ModelID:           body.ModelID,
		ConfidencePct:     body.Confidence,
		UseContext:        useContext,
		Live:              body.IsWebcam || body.Live,
		Location:          body.Location,
		City:              body.City,
		NotificationEmail: body.NotificationEmail,
		NotificationPhone: body.NotificationPhone,
	}, true
}

// Detect godoc
// @Summary Detect fire and smoke in one image
// @Description Accepts a multipart "file" upload or a JSON body with a base64 image. Uploads get weather/time/location context; live (webcam) requests skip context and trigger alerts.
// @Tags detection
// @Accept json,mpfd
// @Produce json
// @Param X-API-Key header string false "API key"
// @Param request body DetectRequest false "JSON detection request"
// @Param file formData file false "Image file"
// @Success 200 {object} detection.Response
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/detect [post]
func (h *DetectHandler) Detect(c *gin.Context) {
	if !h.inferenceReady(c) {
		return
	}

	var (
		req *detection.Request
		ok  bool
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, ok = h.parseMultipart(c)
	} else {
		req, ok = h.parseJSON(c)
	}
	if !ok {
		return
	}
	h.withCaller(c, req)

	resp, err := h.detector.Detect(c.Request.Context(), *req)
	if err != nil {
		h.detectError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *DetectHandler) detectError(c *gin.Context, err error) {
	var perr *models.ProviderError
	switch {
	case errors.Is(err, detection.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid image", Details: err.Error()})
	case errors.Is(err, detection.ErrInferenceTimeout):
		logging.Warn(c).Err(err).Msg("Inference timed out")
		c.JSON(http.StatusOK, TimeoutResponse{Error: "Inference timeout", Predictions: []models.Detection{}})
	case errors.Is(err, models.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Inference API key not configured"})
	case errors.As(err, &perr) && perr.StatusCode != 0:
		logging.Warn(c).Err(err).Int("status_code", perr.StatusCode).Msg("Inference provider rejected request")
		c.JSON(perr.StatusCode, ErrorResponse{Error: "Inference provider error", Details: perr.Err.Error()})
	case errors.As(err, &perr):
		logging.Warn(c).Err(err).Msg("Inference provider unreachable")
		c.JSON(http.StatusOK, TimeoutResponse{Error: "Inference provider error", Predictions: []models.Detection{}})
	default:
		logging.Error(c).Err(err).Msg("Detection failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// DetectBatch godoc
// @Summary Detect fire and smoke in a batch of images
// @Description Runs detection over base64 images in parallel. Item failures are reported per item and never fail the batch.
// @Tags detection
// @Accept json
// @Produce json
// @Param request body BatchRequest true "Batch request"
// @Success 200 {object} BatchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/detect/batch [post]
func (h *DetectHandler) DetectBatch(c *gin.Context) {
	if !h.inferenceReady(c) {
		return
	}

	var body BatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if len(body.Images) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No images provided"})
		return
	}
	if h.cfg.MaxBatchImages > 0 && len(body.Images) > h.cfg.MaxBatchImages {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Too many images in batch"})
		return
	}

	// Undecodable entries stay in the batch and fail individually
	items := make([]batch.ImageInput, len(body.Images))
	for i, encoded := range body.Images {
		data, err := helpers.DecodeBase64Image(encoded)
		if err != nil {
			logging.Debug(c).Err(err).Int("index", i).Msg("Batch image is not valid base64")
		}
		items[i] = batch.ImageInput{Data: data, Err: err}
	}

	workers := body.MaxWorkers
	if workers > h.cfg.MaxWorkers {
		workers = h.cfg.MaxWorkers
	}

	results := h.batch.DetectBatch(c.Request.Context(), items, batch.Options{
		ModelID:       body.ModelID,
		ConfidencePct: body.Confidence,
		MaxWorkers:    workers,
	})

	c.JSON(http.StatusOK, BatchResponse{
		Success: true,
		Summary: batch.AnalyzeBatchResults(results),
		Results: results,
	})
}
