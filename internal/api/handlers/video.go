package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/services/frames"
	"firesmoke-api/internal/services/video"
)

// VideoRunner runs the video pipeline
type VideoRunner interface {
	DetectVideo(ctx context.Context, src frames.Source, opts video.Options) (*models.VideoResult, error)
}

type VideoHandler struct {
	cfg      *config.Config
	pipeline VideoRunner
}

func NewVideoHandler(cfg *config.Config, pipeline VideoRunner) *VideoHandler {
	return &VideoHandler{
		cfg:      cfg,
		pipeline: pipeline,
	}
}

// framesLimit is the most frames one request may sample
func (h *VideoHandler) framesLimit() int {
	if h.cfg.VideoFramesLimit > 0 {
		return h.cfg.VideoFramesLimit
	}
	return h.cfg.VideoMaxFrames
}

// DetectVideo godoc
// @Summary Detect fire and smoke in a video
// @Description Samples frames from an uploaded video at the requested rate and runs batch detection over them
// @Tags detection
// @Accept mpfd
// @Produce json
// @Param video formData file true "Video file (mp4, avi, mov)"
// @Param model_id formData string false "Model ID"
// @Param confidence formData int false "Provider confidence threshold (percent)"
// @Param fps formData int false "Frames to sample per second of video (default: 1)"
// @Param max_frames formData int false "Maximum frames to analyze (default: 30, capped at VIDEO_MAX_FRAMES_LIMIT)"
// @Success 200 {object} models.VideoResult
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/detect/video [post]
func (h *VideoHandler) DetectVideo(c *gin.Context) {
	if h.cfg.InferenceAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Inference API key not configured"})
		return
	}

	file, err := c.FormFile("video")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No video file provided"})
		return
	}
	ext := fileExt(file.Filename)
	if !videoExtensions[ext] {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unsupported video format"})
		return
	}

	confidence, ok1 := formInt(c, "confidence", 0)
	fps, ok2 := formInt(c, "fps", h.cfg.VideoTargetFPS)
	maxFrames, ok3 := formInt(c, "max_frames", h.cfg.VideoMaxFrames)
	if !ok1 || !ok2 || !ok3 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "confidence, fps and max_frames must be integers"})
		return
	}
	if fps <= 0 || maxFrames <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fps and max_frames must be positive"})
		return
	}
	if limit := h.framesLimit(); maxFrames > limit {
		logging.Debug(c).Int("requested", maxFrames).Int("limit", limit).Msg("Clamping max_frames")
		maxFrames = limit
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read upload"})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read upload"})
		return
	}

	result, err := h.pipeline.DetectVideo(c.Request.Context(), frames.Source{Data: data, Ext: ext}, video.Options{
		ModelID:       c.PostForm("model_id"),
		ConfidencePct: confidence,
		TargetFPS:     fps,
		MaxFrames:     maxFrames,
	})
	if err != nil {
		if errors.Is(err, models.ErrSourceUnreadable) {
			logging.Warn(c).Err(err).Str("filename", file.Filename).Msg("Uploaded video is unreadable")
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "Could not read video", Details: err.Error()})
			return
		}
		logging.Error(c).Err(err).Msg("Video detection failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	logging.Info(c).
		Str("filename", file.Filename).
		Int64("size_bytes", file.Size).
		Int("frames", result.FramesAnalyzed).
		Bool("success", result.Success).
		Msg("Video processed")

	c.JSON(http.StatusOK, result)
}
