package video

import (
	"context"

	"github.com/rs/zerolog"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/helpers"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/services/batch"
	"firesmoke-api/internal/services/frames"
)

// FrameSampler extracts frames from a video source
type FrameSampler interface {
	Sample(ctx context.Context, src frames.Source, targetFps, maxFrames int) ([]frames.Frame, error)
}

// BatchDetector runs detection over a set of images
type BatchDetector interface {
	DetectBatch(ctx context.Context, items []batch.ImageInput, opts batch.Options) []models.BatchItemResult
}

// Options control one video run. Zero values use the configured defaults.
type Options struct {
	ModelID       string
	ConfidencePct int
	TargetFPS     int
	MaxFrames     int
}

// Pipeline samples a video and runs batch detection over the frames
type Pipeline struct {
	sampler      FrameSampler
	detector     BatchDetector
	targetFPS    int
	maxFrames    int
	frameQuality int
	logger       zerolog.Logger
}

// NewPipeline creates a video pipeline
func NewPipeline(cfg *config.Config, sampler FrameSampler, detector BatchDetector) *Pipeline {
	quality := cfg.FrameImageQuality
	if quality <= 0 || quality > 100 {
		quality = helpers.FrameQuality
	}
	return &Pipeline{
		sampler:      sampler,
		detector:     detector,
		targetFPS:    cfg.VideoTargetFPS,
		maxFrames:    cfg.VideoMaxFrames,
		frameQuality: quality,
		logger:       logging.NewServiceLogger(cfg, "video"),
	}
}

// DetectVideo samples src and detects fire/smoke in every kept frame. An
// unreadable source is returned as an error; a readable source with no
// frames yields an unsuccessful result without running detection.
func (p *Pipeline) DetectVideo(ctx context.Context, src frames.Source, opts Options) (*models.VideoResult, error) {
	if opts.TargetFPS <= 0 {
		opts.TargetFPS = p.targetFPS
	}
	if opts.TargetFPS <= 0 {
		opts.TargetFPS = 1
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = p.maxFrames
	}

	sampled, err := p.sampler.Sample(ctx, src, opts.TargetFPS, opts.MaxFrames)
	if err != nil {
		return nil, err
	}
	if len(sampled) == 0 {
		p.logger.Warn().Msg("Video produced no frames")
		return &models.VideoResult{
			Success: false,
			Error:   models.ErrNoFrames.Error(),
		}, nil
	}

	items := make([]batch.ImageInput, len(sampled))
	for i, f := range sampled {
		items[i] = batch.ImageInput{Image: f.Image}
	}

	results := p.detector.DetectBatch(ctx, items, batch.Options{
		ModelID:       opts.ModelID,
		ConfidencePct: opts.ConfidencePct,
	})
	summary := batch.AnalyzeBatchResults(results)

	timeline := make([]models.TimelineEntry, 0, len(results))
	for _, r := range results {
		if !r.Success || r.DetectionResult == nil {
			continue
		}

		entry := models.TimelineEntry{
			Frame:            r.Index + 1,
			TimestampSeconds: float64(r.Index) / float64(opts.TargetFPS),
			HasFire:          r.HasFire,
			HasSmoke:         r.HasSmoke,
			DetectionCount:   r.Count,
			Predictions:      r.Predictions,
		}
		if r.Count > 0 && r.Index < len(sampled) {
			encoded, err := helpers.EncodeBase64JPEG(sampled[r.Index].Image, p.frameQuality)
			if err != nil {
				p.logger.Warn().Err(err).Int("frame", entry.Frame).Msg("Failed to encode timeline frame")
			} else {
				entry.ImageBase64 = encoded
			}
		}
		timeline = append(timeline, entry)
	}

	p.logger.Info().
		Int("frames", len(sampled)).
		Int("fire_frames", summary.FireDetectedCount).
		Int("smoke_frames", summary.SmokeDetectedCount).
		Int("failed", summary.Failed).
		Msg("Video detection completed")

	return &models.VideoResult{
		Success:         true,
		FramesAnalyzed:  len(sampled),
		Summary:         &summary,
		Timeline:        timeline,
		DetailedResults: results,
	}, nil
}
