package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
)

// DefaultMaxFrames caps sampling when the caller passes no limit
const DefaultMaxFrames = 30

// Frame is one kept video frame. Index is the position among kept frames.
type Frame struct {
	Index int
	Image *image.RGBA
}

// Source is a video to sample: either a path/URI or the raw file bytes
type Source struct {
	Path string
	Data []byte
	Ext  string // file extension used for the temp file when Data is set
}

// FrameReader yields decoded RGBA frames in stream order. Read returns io.EOF
// at end of stream.
type FrameReader interface {
	FPS() float64
	Read() (*image.RGBA, error)
	Close() error
}

// Opener opens a FrameReader for a local path or stream URI. It returns an
// error wrapping models.ErrSourceUnreadable when the source cannot be opened.
type Opener func(path string) (FrameReader, error)

// Sampler extracts evenly spaced frames from a video
type Sampler struct {
	open    Opener
	tempDir string
}

// NewSampler creates a sampler backed by OpenCV
func NewSampler(cfg *config.Config) *Sampler {
	return NewSamplerWithOpener(OpenCapture, cfg.VideoTempDir)
}

// NewSamplerWithOpener creates a sampler with a custom reader factory
func NewSamplerWithOpener(open Opener, tempDir string) *Sampler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Sampler{open: open, tempDir: tempDir}
}

// FrameInterval returns round(sourceFps/targetFps), at least 1
func FrameInterval(sourceFps float64, targetFps int) int {
	if sourceFps <= 0 || targetFps <= 0 || math.IsNaN(sourceFps) || math.IsInf(sourceFps, 0) {
		return 1
	}
	interval := int(math.Round(sourceFps / float64(targetFps)))
	if interval < 1 {
		return 1
	}
	return interval
}

// Sample keeps every interval-th decoded frame until maxFrames are kept or
// the stream ends. A readable stream with no frames yields an empty slice and
// a nil error.
func (s *Sampler) Sample(ctx context.Context, src Source, targetFps, maxFrames int) ([]Frame, error) {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}

	path := src.Path
	if len(src.Data) > 0 {
		tmp, cleanup, err := s.writeTemp(src)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = tmp
	}
	if path == "" {
		return nil, fmt.Errorf("empty video source: %w", models.ErrSourceUnreadable)
	}

	reader, err := s.open(path)
	if err != nil {
		if errors.Is(err, models.ErrSourceUnreadable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnreadable, err)
	}
	defer reader.Close()

	sourceFps := reader.FPS()
	interval := FrameInterval(sourceFps, targetFps)

	frames := make([]Frame, 0, maxFrames)
	decoded := 0
	for len(frames) < maxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("decoded", decoded).Msg("Stopping frame sampling after read error")
			break
		}

		if decoded%interval == 0 {
			frames = append(frames, Frame{Index: len(frames), Image: img})
		}
		decoded++
	}

	log.Debug().
		Float64("source_fps", sourceFps).
		Int("target_fps", targetFps).
		Int("interval", interval).
		Int("decoded", decoded).
		Int("kept", len(frames)).
		Msg("Video frames sampled")

	return frames, nil
}

func (s *Sampler) writeTemp(src Source) (string, func(), error) {
	ext := src.Ext
	if ext == "" {
		ext = ".mp4"
	}
	f, err := os.CreateTemp(s.tempDir, "video-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp video file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", f.Name()).Msg("Failed to remove temp video file")
		}
	}

	if _, err := f.Write(src.Data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp video file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp video file: %w", err)
	}
	return f.Name(), cleanup, nil
}
