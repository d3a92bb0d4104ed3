package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/helpers"
	"firesmoke-api/internal/logging"
	"firesmoke-api/internal/models"
	"firesmoke-api/internal/services/inference"
)

// ImageInput is one batch item: either encoded bytes or an already decoded
// image (video frames)
type ImageInput struct {
	Name  string
	Data  []byte
	Image image.Image
	Err   error // set when the caller already failed to decode the input
}

// Options control one batch run. Zero values fall back to the detector defaults.
type Options struct {
	ModelID       string
	ConfidencePct int
	MaxWorkers    int
	Timeout       time.Duration
}

// Detector fans a batch out to the inference provider over a bounded pool
type Detector struct {
	provider inference.Provider
	defaults Options
	optimize helpers.OptimizeOptions
	logger   zerolog.Logger
}

// NewDetector creates a batch detector
func NewDetector(cfg *config.Config, provider inference.Provider) *Detector {
	return &Detector{
		provider: provider,
		defaults: Options{
			ModelID:       cfg.DefaultModelID,
			ConfidencePct: cfg.DefaultConfidencePct,
			MaxWorkers:    cfg.MaxWorkers,
			Timeout:       cfg.BatchInferenceTimeout,
		},
		optimize: helpers.OptimizeOptions{
			MaxWidth:  cfg.MaxImageWidth,
			MaxHeight: cfg.MaxImageHeight,
			Quality:   cfg.ImageQuality,
		},
		logger: logging.NewServiceLogger(cfg, "batch"),
	}
}

func (d *Detector) resolve(opts Options) Options {
	if opts.ModelID == "" {
		opts.ModelID = d.defaults.ModelID
	}
	if opts.ConfidencePct <= 0 {
		opts.ConfidencePct = d.defaults.ConfidencePct
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = d.defaults.MaxWorkers
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.defaults.Timeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return opts
}

// DetectBatch runs detection on every item and returns one result per item,
// ordered by input index. Item failures are recorded in their result and
// never affect siblings. Items run to completion or their own timeout even
// if ctx is cancelled.
func (d *Detector) DetectBatch(ctx context.Context, items []ImageInput, opts Options) []models.BatchItemResult {
	opts = d.resolve(opts)
	if len(items) == 0 {
		return []models.BatchItemResult{}
	}

	logger := logging.WithBatch(d.logger, uuid.NewString())
	start := time.Now()

	workers := opts.MaxWorkers
	if workers > len(items) {
		workers = len(items)
	}

	// Items are detached from caller cancellation; only the per-call timeout applies
	itemCtx := context.WithoutCancel(ctx)

	jobs := make(chan int)
	var (
		mu      sync.Mutex
		results = make([]models.BatchItemResult, 0, len(items))
		wg      sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result := d.processItem(itemCtx, idx, items[idx], opts)
				if !result.Success {
					logger.Warn().Int("index", idx).Str("error", result.Error).Msg("Batch item failed")
				}

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	summary := AnalyzeBatchResults(results)
	logger.Info().
		Int("total", summary.TotalImages).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int("fire", summary.FireDetectedCount).
		Int("smoke", summary.SmokeDetectedCount).
		Int("workers", workers).
		Dur("elapsed", time.Since(start)).
		Msg("Batch detection completed")

	return results
}

func (d *Detector) processItem(ctx context.Context, index int, item ImageInput, opts Options) models.BatchItemResult {
	if item.Err != nil {
		return failed(&models.ItemError{Index: index, Stage: "decode", Err: item.Err})
	}

	img := item.Image
	if img == nil {
		decoded, _, err := helpers.DecodeImage(item.Data)
		if err != nil {
			return failed(&models.ItemError{Index: index, Stage: "decode", Err: err})
		}
		img = decoded
	}

	optimized, err := helpers.OptimizeImage(img, d.optimize)
	if err != nil {
		return failed(&models.ItemError{Index: index, Stage: "encode", Err: err})
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	result, err := d.provider.Detect(callCtx, inference.Request{
		ImageBase64:   optimized.Base64(),
		ModelID:       opts.ModelID,
		ConfidencePct: opts.ConfidencePct,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("inference timeout after %s: %w", opts.Timeout, err)
		}
		return failed(&models.ItemError{Index: index, Stage: "inference", Err: err})
	}

	if result.ImageWidth == 0 {
		result.ImageWidth, result.ImageHeight = optimized.Width, optimized.Height
	}
	return models.BatchItemResult{
		Index:           index,
		Success:         true,
		DetectionResult: result,
	}
}

func failed(err *models.ItemError) models.BatchItemResult {
	return models.BatchItemResult{
		Index:   err.Index,
		Success: false,
		Error:   err.Error(),
	}
}

// AnalyzeBatchResults summarizes a batch in one pass. Rates are percentages;
// fire and smoke rates are over successful items only.
func AnalyzeBatchResults(results []models.BatchItemResult) models.BatchSummary {
	summary := models.BatchSummary{TotalImages: len(results)}

	for _, r := range results {
		if !r.Success || r.DetectionResult == nil {
			summary.Failed++
			continue
		}
		summary.Successful++
		summary.TotalDetections += r.Count
		if r.HasFire {
			summary.FireDetectedCount++
		}
		if r.HasSmoke {
			summary.SmokeDetectedCount++
		}
	}

	summary.SuccessRate = percent(summary.Successful, summary.TotalImages)
	summary.FireRate = percent(summary.FireDetectedCount, summary.Successful)
	summary.SmokeRate = percent(summary.SmokeDetectedCount, summary.Successful)
	return summary
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) * 100 / float64(d)
}
