package inference

import (
	"context"

	"firesmoke-api/internal/models"
)

// Request is one image submitted for detection
type Request struct {
	ImageBase64   string // JPEG, standard base64
	ModelID       string
	ConfidencePct int // provider threshold, percent 0-100
}

// Provider runs object detection on an encoded image. Implementations must
// honour ctx for cancellation and deadlines.
type Provider interface {
	Detect(ctx context.Context, req Request) (*models.DetectionResult, error)
}

// roboflowPrediction is one entry of the provider's "predictions" array
type roboflowPrediction struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Confidence  float64 `json:"confidence"`
	Class       string  `json:"class"`
	ClassID     *int    `json:"class_id,omitempty"`
	DetectionID string  `json:"detection_id,omitempty"`
}

type roboflowImage struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// roboflowResponse is the hosted detection API response body
type roboflowResponse struct {
	InferenceID string               `json:"inference_id,omitempty"`
	Time        float64              `json:"time"`
	Image       roboflowImage        `json:"image"`
	Predictions []roboflowPrediction `json:"predictions"`
}

func (r *roboflowResponse) toDetections() []models.Detection {
	detections := make([]models.Detection, 0, len(r.Predictions))
	for _, p := range r.Predictions {
		detections = append(detections, models.Detection{
			Class:       p.Class,
			Confidence:  p.Confidence,
			X:           p.X,
			Y:           p.Y,
			Width:       p.Width,
			Height:      p.Height,
			ClassID:     p.ClassID,
			DetectionID: p.DetectionID,
		})
	}
	return detections
}
