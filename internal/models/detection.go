package models

import (
	"strings"
	"time"
)

// Detection class names returned by the fire/smoke model
const (
	ClassFire  = "fire"
	ClassSmoke = "smoke"
)

// Detection is one prediction box returned by the inference provider.
// Confidence is a fraction in [0,1]. The adjustment fields are filled in by
// the context adjuster and never overwrite the raw values.
type Detection struct {
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	ClassID     *int    `json:"class_id,omitempty"`
	DetectionID string  `json:"detection_id,omitempty"`

	OriginalConfidence *float64 `json:"original_confidence,omitempty"`
	AdjustedConfidence *float64 `json:"adjusted_confidence,omitempty"`
	ConfidenceChange   *float64 `json:"confidence_change,omitempty"`
}

// IsClass reports whether the detection class matches name case-insensitively
func (d Detection) IsClass(name string) bool {
	return strings.EqualFold(d.Class, name)
}

// WeatherContext is a snapshot of the current weather at the monitored city.
// A nil *WeatherContext means no weather data was available.
type WeatherContext struct {
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	Temperature float64 `json:"temperature"` // Celsius
	Humidity    float64 `json:"humidity"`    // percent
	Visibility  float64 `json:"visibility"`  // meters
	City        string  `json:"city"`
}

// AdjustmentTrace records why each context layer changed the confidence
type AdjustmentTrace struct {
	Weather  string `json:"weather"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// DetectionContext is attached to a result once context adjustment has run
type DetectionContext struct {
	Weather     *WeatherContext  `json:"weather"`
	Hour        int              `json:"time"`
	Location    string           `json:"location"`
	Adjustments *AdjustmentTrace `json:"adjustments,omitempty"`
	Note        string           `json:"note,omitempty"`
}

// DetectionResult aggregates all detections for one image
type DetectionResult struct {
	Provider         string      `json:"provider,omitempty"`
	Model            string      `json:"model,omitempty"`
	Predictions      []Detection `json:"predictions"`
	Count            int         `json:"count"`
	HasFire          bool        `json:"has_fire"`
	HasSmoke         bool        `json:"has_smoke"`
	MaxConfidence    float64     `json:"max_confidence"`
	ProcessingTimeMs float64     `json:"processing_time_ms"`
	ImageWidth       int         `json:"image_width,omitempty"`
	ImageHeight      int         `json:"image_height,omitempty"`

	// Context enrichment
	AdjustedConfidence *float64          `json:"adjusted_confidence,omitempty"`
	Alert              *bool             `json:"alert,omitempty"`
	Context            *DetectionContext `json:"context,omitempty"`
	Recommendation     string            `json:"recommendation,omitempty"`
}

// NewDetectionResult derives the class flags and max confidence from predictions
func NewDetectionResult(predictions []Detection) *DetectionResult {
	if predictions == nil {
		predictions = []Detection{}
	}

	result := &DetectionResult{
		Predictions: predictions,
		Count:       len(predictions),
	}
	for _, p := range predictions {
		if p.IsClass(ClassFire) {
			result.HasFire = true
		}
		if p.IsClass(ClassSmoke) {
			result.HasSmoke = true
		}
		if p.Confidence > result.MaxConfidence {
			result.MaxConfidence = p.Confidence
		}
	}
	return result
}

// HasFireOrSmoke reports whether anything alert-worthy was detected
func (r *DetectionResult) HasFireOrSmoke() bool {
	return r.HasFire || r.HasSmoke
}

// ShouldAlert returns the alert flag, defaulting to false when unset
func (r *DetectionResult) ShouldAlert() bool {
	return r.Alert != nil && *r.Alert
}

// SetAlert sets the alert flag
func (r *DetectionResult) SetAlert(alert bool) {
	r.Alert = &alert
}

// BatchItemResult wraps the outcome for one input of a batch. Index is the
// position in the original input sequence.
type BatchItemResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*DetectionResult
}

// BatchSummary aggregates a batch. Fire and smoke rates are computed over
// successful items only.
type BatchSummary struct {
	TotalImages        int     `json:"total_images"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	FireDetectedCount  int     `json:"fire_detected_count"`
	SmokeDetectedCount int     `json:"smoke_detected_count"`
	TotalDetections    int     `json:"total_detections"`
	SuccessRate        float64 `json:"success_rate"`
	FireRate           float64 `json:"fire_rate"`
	SmokeRate          float64 `json:"smoke_rate"`
}

// TimelineEntry is the detection history for one sampled video frame
type TimelineEntry struct {
	Frame            int         `json:"frame"`
	TimestampSeconds float64     `json:"timestamp_seconds"`
	HasFire          bool        `json:"has_fire"`
	HasSmoke         bool        `json:"has_smoke"`
	DetectionCount   int         `json:"detection_count"`
	Predictions      []Detection `json:"predictions"`
	ImageBase64      string      `json:"image_base64,omitempty"`
}

// VideoResult is the response of the video pipeline
type VideoResult struct {
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	FramesAnalyzed  int               `json:"frames_analyzed"`
	Summary         *BatchSummary     `json:"summary,omitempty"`
	Timeline        []TimelineEntry   `json:"timeline,omitempty"`
	DetailedResults []BatchItemResult `json:"detailed_results,omitempty"`
}

// DetectionRecord is a persisted detection row
type DetectionRecord struct {
	ID                  int64           `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	UserID              *int64          `json:"user_id,omitempty"`
	APIKeyID            *int64          `json:"api_key_id,omitempty"`
	ModelID             string          `json:"model_id"`
	HasFire             bool            `json:"has_fire"`
	HasSmoke            bool            `json:"has_smoke"`
	DetectionCount      int             `json:"detection_count"`
	MaxConfidence       float64         `json:"max_confidence"`
	Predictions         []Detection     `json:"predictions"`
	Location            string          `json:"location,omitempty"`
	City                string          `json:"city,omitempty"`
	Weather             *WeatherContext `json:"weather_context,omitempty"`
	ProcessingTimeMs    float64         `json:"processing_time_ms"`
	ImageSize           string          `json:"image_size,omitempty"`
	IPAddress           string          `json:"ip_address,omitempty"`
	ConfidenceThreshold float64         `json:"confidence_threshold"`
}

// RecordMetadata carries the request details stored alongside a result
type RecordMetadata struct {
	UserID              *int64
	APIKeyID            *int64
	ModelID             string
	Location            string
	City                string
	IPAddress           string
	ConfidenceThreshold float64
}

// DailyCount is the number of detections on one day
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DetectionStats is the aggregate over a time window
type DetectionStats struct {
	TotalDetections     int          `json:"total_detections"`
	FireDetections      int          `json:"fire_detections"`
	SmokeDetections     int          `json:"smoke_detections"`
	AvgConfidence       float64      `json:"avg_confidence"`
	AvgProcessingTimeMs float64      `json:"avg_processing_time_ms"`
	DailyDetections     []DailyCount `json:"daily_detections"`
}

// PercentToFraction converts a 0-100 confidence to the internal 0-1 scale
func PercentToFraction(pct float64) float64 {
	return pct / 100
}

// FractionToPercent converts an internal 0-1 confidence to 0-100
func FractionToPercent(f float64) float64 {
	return f * 100
}
