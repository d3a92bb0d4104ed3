package weather

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
)

// DefaultAlertThreshold is the adjusted confidence an alert must exceed
const DefaultAlertThreshold = 0.3

// Penalty multipliers applied to smoke detections
const (
	fogPenalty         = 0.5
	lowVisibilityPen   = 0.6
	highHumidityPen    = 0.8
	coldTemperaturePen = 0.9
	earlyMorningPen    = 0.8
	steamLocationPen   = 0.6

	lowVisibilityMeters = 1000
	highHumidityPct     = 85
	coldTemperatureC    = 10

	earlyMorningFrom = 5
	earlyMorningTo   = 8

	// Below this ratio of adjusted/original the recommendation asks for verification
	reducedRatio = 0.7
)

const (
	noWeatherTrace = "No weather context available"
	noDetectionMsg = "No detection"
)

var (
	foggyConditions = map[string]bool{"Fog": true, "Mist": true, "Haze": true}
	steamLocations  = map[string]bool{"kitchen": true, "bathroom": true}
)

// Adjuster revises raw smoke confidences using weather, time of day and
// location. It is pure computation and never fails.
type Adjuster struct {
	threshold float64
	now       func() time.Time
}

// NewAdjuster creates an adjuster using the configured alert threshold and
// the wall clock
func NewAdjuster(cfg *config.Config) *Adjuster {
	return NewAdjusterWithClock(cfg.AlertThreshold, time.Now)
}

// NewAdjusterWithClock creates an adjuster with an explicit threshold and clock
func NewAdjusterWithClock(threshold float64, now func() time.Time) *Adjuster {
	if threshold <= 0 {
		threshold = DefaultAlertThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &Adjuster{threshold: threshold, now: now}
}

// Threshold returns the alert threshold
func (a *Adjuster) Threshold() float64 {
	return a.threshold
}

// Adjust applies the weather penalty chain to one detection. Only smoke is
// adjusted; fire passes through unchanged. A nil weather leaves the
// confidence untouched.
func (a *Adjuster) Adjust(detectedClass string, rawConfidence float64, w *models.WeatherContext) (float64, string) {
	if w == nil {
		return rawConfidence, noWeatherTrace
	}

	confidence := rawConfidence
	var clauses []string

	if isSmoke(detectedClass) {
		if foggyConditions[w.Condition] {
			confidence *= fogPenalty
			clauses = append(clauses, fmt.Sprintf("Foggy conditions (%s)", w.Condition))
		}
		if w.Visibility < lowVisibilityMeters {
			confidence *= lowVisibilityPen
			clauses = append(clauses, fmt.Sprintf("Low visibility (%sm)", formatNumber(w.Visibility)))
		}
		if w.Humidity > highHumidityPct {
			confidence *= highHumidityPen
			clauses = append(clauses, fmt.Sprintf("High humidity (%s%%)", formatNumber(w.Humidity)))
		}
		if w.Temperature < coldTemperatureC {
			confidence *= coldTemperaturePen
			clauses = append(clauses, fmt.Sprintf("Cold temperature (%s°C)", formatNumber(w.Temperature)))
		}
	}

	if len(clauses) == 0 {
		return confidence, fmt.Sprintf("Clear weather (%s), no adjustment needed", w.Condition)
	}

	trace := "Weather context: " + strings.Join(clauses, ", ")
	if rawConfidence > 0 {
		change := (confidence - rawConfidence) / rawConfidence * 100
		trace += fmt.Sprintf(" | Confidence adjusted by %.0f%%", change)
	}
	return confidence, trace
}

// AdjustTime applies the early-morning fog layer for hours 5 through 8
func (a *Adjuster) AdjustTime(detectedClass string, confidence float64, hour int) (float64, string) {
	if isSmoke(detectedClass) && hour >= earlyMorningFrom && hour <= earlyMorningTo {
		return confidence * earlyMorningPen, "Early morning (fog common)"
	}
	return confidence, ""
}

// AdjustLocation applies the steam layer for kitchens and bathrooms
func (a *Adjuster) AdjustLocation(detectedClass string, confidence float64, location string) (float64, string) {
	if isSmoke(detectedClass) && steamLocations[strings.ToLower(strings.TrimSpace(location))] {
		return confidence * steamLocationPen, fmt.Sprintf("Location: %s (steam expected)", location)
	}
	return confidence, ""
}

// AdjustDetection runs all three layers on one detection, compounding on the
// same confidence in weather, time, location order
func (a *Adjuster) AdjustDetection(d models.Detection, w *models.WeatherContext, hour int, location string) (float64, models.AdjustmentTrace) {
	adjusted, weatherTrace := a.Adjust(d.Class, d.Confidence, w)
	adjusted, timeTrace := a.AdjustTime(d.Class, adjusted, hour)
	adjusted, locationTrace := a.AdjustLocation(d.Class, adjusted, location)
	return adjusted, models.AdjustmentTrace{
		Weather:  weatherTrace,
		Time:     timeTrace,
		Location: locationTrace,
	}
}

// ShouldAlert reports whether an adjusted confidence is strictly above the threshold
func (a *Adjuster) ShouldAlert(adjusted float64) bool {
	return adjusted > a.threshold
}

// Contextualize returns a copy of result enriched with per-detection adjusted
// confidences, the alert decision, the context trace and a recommendation.
// The input result is not modified. The primary detection driving the alert
// is the one with the highest adjusted confidence.
func (a *Adjuster) Contextualize(result *models.DetectionResult, w *models.WeatherContext, location string) *models.DetectionResult {
	if result == nil {
		return nil
	}
	if location == "" {
		location = "Unknown"
	}

	hour := a.now().Hour()
	enhanced := *result
	enhanced.Context = &models.DetectionContext{
		Weather:  w,
		Hour:     hour,
		Location: location,
	}

	if len(result.Predictions) == 0 {
		enhanced.Predictions = []models.Detection{}
		enhanced.Context.Note = noDetectionMsg
		enhanced.SetAlert(false)
		return &enhanced
	}

	enhanced.Predictions = make([]models.Detection, len(result.Predictions))
	primary := -1
	var primaryAdjusted float64
	var primaryTrace models.AdjustmentTrace

	for i, p := range result.Predictions {
		adjusted, trace := a.AdjustDetection(p, w, hour, location)

		original := p.Confidence
		change := adjusted - original
		p.OriginalConfidence = &original
		p.AdjustedConfidence = &adjusted
		p.ConfidenceChange = &change
		enhanced.Predictions[i] = p

		if primary < 0 || adjusted > primaryAdjusted {
			primary = i
			primaryAdjusted = adjusted
			primaryTrace = trace
		}
	}

	alert := a.ShouldAlert(primaryAdjusted)
	top := enhanced.Predictions[primary]

	enhanced.AdjustedConfidence = &primaryAdjusted
	enhanced.SetAlert(alert)
	enhanced.Context.Adjustments = &primaryTrace
	enhanced.Recommendation = Recommendation(top.Class, top.Confidence, primaryAdjusted, alert)
	return &enhanced
}

// Recommendation renders the three-tier operator guidance
func Recommendation(detectedClass string, original, adjusted float64, alert bool) string {
	if !alert {
		if isSmoke(detectedClass) {
			return "Smoke detected but confidence reduced due to weather/context. " +
				"Likely fog, steam, or mist. Visual verification recommended."
		}
		return "Low confidence detection. Likely false positive."
	}

	label := strings.ToUpper(detectedClass)
	if adjusted < original*reducedRatio {
		return label + " DETECTED! Confidence reduced by weather context but still concerning. " +
			"Immediate visual verification required."
	}
	return label + " DETECTED! High confidence detection. Take immediate action!"
}

func isSmoke(class string) bool {
	return strings.EqualFold(class, models.ClassSmoke)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
