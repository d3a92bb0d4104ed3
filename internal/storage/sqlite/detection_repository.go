package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"firesmoke-api/internal/models"
)

// DetectionRepository stores the detection log
type DetectionRepository struct {
	db  *DB
	now func() time.Time
}

// NewDetectionRepository creates a new SQLite detection repository
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db, now: time.Now}
}

// Record persists one detection result with its request metadata
func (r *DetectionRepository) Record(ctx context.Context, result *models.DetectionResult, meta models.RecordMetadata) (int64, error) {
	predictions, err := json.Marshal(result.Predictions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal predictions: %w", err)
	}

	var weather sql.NullString
	if result.Context != nil && result.Context.Weather != nil {
		raw, err := json.Marshal(result.Context.Weather)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal weather: %w", err)
		}
		weather = sql.NullString{String: string(raw), Valid: true}
	}

	var imageSize string
	if result.ImageWidth > 0 && result.ImageHeight > 0 {
		imageSize = fmt.Sprintf("%dx%d", result.ImageWidth, result.ImageHeight)
	}

	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO detections (
			timestamp, user_id, api_key_id, model_id, confidence_threshold,
			predictions, detection_count, has_fire, has_smoke, max_confidence,
			location, city, weather_context, processing_time_ms, image_size, ip_address
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.now().UTC(), nullInt(meta.UserID), nullInt(meta.APIKeyID), meta.ModelID, meta.ConfidenceThreshold,
		string(predictions), result.Count, result.HasFire, result.HasSmoke, result.MaxConfidence,
		meta.Location, meta.City, weather, result.ProcessingTimeMs, imageSize, meta.IPAddress,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	return res.LastInsertId()
}

// History returns detections newest first. A nil userID returns every user's rows.
func (r *DetectionRepository) History(ctx context.Context, userID *int64, limit, offset int) ([]models.DetectionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, timestamp, user_id, api_key_id, model_id, confidence_threshold,
			predictions, detection_count, has_fire, has_smoke, max_confidence,
			location, city, weather_context, processing_time_ms, image_size, ip_address
		FROM detections`
	args := []interface{}{}
	if userID != nil {
		query += ` WHERE user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	records := []models.DetectionRecord{}
	for rows.Next() {
		var (
			rec                          models.DetectionRecord
			uid, keyID                   sql.NullInt64
			threshold, procMs            sql.NullFloat64
			predictions, weather         sql.NullString
			location, city, size, ipAddr sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &uid, &keyID, &rec.ModelID, &threshold,
			&predictions, &rec.DetectionCount, &rec.HasFire, &rec.HasSmoke, &rec.MaxConfidence,
			&location, &city, &weather, &procMs, &size, &ipAddr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}

		if uid.Valid {
			rec.UserID = &uid.Int64
		}
		if keyID.Valid {
			rec.APIKeyID = &keyID.Int64
		}
		rec.ConfidenceThreshold = threshold.Float64
		rec.ProcessingTimeMs = procMs.Float64
		rec.Location = location.String
		rec.City = city.String
		rec.ImageSize = size.String
		rec.IPAddress = ipAddr.String

		rec.Predictions = []models.Detection{}
		if predictions.Valid && predictions.String != "" {
			if err := json.Unmarshal([]byte(predictions.String), &rec.Predictions); err != nil {
				return nil, fmt.Errorf("failed to decode predictions for detection %d: %w", rec.ID, err)
			}
		}
		if weather.Valid && weather.String != "" {
			var w models.WeatherContext
			if err := json.Unmarshal([]byte(weather.String), &w); err == nil {
				rec.Weather = &w
			}
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// Stats aggregates detections over the last days days
func (r *DetectionRepository) Stats(ctx context.Context, userID *int64, days int) (*models.DetectionStats, error) {
	if days <= 0 {
		days = 30
	}
	since := r.now().UTC().AddDate(0, 0, -days)

	where := `WHERE timestamp > ?`
	args := []interface{}{since}
	if userID != nil {
		where += ` AND user_id = ?`
		args = append(args, *userID)
	}

	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.DetectionStats{DailyDetections: []models.DailyCount{}}
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(has_fire), 0),
			COALESCE(SUM(has_smoke), 0),
			COALESCE(AVG(max_confidence), 0),
			COALESCE(AVG(processing_time_ms), 0)
		FROM detections `+where, args...,
	).Scan(&stats.TotalDetections, &stats.FireDetections, &stats.SmokeDetections, &stats.AvgConfidence, &stats.AvgProcessingTimeMs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate detections: %w", err)
	}

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day, COUNT(*)
		FROM detections `+where+`
		GROUP BY day
		ORDER BY day`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily detections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc models.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily detections: %w", err)
		}
		stats.DailyDetections = append(stats.DailyDetections, dc)
	}

	return stats, rows.Err()
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
