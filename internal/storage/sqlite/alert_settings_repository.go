package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"firesmoke-api/internal/models"
)

// AlertSettingsRepository stores per-user email/SMS preferences
type AlertSettingsRepository struct {
	db *DB
}

// NewAlertSettingsRepository creates a new SQLite alert settings repository
func NewAlertSettingsRepository(db *DB) *AlertSettingsRepository {
	return &AlertSettingsRepository{db: db}
}

// Get returns the user's settings or ErrNotFound
func (r *AlertSettingsRepository) Get(ctx context.Context, userID int64) (*models.AlertSettings, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		s            models.AlertSettings
		email, phone sql.NullString
	)
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT user_id, email_enabled, email_address, sms_enabled, phone_number,
			alert_for_fire, alert_for_smoke, min_confidence
		FROM alert_settings
		WHERE user_id = ?
	`, userID).Scan(&s.UserID, &s.EmailEnabled, &email, &s.SMSEnabled, &phone,
		&s.AlertForFire, &s.AlertForSmoke, &s.MinConfidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alert settings: %w", err)
	}
	s.EmailAddress = email.String
	s.PhoneNumber = phone.String
	return &s, nil
}

// Upsert creates or replaces the user's settings
func (r *AlertSettingsRepository) Upsert(ctx context.Context, s models.AlertSettings) error {
	if s.MinConfidence < 0 || s.MinConfidence > 100 {
		return &ValidationError{Field: "min_confidence", Message: "min_confidence must be between 0 and 100"}
	}
	if s.EmailEnabled && s.EmailAddress == "" {
		return &ValidationError{Field: "email_address", Message: "email_address is required when email is enabled"}
	}
	if s.SMSEnabled && s.PhoneNumber == "" {
		return &ValidationError{Field: "phone_number", Message: "phone_number is required when sms is enabled"}
	}

	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO alert_settings (
			user_id, email_enabled, email_address, sms_enabled, phone_number,
			alert_for_fire, alert_for_smoke, min_confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email_enabled = excluded.email_enabled,
			email_address = excluded.email_address,
			sms_enabled = excluded.sms_enabled,
			phone_number = excluded.phone_number,
			alert_for_fire = excluded.alert_for_fire,
			alert_for_smoke = excluded.alert_for_smoke,
			min_confidence = excluded.min_confidence
	`, s.UserID, s.EmailEnabled, s.EmailAddress, s.SMSEnabled, s.PhoneNumber,
		s.AlertForFire, s.AlertForSmoke, s.MinConfidence)
	if err != nil {
		return fmt.Errorf("failed to save alert settings: %w", err)
	}
	return nil
}
