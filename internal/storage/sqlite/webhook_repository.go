package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"firesmoke-api/internal/models"
)

// WebhookRepository stores per-user webhook registrations
type WebhookRepository struct {
	db *DB
}

// NewWebhookRepository creates a new SQLite webhook repository
func NewWebhookRepository(db *DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func validateWebhook(rawURL, eventType string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Message: "url must be an absolute http(s) URL"}
	}
	switch eventType {
	case models.EventAll, models.EventFireDetected, models.EventSmokeDetected:
		return nil
	default:
		return &ValidationError{Field: "event_type", Message: "event_type must be one of all, fire_detected, smoke_detected"}
	}
}

// Create registers a webhook. An empty eventType means "all".
func (r *WebhookRepository) Create(ctx context.Context, userID int64, rawURL, eventType string) (*models.Webhook, error) {
	if eventType == "" {
		eventType = models.EventAll
	}
	if err := validateWebhook(rawURL, eventType); err != nil {
		return nil, err
	}

	hook := &models.Webhook{
		UserID:    userID,
		URL:       rawURL,
		EventType: eventType,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO webhooks (user_id, url, event_type, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, rawURL, eventType, hook.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert webhook: %w", err)
	}

	hook.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook id: %w", err)
	}
	return hook, nil
}

// ListActive returns a user's active webhooks in creation order
func (r *WebhookRepository) ListActive(ctx context.Context, userID int64) ([]models.Webhook, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, user_id, url, event_type, is_active, created_at, last_triggered
		FROM webhooks
		WHERE user_id = ? AND is_active = 1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}
	defer rows.Close()

	hooks := []models.Webhook{}
	for rows.Next() {
		var (
			h         models.Webhook
			triggered sql.NullTime
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.URL, &h.EventType, &h.IsActive, &h.CreatedAt, &triggered); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		if triggered.Valid {
			h.LastTriggered = &triggered.Time
		}
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}

// Delete removes a webhook owned by userID
func (r *WebhookRepository) Delete(ctx context.Context, userID, id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().ExecContext(ctx, `DELETE FROM webhooks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTriggered records a delivery attempt
func (r *WebhookRepository) MarkTriggered(ctx context.Context, id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		UPDATE webhooks SET last_triggered = ?, trigger_count = trigger_count + 1 WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update webhook trigger: %w", err)
	}
	return nil
}
