package sqlite

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"firesmoke-api/internal/models"
)

const (
	apiKeyPrefix     = "fsd_"
	apiKeyEntropy    = 32
	apiKeyDisplayLen = 12
)

// APIKeyRepository stores SHA-256 hashes of issued API keys
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new SQLite API key repository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// HashAPIKey returns the hex SHA-256 of a raw key
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newRawKey() (string, error) {
	buf := make([]byte, apiKeyEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Generate issues a new key for userID. The raw key is returned once and never stored.
func (r *APIKeyRepository) Generate(ctx context.Context, userID int64, name string) (string, *models.APIKey, error) {
	raw, err := newRawKey()
	if err != nil {
		return "", nil, err
	}

	key := &models.APIKey{
		UserID:    userID,
		Name:      name,
		Prefix:    raw[:apiKeyDisplayLen],
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}

	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO api_keys (user_id, key_hash, key_prefix, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, HashAPIKey(raw), key.Prefix, name, key.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to insert api key: %w", err)
	}

	key.ID, err = res.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read api key id: %w", err)
	}
	return raw, key, nil
}

// List returns a user's keys, newest first
func (r *APIKeyRepository) List(ctx context.Context, userID int64) ([]models.APIKey, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, user_id, COALESCE(name, ''), key_prefix, created_at, last_used, is_active
		FROM api_keys
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	keys := []models.APIKey{}
	for rows.Next() {
		var (
			k        models.APIKey
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.CreatedAt, &lastUsed, &k.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		if lastUsed.Valid {
			k.LastUsed = &lastUsed.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Verify resolves a raw key to its active record and bumps its usage
func (r *APIKeyRepository) Verify(ctx context.Context, raw string) (*models.APIKey, error) {
	if raw == "" {
		return nil, ErrInvalidCredentials
	}

	r.db.Lock()
	defer r.db.Unlock()

	var k models.APIKey
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT ak.id, ak.user_id, COALESCE(ak.name, ''), ak.key_prefix, ak.created_at, ak.is_active
		FROM api_keys ak
		JOIN users u ON ak.user_id = u.id
		WHERE ak.key_hash = ? AND ak.is_active = 1 AND u.is_active = 1
	`, HashAPIKey(raw)).Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.CreatedAt, &k.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query api key: %w", err)
	}

	now := time.Now().UTC()
	if _, err := r.db.Conn().ExecContext(ctx, `
		UPDATE api_keys SET last_used = ?, requests_used = requests_used + 1 WHERE id = ?
	`, now, k.ID); err != nil {
		return nil, fmt.Errorf("failed to update api key usage: %w", err)
	}
	k.LastUsed = &now
	return &k, nil
}
