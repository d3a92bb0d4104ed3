package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"firesmoke-api/internal/models"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// UserRepository stores accounts with bcrypt password hashes
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func validateUser(username, email, password string) error {
	switch {
	case username == "" || email == "" || password == "":
		return &ValidationError{Message: "username, email, and password are required"}
	case len(username) < minUsernameLength:
		return &ValidationError{Field: "username", Message: fmt.Sprintf("username must be at least %d characters", minUsernameLength)}
	case len(password) < minPasswordLength:
		return &ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// Create registers a new user
func (r *UserRepository) Create(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateUser(username, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username or email: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}
	return user, nil
}

// Verify checks a username/password pair and records the login time
func (r *UserRepository) Verify(ctx context.Context, username, password string) (*models.User, error) {
	r.db.Lock()
	defer r.db.Unlock()

	var user models.User
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = ? AND is_active = 1
	`, strings.TrimSpace(username)).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if _, err := r.db.Conn().ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, time.Now().UTC(), user.ID); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	return &user, nil
}

// Get returns a user by id
func (r *UserRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var user models.User
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}
