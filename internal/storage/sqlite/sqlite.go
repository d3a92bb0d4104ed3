package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"firesmoke-api/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller
	ErrNotFound = models.ErrNotFound

	// ErrInvalidCredentials is returned for unknown users, wrong passwords and bad API keys
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrConflict is returned when a unique column already holds the value
	ErrConflict = errors.New("already exists")
)

// ValidationError describes rejected user input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DB wraps the SQLite connection with a read/write lock shared by the repositories
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and applies the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_login DATETIME,
		is_active BOOLEAN DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL,
		name TEXT,
		created_at DATETIME NOT NULL,
		last_used DATETIME,
		is_active BOOLEAN DEFAULT 1,
		requests_used INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		user_id INTEGER,
		api_key_id INTEGER,
		model_id TEXT NOT NULL,
		confidence_threshold REAL,
		predictions TEXT,
		detection_count INTEGER,
		has_fire BOOLEAN,
		has_smoke BOOLEAN,
		max_confidence REAL,
		location TEXT,
		city TEXT,
		weather_context TEXT,
		processing_time_ms REAL,
		image_size TEXT,
		ip_address TEXT
	);

	CREATE TABLE IF NOT EXISTS webhooks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		event_type TEXT NOT NULL,
		is_active BOOLEAN DEFAULT 1,
		created_at DATETIME NOT NULL,
		last_triggered DATETIME,
		trigger_count INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS alert_settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER UNIQUE NOT NULL,
		email_enabled BOOLEAN DEFAULT 0,
		sms_enabled BOOLEAN DEFAULT 0,
		email_address TEXT,
		phone_number TEXT,
		min_confidence INTEGER DEFAULT 50,
		alert_for_fire BOOLEAN DEFAULT 1,
		alert_for_smoke BOOLEAN DEFAULT 1,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp);
	CREATE INDEX IF NOT EXISTS idx_detections_user_id ON detections(user_id);
	CREATE INDEX IF NOT EXISTS idx_webhooks_user_id ON webhooks(user_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Ping checks the connection
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection for use by repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Lock()    { db.mu.Lock() }
func (db *DB) Unlock()  { db.mu.Unlock() }
func (db *DB) RLock()   { db.mu.RLock() }
func (db *DB) RUnlock() { db.mu.RUnlock() }

// isUniqueViolation reports whether err is a UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Store bundles the repositories over one database
type Store struct {
	DB            *DB
	Detections    *DetectionRepository
	Users         *UserRepository
	APIKeys       *APIKeyRepository
	Webhooks      *WebhookRepository
	AlertSettings *AlertSettingsRepository
}

// Open opens the database and builds every repository
func Open(dbPath string) (*Store, error) {
	db, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{
		DB:            db,
		Detections:    NewDetectionRepository(db),
		Users:         NewUserRepository(db),
		APIKeys:       NewAPIKeyRepository(db),
		Webhooks:      NewWebhookRepository(db),
		AlertSettings: NewAlertSettingsRepository(db),
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.DB.Close()
}
