// Package db provides the SQLite database wrapper and model types for jejecipher.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB and provides migration support.
type DB struct {
	*sql.DB
}

// New opens a SQLite connection with WAL mode and foreign keys enabled.
// Driver name is "sqlite" (modernc.org/sqlite, not mattn/go-sqlite3).
// Times are written in SQLite's own text format so they compare correctly
// against CURRENT_TIMESTAMP defaults.
func New(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db.New: open: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db.New: ping: %w", err)
	}
	// Limit to 1 writer at a time to avoid SQLITE_BUSY in WAL mode.
	sqlDB.SetMaxOpenConns(1)
	return &DB{sqlDB}, nil
}

// Migrate runs all CREATE TABLE IF NOT EXISTS migrations exactly once per schema version.
func (d *DB) Migrate() error {
	if _, err := d.Exec(ddlSettings); err != nil {
		return fmt.Errorf("db.Migrate: settings table: %w", err)
	}

	// INSERT OR IGNORE keeps existing values.
	defaults := []struct{ k, v string }{
		{"telegram_token", ""},
		{"telegram_chat_id", ""},
		{"history_retention_days", "30"},
		{"session_expiry_hours", "24"},
		{"brute_force_max_attempts", "5"},
		{"brute_force_block_minutes", "15"},
	}
	for _, s := range defaults {
		if _, err := d.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, s.k, s.v); err != nil {
			return fmt.Errorf("db.Migrate: seed setting %q: %w", s.k, err)
		}
	}

	var version int
	row := d.QueryRow(`SELECT value FROM settings WHERE key='schema_version' LIMIT 1`)
	_ = row.Scan(&version) // row may not exist yet (version=0).

	if version >= schemaVersion {
		return nil
	}

	tables := []string{
		ddlUsers,
		ddlSessions,
		ddlTwofaOTP,
		ddlLoginAttempts,
		ddlLoginAttemptsIndex,
		ddlTransforms,
		ddlTransformsIndex,
		ddlSchedules,
		ddlWebhooks,
		ddlLogs,
	}
	for _, ddl := range tables {
		if _, err := d.Exec(ddl); err != nil {
			return fmt.Errorf("db.Migrate: %w", err)
		}
	}

	_, err := d.Exec(`INSERT INTO settings (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, schemaVersion)
	if err != nil {
		return fmt.Errorf("db.Migrate: schema_version upsert: %w", err)
	}
	return nil
}

const schemaVersion = 1

// ── Model Types ──────────────────────────────────────────────────────────────

// Transform modes.
const (
	ModeEncode = "encode"
	ModeDecode = "decode"
)

// User represents an admin user.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents an authenticated session.
type Session struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	TokenHash     string    `json:"-"`
	TwoFAVerified bool      `json:"twofa_verified"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// LoginAttempt tracks login tries per IP for brute-force protection.
type LoginAttempt struct {
	ID        int       `json:"id"`
	IP        string    `json:"ip"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// Transform is one recorded encode or decode call.
type Transform struct {
	ID        int       `json:"id"`
	Ref       string    `json:"ref"`
	Mode      string    `json:"mode"`
	Source    string    `json:"source"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Words     int       `json:"words"`
	CreatedAt time.Time `json:"created_at"`
}

// Schedule is a cron-triggered transform whose result is broadcast.
type Schedule struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	CronExpr  string       `json:"cron_expr"`
	Mode      string       `json:"mode"`
	Text      string       `json:"text"`
	Enabled   bool         `json:"enabled"`
	NextRun   sql.NullTime `json:"next_run,omitempty"`
	LastRun   sql.NullTime `json:"last_run,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Webhook defines an outbound webhook subscription.
type Webhook struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	URL        string       `json:"url"`
	Events     string       `json:"events"`
	Secret     string       `json:"-"`
	Enabled    bool         `json:"enabled"`
	LastStatus int          `json:"last_status"`
	LastFired  sql.NullTime `json:"last_fired,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Log is an audit log line.
type Log struct {
	ID        int       `json:"id"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ── DDL Statements ───────────────────────────────────────────────────────────

const ddlSettings = `CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);`

const ddlUsers = `CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT    NOT NULL UNIQUE,
	password_hash TEXT    NOT NULL,
	created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlSessions = `CREATE TABLE IF NOT EXISTS sessions (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token_hash      TEXT    NOT NULL UNIQUE,
	twofa_verified  INTEGER NOT NULL DEFAULT 0,
	expires_at      DATETIME NOT NULL,
	created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlTwofaOTP = `CREATE TABLE IF NOT EXISTS twofa_otp (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	otp        TEXT    NOT NULL,
	used       INTEGER NOT NULL DEFAULT 0,
	expires_at DATETIME NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlLoginAttempts = `CREATE TABLE IF NOT EXISTS login_attempts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ip         TEXT    NOT NULL,
	success    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);`

const ddlLoginAttemptsIndex = `CREATE INDEX IF NOT EXISTS idx_login_attempts_ip ON login_attempts (ip, created_at);`

const ddlTransforms = `CREATE TABLE IF NOT EXISTS transforms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ref        TEXT    NOT NULL UNIQUE,
	mode       TEXT    NOT NULL,
	source     TEXT    NOT NULL DEFAULT 'api',
	input      TEXT    NOT NULL,
	output     TEXT    NOT NULL,
	words      INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlTransformsIndex = `CREATE INDEX IF NOT EXISTS idx_transforms_created_at ON transforms (created_at);`

const ddlSchedules = `CREATE TABLE IF NOT EXISTS schedules (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL,
	cron_expr  TEXT    NOT NULL,
	mode       TEXT    NOT NULL DEFAULT 'encode',
	text       TEXT    NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 1,
	next_run   DATETIME,
	last_run   DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlWebhooks = `CREATE TABLE IF NOT EXISTS webhooks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	events      TEXT    NOT NULL DEFAULT '',
	secret      TEXT    NOT NULL DEFAULT '',
	enabled     INTEGER NOT NULL DEFAULT 1,
	last_status INTEGER NOT NULL DEFAULT 0,
	last_fired  DATETIME,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const ddlLogs = `CREATE TABLE IF NOT EXISTS logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	level      TEXT    NOT NULL DEFAULT 'info',
	source     TEXT    NOT NULL DEFAULT '',
	message    TEXT    NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// ── Helpers ───────────────────────────────────────────────────────────────────

// WriteLog inserts a line into the logs table. Failures are ignored.
func (d *DB) WriteLog(level, source, message string) {
	_, _ = d.Exec(
		`INSERT INTO logs (level, source, message) VALUES (?,?,?)`,
		level, source, message,
	)
}

// GetSetting retrieves a settings value by key, returning fallback if not found.
func (d *DB) GetSetting(key, fallback string) string {
	var v string
	if err := d.QueryRow(`SELECT value FROM settings WHERE key=?`, key).Scan(&v); err != nil {
		return fallback
	}
	return v
}

// SetSetting upserts a settings key-value pair.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.Exec(
		`INSERT INTO settings (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("db.SetSetting: %w", err)
	}
	return nil
}
