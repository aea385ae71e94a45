// Package config loads daemon configuration from an optional YAML file,
// a .env file and environment variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/jejecipher/internal/platform"
)

// FileEnv names the environment variable pointing at a YAML config file.
const FileEnv = "JEJECIPHER_CONFIG"

// Config holds all runtime configuration for jejecipher.
type Config struct {
	Port    string `yaml:"port"`
	WorkDir string `yaml:"work_dir"`
	DBPath  string `yaml:"db_path"`

	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	SessionExpiryHours     int `yaml:"session_expiry_hours"`
	BruteForceMaxAttempts  int `yaml:"brute_force_max_attempts"`
	BruteForceBlockMinutes int `yaml:"brute_force_block_minutes"`

	HistoryRetentionDays int    `yaml:"history_retention_days"`
	PruneCron            string `yaml:"prune_cron"`

	// ResponseDelayMS holds back every transform response by this long.
	ResponseDelayMS int `yaml:"response_delay_ms"`
	MaxInputBytes   int `yaml:"max_input_bytes"`

	LogLevel string `yaml:"log_level"`
}

// ResponseDelay returns ResponseDelayMS as a duration.
func (c *Config) ResponseDelay() time.Duration {
	return time.Duration(c.ResponseDelayMS) * time.Millisecond
}

// Retention returns how long transform history is kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:                   "8080",
		WorkDir:                platform.DefaultWorkDir(),
		AdminUsername:          "admin",
		AdminPassword:          "changeme",
		SessionExpiryHours:     24,
		BruteForceMaxAttempts:  5,
		BruteForceBlockMinutes: 15,
		HistoryRetentionDays:   30,
		PruneCron:              "0 0 3 * * *",
		MaxInputBytes:          64 << 10,
		LogLevel:               "info",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// JEJECIPHER_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.WorkDir, "jejecipher.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("config: invalid PORT %q", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("config: DB_PATH is required")
	}
	if c.MaxInputBytes <= 0 {
		return fmt.Errorf("config: MAX_INPUT_BYTES must be positive, got %d", c.MaxInputBytes)
	}
	if c.ResponseDelayMS < 0 {
		return fmt.Errorf("config: RESPONSE_DELAY_MS must not be negative, got %d", c.ResponseDelayMS)
	}
	if c.HistoryRetentionDays < 0 {
		return fmt.Errorf("config: HISTORY_RETENTION_DAYS must not be negative, got %d", c.HistoryRetentionDays)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config.Load: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config.Load: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	envString("PORT", &c.Port)
	envString("WORK_DIR", &c.WorkDir)
	envString("DB_PATH", &c.DBPath)
	envString("ADMIN_USERNAME", &c.AdminUsername)
	envString("ADMIN_PASSWORD", &c.AdminPassword)
	envString("TELEGRAM_TOKEN", &c.TelegramToken)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.TelegramChatID = n
		}
	}
	envInt("SESSION_EXPIRY_HOURS", &c.SessionExpiryHours)
	envInt("BRUTE_FORCE_MAX_ATTEMPTS", &c.BruteForceMaxAttempts)
	envInt("BRUTE_FORCE_BLOCK_MINUTES", &c.BruteForceBlockMinutes)
	envInt("HISTORY_RETENTION_DAYS", &c.HistoryRetentionDays)
	envString("PRUNE_CRON", &c.PruneCron)
	envInt("RESPONSE_DELAY_MS", &c.ResponseDelayMS)
	envInt("MAX_INPUT_BYTES", &c.MaxInputBytes)
	envString("LOG_LEVEL", &c.LogLevel)
}

// Stored lists the settings that may be persisted in the database and
// applied over the loaded configuration at startup.
var Stored = []string{
	"telegram_token",
	"telegram_chat_id",
	"history_retention_days",
	"session_expiry_hours",
	"brute_force_max_attempts",
	"brute_force_block_minutes",
}

// ApplyStored overlays persisted settings. get returns "" for a key that was
// never stored. A key whose environment variable is set keeps the
// environment value.
func (c *Config) ApplyStored(get func(key string) string) {
	for _, key := range Stored {
		v := get(key)
		if v == "" || os.Getenv(strings.ToUpper(key)) != "" {
			continue
		}
		switch key {
		case "telegram_token":
			c.TelegramToken = v
		case "telegram_chat_id":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				c.TelegramChatID = n
			}
		default:
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			switch key {
			case "history_retention_days":
				c.HistoryRetentionDays = n
			case "session_expiry_hours":
				c.SessionExpiryHours = n
			case "brute_force_max_attempts":
				c.BruteForceMaxAttempts = n
			case "brute_force_block_minutes":
				c.BruteForceBlockMinutes = n
			}
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LoadDotEnv loads a .env file into the process environment. Variables that
// are already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config.LoadDotEnv: %w", err)
	}
	return nil
}
