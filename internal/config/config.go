// Package config loads runtime settings from the environment, with an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "QUICKYSHOPPY_"

// Config holds the application configuration.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string // "text" or "json"

	ClaudeBaseURL     string
	ClaudeModel       string
	ClaudeTimeout     time.Duration
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration

	// SettingsPassphrase seals the stored API key when set.
	SettingsPassphrase string

	AnalyzeRateLimit  int
	AnalyzeRateWindow time.Duration

	Backup BackupConfig
}

// BackupConfig configures encrypted S3 backups. Backups are disabled unless
// bucket, credentials and passphrase are all set.
type BackupConfig struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

// Load reads .env (if present) and then the QUICKYSHOPPY_* variables.
func Load() (*Config, error) {
	// Missing .env is fine; real environment variables may be set instead.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "quickyshoppy.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		ClaudeBaseURL:      getEnv("CLAUDE_BASE_URL", "https://api.anthropic.com"),
		ClaudeModel:        getEnv("CLAUDE_MODEL", "claude-sonnet-4-5-20250929"),
		SettingsPassphrase: getEnv("SETTINGS_PASSPHRASE", ""),
		Backup: BackupConfig{
			Endpoint:   getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:     getEnv("BACKUP_S3_BUCKET", ""),
			Region:     getEnv("BACKUP_S3_REGION", "auto"),
			AccessKey:  getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("BACKUP_S3_SECRET_KEY", ""),
			Prefix:     getEnv("BACKUP_S3_PREFIX", "quickyshoppy"),
			Passphrase: getEnv("BACKUP_PASSPHRASE", ""),
		},
	}

	var err error
	if cfg.ClaudeTimeout, err = getDuration("CLAUDE_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.CategoryCacheSize, err = getInt("CATEGORY_CACHE_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.CategoryCacheTTL, err = getDuration("CATEGORY_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AnalyzeRateLimit, err = getInt("ANALYZE_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.AnalyzeRateWindow, err = getDuration("ANALYZE_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Backup.Interval, err = getDuration("BACKUP_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.Backup.Retention, err = getDuration("BACKUP_RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid %sPORT value: %w", envPrefix, err)
	}
	return cfg, nil
}

// getEnv retrieves a prefixed environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s value: %w", envPrefix, key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s value: %w", envPrefix, key, err)
	}
	return d, nil
}
