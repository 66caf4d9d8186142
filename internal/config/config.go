// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	Port     int
	LogLevel string
	DevMode  bool

	// Advisory engine defaults. The trigger surface can override the premium
	// and profit threshold per run; these are the values the scheduler uses.
	DefaultPremium    float64
	ProfitThreshold   float64
	MinProfitDelta    float64 // weekly throttle improvement margin
	ReconcileGrace    int     // days after a recommendation date to look for executions
	SupersedeBehavior string  // "flag" or "delete" for re-reconciled match rows

	Backup *BackupConfig
}

// BackupConfig holds offsite backup configuration for the audit databases.
// The endpoint is any S3-compatible store; backups are disabled when the
// bucket is empty.
type BackupConfig struct {
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	RetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("WHEELHOUSE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("PORT", 8011),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		DefaultPremium:    getEnvAsFloat("DEFAULT_PREMIUM", 1.50),
		ProfitThreshold:   getEnvAsFloat("PROFIT_THRESHOLD", 0.80),
		MinProfitDelta:    getEnvAsFloat("MIN_PROFIT_DELTA", 10.0),
		ReconcileGrace:    getEnvAsInt("RECONCILE_GRACE_DAYS", 3),
		SupersedeBehavior: getEnv("RECONCILE_SUPERSEDE", "flag"),
		Backup:            loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.SupersedeBehavior != "flag" && c.SupersedeBehavior != "delete" {
		return fmt.Errorf("RECONCILE_SUPERSEDE must be \"flag\" or \"delete\", got %q", c.SupersedeBehavior)
	}
	return nil
}

// BackupEnabled reports whether offsite backups are configured.
func (c *Config) BackupEnabled() bool {
	return c.Backup != nil && c.Backup.Bucket != ""
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:        getEnv("BACKUP_BUCKET", ""),
		Endpoint:      getEnv("BACKUP_ENDPOINT", ""),
		Region:        getEnv("BACKUP_REGION", "auto"),
		AccessKey:     getEnv("BACKUP_ACCESS_KEY", ""),
		SecretKey:     getEnv("BACKUP_SECRET_KEY", ""),
		RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
