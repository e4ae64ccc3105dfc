package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/openradlabs/dicom-transfer/internal/database"
)

// Config holds the full service configuration.
type Config struct {
	ServerHost string
	ServerPort int

	LogLevel  string
	LogFormat string

	Database database.Config

	// CallingAETitle identifies this service on every association.
	CallingAETitle string

	// ConnectRetries and RetryInterval govern association attempts.
	ConnectRetries int
	RetryInterval  time.Duration

	// ExcludedModalities are stripped from a study's modality list
	// before it is used for folder naming and display.
	ExcludedModalities []string

	// BatchWorkers bounds concurrent transfer tasks per job.
	BatchWorkers int

	// PatientCacheSize bounds the per-run patient identity cache.
	PatientCacheSize int

	// TempDir is where transfer downloads are staged. Empty means
	// the OS default.
	TempDir string
}

// Load reads configuration from the environment, with a .env file as
// optional overlay.
func Load() Config {
	// Missing .env is fine; the environment may be fully set.
	_ = godotenv.Load()

	return Config{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "dicom_transfer"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},

		CallingAETitle: getEnv("CALLING_AE_TITLE", "DICOMTRANSFER"),
		ConnectRetries: getEnvInt("CONNECT_RETRIES", 3),
		RetryInterval:  getEnvDuration("RETRY_INTERVAL", 5*time.Second),

		ExcludedModalities: getEnvList("EXCLUDED_MODALITIES", []string{"PR", "SR"}),

		BatchWorkers:     getEnvInt("BATCH_WORKERS", 4),
		PatientCacheSize: getEnvInt("PATIENT_CACHE_SIZE", 64),
		TempDir:          getEnv("TEMP_DIR", ""),
	}
}

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerPort)
	}
	if c.CallingAETitle == "" {
		return fmt.Errorf("calling AE title must not be empty")
	}
	if len(c.CallingAETitle) > 16 {
		return fmt.Errorf("calling AE title %q exceeds 16 characters", c.CallingAETitle)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("batch workers must be positive")
	}
	if c.PatientCacheSize <= 0 {
		return fmt.Errorf("patient cache size must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
