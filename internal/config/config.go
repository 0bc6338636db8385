package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                   string
	DBPath                 string
	LogLevel               string
	RemoteBaseURL          string
	RemoteToken            string
	SyncInterval           time.Duration
	SyncForegroundThrottle time.Duration
	SyncWorkerCount        int
	SyncQueueSize          int
	SyncBatchSize          int
	MasteryThresholdDays   int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:                   envOr("ADDR", ":8080"),
		DBPath:                 envOr("DB_PATH", "file:lexideck.db"),
		LogLevel:               envOr("LOG_LEVEL", "INFO"),
		RemoteBaseURL:          envOr("REMOTE_BASE_URL", "http://localhost:9090"),
		RemoteToken:            envOr("REMOTE_TOKEN", ""),
		SyncInterval:           envDurOr("SYNC_INTERVAL", 5*time.Minute),
		SyncForegroundThrottle: envDurOr("SYNC_FOREGROUND_THROTTLE", 30*time.Second),
		SyncWorkerCount:        envIntOr("SYNC_WORKER_COUNT", 2),
		SyncQueueSize:          envIntOr("SYNC_QUEUE_SIZE", 32),
		SyncBatchSize:          envIntOr("SYNC_BATCH_SIZE", 50),
		MasteryThresholdDays:   envIntOr("MASTERY_THRESHOLD_DAYS", 21),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envDurOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %v", key, v, def)
	}
	return def
}
