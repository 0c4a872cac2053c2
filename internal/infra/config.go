package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Worker tuning.
	WorkerConcurrency int
	PollInterval      time.Duration
	VisibilityTimeout time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration
	FanOutLimit       int
	StepTimeout       time.Duration
	MigrateOnStart    bool
	MigrationsDir     string

	// Collaborator endpoints. Empty base URLs switch the clients to their
	// deterministic synthetic mode for local and CI runs.
	GeminiAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	ScraperBaseURL string
	VisionBaseURL  string
	AdIntelBaseURL string
	StoragePath    string
	StorageBaseURL string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		PollInterval:      time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		VisibilityTimeout: time.Minute * time.Duration(getEnvInt("QUEUE_VISIBILITY_MINUTES", 10)),
		MaxRetries:        getEnvInt("QUEUE_MAX_RETRIES", 3),
		RetryDelay:        time.Second * time.Duration(getEnvInt("QUEUE_RETRY_DELAY_SECONDS", 30)),
		ReconcileInterval: time.Minute * time.Duration(getEnvInt("RECONCILE_INTERVAL_MINUTES", 5)),
		ReconcileAfter:    time.Minute * time.Duration(getEnvInt("RECONCILE_AFTER_MINUTES", 10)),
		FanOutLimit:       getEnvInt("PIPELINE_FANOUT_LIMIT", 4),
		StepTimeout:       time.Second * time.Duration(getEnvInt("PIPELINE_STEP_TIMEOUT_SECONDS", 120)),
		MigrateOnStart:    getEnv("MIGRATE_ON_START", "") == "true",
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "migrations"),

		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ScraperBaseURL: os.Getenv("SCRAPER_BASE_URL"),
		VisionBaseURL:  os.Getenv("VISION_BASE_URL"),
		AdIntelBaseURL: os.Getenv("AD_INTEL_BASE_URL"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("QUEUE_MAX_RETRIES must be at least 1")
	}

	return cfg, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
