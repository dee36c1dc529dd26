package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	LogLevel       string
	Port           string
	StoreDriver    string
	DatabaseURL    string
	DBMaxConns     int
	StoragePath    string
	StorageBaseURL string

	TaskAPIBaseURL   string
	TaskAPIKey       string
	TaskModel        string
	TaskPollInterval time.Duration
	TaskMaxWait      time.Duration
	ImageResolution  string

	ClaimStaleAfter  time.Duration
	PushConcurrency  int
	SweepConcurrency int
	SweepBatchSize   int
	SweepSchedule    string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	MetaAccessToken string
	MetaAdAccountID string
	MetaPageID      string
	MetaBaseURL     string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       strings.ToLower(os.Getenv("LOG_LEVEL")),
		Port:           port,
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxConns:     getEnvInt("DB_MAX_CONNS", 10),
		StoragePath:    getEnv("STORAGE_PATH", "./data/files"),
		StorageBaseURL: strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/files"), "/"),

		TaskAPIBaseURL:   os.Getenv("TASK_API_BASE_URL"),
		TaskAPIKey:       os.Getenv("TASK_API_KEY"),
		TaskModel:        os.Getenv("TASK_MODEL"),
		TaskPollInterval: getEnvDuration("TASK_POLL_INTERVAL_SECONDS", 3, time.Second),
		TaskMaxWait:      getEnvDuration("TASK_MAX_WAIT_SECONDS", 280, time.Second),
		ImageResolution:  getEnv("IMAGE_RESOLUTION", "2K"),

		ClaimStaleAfter:  getEnvDuration("CLAIM_STALE_AFTER_MINUTES", 10, time.Minute),
		PushConcurrency:  getEnvInt("PUSH_CONCURRENCY", 3),
		SweepConcurrency: getEnvInt("SWEEP_CONCURRENCY", 2),
		SweepBatchSize:   getEnvInt("SWEEP_BATCH_SIZE", 20),
		SweepSchedule:    os.Getenv("SWEEP_SCHEDULE"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		MetaAccessToken: os.Getenv("META_ACCESS_TOKEN"),
		MetaAdAccountID: os.Getenv("META_AD_ACCOUNT_ID"),
		MetaPageID:      os.Getenv("META_PAGE_ID"),
		MetaBaseURL:     os.Getenv("META_BASE_URL"),

		HTTPReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT_SECONDS", 15, time.Second),
		HTTPWriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT_SECONDS", 330, time.Second),
		HTTPIdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT_SECONDS", 60, time.Second),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.StoreDriver)
	}

	if cfg.TaskMaxWait < cfg.TaskPollInterval {
		return nil, fmt.Errorf("TASK_MAX_WAIT_SECONDS must not be shorter than TASK_POLL_INTERVAL_SECONDS")
	}

	return cfg, nil
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

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * unit
}
