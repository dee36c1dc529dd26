package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("TASK_POLL_INTERVAL_SECONDS", "")
	t.Setenv("TASK_MAX_WAIT_SECONDS", "")
	t.Setenv("CLAIM_STALE_AFTER_MINUTES", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/files" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.TaskPollInterval != 3*time.Second || cfg.TaskMaxWait != 280*time.Second {
		t.Fatalf("poll settings = %s / %s", cfg.TaskPollInterval, cfg.TaskMaxWait)
	}
	if cfg.ClaimStaleAfter != 10*time.Minute {
		t.Fatalf("ClaimStaleAfter = %s", cfg.ClaimStaleAfter)
	}
	if cfg.PushConcurrency != 3 {
		t.Fatalf("PushConcurrency = %d", cfg.PushConcurrency)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/files"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigHonorsExplicitStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "https://cdn.example.com/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigRequiresDatabaseForPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "postgres")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected an error without DATABASE_URL")
	}

	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("memory driver should not need a database: %v", err)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("StoreDriver = %q", cfg.StoreDriver)
	}
}

func TestLoadConfigRejectsUnknownDriverAndBadWait(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected an error for an unknown driver")
	}

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TASK_POLL_INTERVAL_SECONDS", "10")
	t.Setenv("TASK_MAX_WAIT_SECONDS", "5")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected an error when max wait is shorter than the poll interval")
	}
}
