package config

import (
	"log/slog"
	"testing"
)

func TestLoadHostDefaults(t *testing.T) {
	t.Setenv("HOST_MEMORY_BUDGET_MB", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := LoadHost()
	if cfg.MemoryBudgetMB != 512 {
		t.Errorf("MemoryBudgetMB = %d, want 512", cfg.MemoryBudgetMB)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
}

func TestLoadHostOverrides(t *testing.T) {
	t.Setenv("HOST_MEMORY_BUDGET_MB", "1024")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadHost()
	if cfg.MemoryBudgetMB != 1024 {
		t.Errorf("MemoryBudgetMB = %d, want 1024", cfg.MemoryBudgetMB)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadClientHostRetriesFloorsAtOne(t *testing.T) {
	t.Setenv("HOST_RETRIES", "0")
	cfg := LoadClient()
	if cfg.HostRetries != 1 {
		t.Errorf("HostRetries = %d, want 1 (floored)", cfg.HostRetries)
	}
}

func TestLoadClientMemoryBudgetMirrorsHostDefault(t *testing.T) {
	t.Setenv("HOST_MEMORY_BUDGET_MB", "")
	if got := LoadClient().MemoryBudgetMB; got != 512 {
		t.Errorf("MemoryBudgetMB = %d, want 512", got)
	}

	t.Setenv("HOST_MEMORY_BUDGET_MB", "2048")
	if got := LoadClient().MemoryBudgetMB; got != 2048 {
		t.Errorf("MemoryBudgetMB = %d, want 2048", got)
	}
}

func TestLoadClientStrictFlag(t *testing.T) {
	t.Setenv("STRICT_HOST", "1")
	if !LoadClient().Strict {
		t.Error("Strict = false, want true when STRICT_HOST=1")
	}

	t.Setenv("STRICT_HOST", "0")
	if LoadClient().Strict {
		t.Error("Strict = true, want false when STRICT_HOST=0")
	}
}
