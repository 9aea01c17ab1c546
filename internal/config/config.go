// Package config reads the environment variables recognised by the host and
// client processes into immutable structs, once, at construction. There is
// no config file format and no reload; runtime mutation of the environment
// is not observed, matching the read-once contract both processes rely on.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// HostConfig holds the environment-derived settings the host runtime reads
// at startup.
type HostConfig struct {
	MemoryBudgetMB int64
	LogLevel       slog.Level
}

// LoadHost reads HOST_MEMORY_BUDGET_MB and LOG_LEVEL from the environment.
func LoadHost() HostConfig {
	return HostConfig{
		MemoryBudgetMB: envInt64("HOST_MEMORY_BUDGET_MB", 512),
		LogLevel:       envLogLevel("LOG_LEVEL", slog.LevelWarn),
	}
}

// ClientConfig holds the environment-derived settings the client facade and
// its worker read at construction.
type ClientConfig struct {
	HostPath         string
	HostCache        string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	HostRetries      int
	LogLevel         slog.Level
	TelemetryFile    string
	Strict           bool

	// MemoryBudgetMB mirrors the host's own HOST_MEMORY_BUDGET_MB. The
	// client never enforces it directly — the host does — but needs the
	// same number to judge its own pressure heuristics (spec.md §4.5).
	MemoryBudgetMB int64
}

// LoadClient reads the client-facing environment variables described in
// spec.md §6. Unset variables fall back to their documented defaults.
func LoadClient() ClientConfig {
	retries := int(envInt64("HOST_RETRIES", 2))
	if retries < 1 {
		retries = 1
	}

	return ClientConfig{
		HostPath:         os.Getenv("HOST_PATH"),
		HostCache:        os.Getenv("HOST_CACHE"),
		HandshakeTimeout: envMillis("HANDSHAKE_TIMEOUT_MS", 5000),
		RequestTimeout:   envMillis("REQUEST_TIMEOUT_MS", 8000),
		HostRetries:      retries,
		LogLevel:         envLogLevel("LOG_LEVEL", slog.LevelWarn),
		TelemetryFile:    os.Getenv("TELEMETRY_FILE"),
		Strict:           os.Getenv("STRICT_HOST") == "1",
		MemoryBudgetMB:   envInt64("HOST_MEMORY_BUDGET_MB", 512),
	}
}

func envInt64(name string, def int64) int64 {
	val, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envMillis(name string, defMs int64) time.Duration {
	return time.Duration(envInt64(name, defMs)) * time.Millisecond
}

func envLogLevel(name string, def slog.Level) slog.Level {
	val, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return def
	}
}
