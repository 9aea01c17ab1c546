package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeformat/fmtbridge/internal/config"
	"github.com/codeformat/fmtbridge/internal/wire"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClientConfig(hostPath string) config.ClientConfig {
	return config.ClientConfig{
		HostPath:         hostPath,
		HandshakeTimeout: 200 * time.Millisecond,
		RequestTimeout:   200 * time.Millisecond,
		HostRetries:      1,
		MemoryBudgetMB:   512,
	}
}

// TestFormatFallsBackToIdentityOnCrashingHost exercises the terminal
// failure path end-to-end: a host that exits the instant it is spawned
// exhausts the worker's retries, and Format returns the original text
// unchanged rather than an error (spec.md §4.5 step 5).
func TestFormatFallsBackToIdentityOnCrashingHost(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeScript(t, dir, "fmthost", "#!/bin/sh\nexit 1\n")

	c, err := New(WithConfig(testClientConfig(hostPath)), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	out, err := c.Format(context.Background(), "unchanged text", wire.FormattingOptions{}, nil)
	if err != nil {
		t.Fatalf("Format() error = %v, want identity fallback with no error", err)
	}
	if out != "unchanged text" {
		t.Errorf("Format() = %q, want input echoed back unchanged", out)
	}
}

// TestFormatPropagatesErrorInStrictMode is the same scenario under strict
// mode, where the client must propagate the error instead of falling back.
func TestFormatPropagatesErrorInStrictMode(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeScript(t, dir, "fmthost", "#!/bin/sh\nexit 1\n")

	cfg := testClientConfig(hostPath)
	cfg.Strict = true
	c, err := New(WithConfig(cfg), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	_, err = c.Format(context.Background(), "text", wire.FormattingOptions{}, nil)
	if err == nil {
		t.Fatal("Format() error = nil, want propagated error under strict mode")
	}
}

func TestFormatAfterCloseReturnsError(t *testing.T) {
	dir := t.TempDir()
	hostPath := writeScript(t, dir, "fmthost", "#!/bin/sh\nexit 1\n")

	c, err := New(WithConfig(testClientConfig(hostPath)), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Close()

	_, err = c.Format(context.Background(), "text", wire.FormattingOptions{}, nil)
	if !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Format() after Close() error = %v, want ErrAlreadyClosed", err)
	}
}

func TestNewFailsWhenHostUnresolvable(t *testing.T) {
	_, err := New(WithConfig(config.ClientConfig{HostPath: filepath.Join(t.TempDir(), "does-not-exist")}))
	if !errors.Is(err, ErrHostUnresolved) {
		t.Errorf("New() error = %v, want ErrHostUnresolved", err)
	}
}
