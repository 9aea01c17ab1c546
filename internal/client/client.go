// Package client implements the format facade: a single public Format
// operation that normalizes its inputs, drives a worker through its retry
// and crash-recovery loop, emits telemetry, and falls back to returning the
// input unchanged (or propagates the error under strict mode) once the
// worker's own retries are exhausted (spec.md §4.5).
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeformat/fmtbridge/internal/config"
	"github.com/codeformat/fmtbridge/internal/manifest"
	"github.com/codeformat/fmtbridge/internal/telemetry"
	"github.com/codeformat/fmtbridge/internal/wire"
	"github.com/codeformat/fmtbridge/internal/worker"
)

// Version identifies this client implementation in the initialize
// handshake (wire.InitializeRequest.ClientVersion).
const Version = "fmtbridge-client/1"

// Status mirrors a client's lifecycle state.
type Status int

const (
	StatusStopped Status = iota
	StatusReady
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusReady:
		return "ready"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is the public format facade. A Client owns exactly one worker
// (and therefore one host child process), lazily spawned on first use.
type Client struct {
	mu     sync.Mutex
	status Status

	cfg config.ClientConfig
	log *slog.Logger

	worker    *worker.Worker
	telemetry *telemetry.Sink
	pressure  *pressureTracker

	warnedIdentity bool
}

// Option configures a Client at construction.
type Option func(*Client)

// WithConfig overrides the environment-derived configuration. Tests use
// this to inject short timeouts and an explicit HostPath without touching
// the process environment.
func WithConfig(cfg config.ClientConfig) Option {
	return func(c *Client) { c.cfg = cfg }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New constructs a Client, resolving and wiring its worker but not yet
// spawning the host child (that happens lazily on first Format call).
func New(opts ...Option) (*Client, error) {
	c := &Client{
		status: StatusStopped,
		cfg:    config.LoadClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	hostPath, err := resolveHost(c.cfg.HostPath, c.cfg.HostCache)
	if err != nil {
		return nil, err
	}
	execPath, leadingArgs := launchCommand(hostPath)

	c.worker = worker.New(worker.Config{
		HostPath:         execPath,
		HostArgs:         leadingArgs,
		ClientVersion:    Version,
		Platform:         manifest.CurrentPlatformKey(),
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		RequestTimeout:   c.cfg.RequestTimeout,
		MaxRestarts:      c.cfg.HostRetries,
		Log:              c.log,
	})

	if c.cfg.TelemetryFile != "" {
		sink, err := telemetry.Open(c.cfg.TelemetryFile)
		if err != nil {
			c.log.Warn("telemetry sink unavailable", "error", err)
		} else {
			c.telemetry = sink
		}
	}

	c.pressure = newPressureTracker(float64(c.cfg.MemoryBudgetMB), c.log)
	c.status = StatusReady
	return c, nil
}

// Format reformats text, optionally restricted to rng, per options. On any
// terminal failure it either propagates the error (strict mode) or logs
// one warning and returns text unchanged (identity fallback).
//
// The retry-with-restart loop spec.md §4.5 step 3 describes lives in
// internal/worker.Worker.Format: that package already owns "ensure the
// child exists, post the request, wait on the shared buffer, restart and
// retry on crash" for the wire-level Worker component. Client's own
// responsibility starts at step 1 (normalization) and resumes at step 5
// (terminal-failure handling), once the worker's retries are exhausted.
func (c *Client) Format(ctx context.Context, text string, opts wire.FormattingOptions, rng *wire.TextRange) (string, error) {
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return "", ErrAlreadyClosed
	}
	c.mu.Unlock()

	normOpts := normalizeOptions(opts)
	normRange := normalizeRange(rng, len(text))

	start := time.Now()
	resp, err := c.worker.Format(ctx, wire.FormatRequest{
		Content: text,
		Range:   normRange,
		Options: normOpts,
	})
	elapsed := time.Since(start)

	if err == nil && !resp.OK {
		err = fmt.Errorf("client: format failed: %s: %s", resp.ErrorCode, resp.Message)
	}

	if err != nil {
		errorCode := ""
		var fatal *worker.FatalNotificationError
		if errors.As(err, &fatal) {
			errorCode = fatal.ErrorCode
		} else if resp != nil {
			errorCode = resp.ErrorCode
		}
		c.pressure.observeErrorCode(errorCode)
		c.recordTelemetry(telemetry.Event{
			Success:        false,
			ElapsedMs:      float64(elapsed.Milliseconds()),
			Error:          err.Error(),
			ErrorCode:      errorCode,
			Options:        normOpts,
			Range:          normRange,
			MemoryBudgetMb: float64(c.cfg.MemoryBudgetMB),
		})
		return c.handleFailure(text, err)
	}

	c.pressure.observeSuccess(resp.Metrics)
	for _, d := range resp.Diagnostics {
		c.logDiagnostic(d)
	}

	ev := telemetry.Event{
		Success:        true,
		ElapsedMs:      float64(elapsed.Milliseconds()),
		Diagnostics:    len(resp.Diagnostics),
		Options:        normOpts,
		Range:          normRange,
		MemoryBudgetMb: float64(c.cfg.MemoryBudgetMB),
	}
	if resp.Metrics != nil {
		ev.ManagedMemoryMb = resp.Metrics.ManagedMemoryMb
		ev.WorkingSetMb = resp.Metrics.WorkingSetMb
		ev.WorkingSetDeltaMb = resp.Metrics.WorkingSetDeltaMb
	}
	c.recordTelemetry(ev)

	return resp.Formatted, nil
}

func (c *Client) logDiagnostic(d wire.Diagnostic) {
	switch d.Severity {
	case wire.SeverityError:
		c.log.Error("format diagnostic", "message", d.Message)
	case wire.SeverityWarning:
		c.log.Warn("format diagnostic", "message", d.Message)
	default:
		c.log.Info("format diagnostic", "message", d.Message)
	}
}

// handleFailure implements spec.md §4.5 step 5: strict mode propagates the
// error; otherwise the client warns once per instance and returns the
// original text unchanged.
func (c *Client) handleFailure(original string, err error) (string, error) {
	if c.cfg.Strict {
		return "", err
	}

	c.mu.Lock()
	shouldWarn := !c.warnedIdentity
	c.warnedIdentity = true
	c.mu.Unlock()

	if shouldWarn {
		c.log.Warn("format failed, returning input unchanged", "error", err)
	}
	return original, nil
}

func (c *Client) recordTelemetry(ev telemetry.Event) {
	if c.telemetry == nil {
		return
	}
	ev.Timestamp = time.Now().UnixMilli()
	if err := c.telemetry.Record(ev); err != nil {
		c.log.Warn("telemetry write failed", "error", err)
	}
}

// Close shuts down the underlying worker (and its host child, if running)
// and closes the telemetry sink.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusClosed
	c.mu.Unlock()

	c.worker.Close()
	if c.telemetry != nil {
		return c.telemetry.Close()
	}
	return nil
}
