// Package worker manages a single format host child process: lazy spawn,
// the initialize handshake, request/response correlation over the wire
// protocol, notification demultiplexing, and crash-recovery with backoff.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeformat/fmtbridge/internal/wire"
)

// Config configures a Worker's child process and timeouts.
type Config struct {
	HostPath string
	HostArgs []string
	HostEnv  map[string]string

	ClientVersion string
	Platform      string

	HandshakeTimeout  time.Duration
	RequestTimeout    time.Duration
	MaxRestarts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	BufferCapacity    int

	Log *slog.Logger

	// OnErrorNotification, if set, is invoked for every error notification
	// the child emits, fatal or recoverable. Fatal notifications are always
	// escalated internally (rejectAll fails every in-flight request); this
	// hook additionally lets a caller that must treat a recoverable
	// notification as a failure too — such as the postinstall smoke test,
	// which has no in-flight request to fail against during the handshake
	// window — observe it and react.
	OnErrorNotification func(wire.ErrorNotification)
}

func (c *Config) setDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 8 * time.Second
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = 1 << 20
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
}

// Worker owns a single host child process and brokers requests to it. A
// Worker is safe for concurrent use by multiple callers; requests queue
// behind the pending table and are each answered independently.
type Worker struct {
	cfg   Config
	spawn func() (childTransport, error)

	mu          sync.Mutex
	transport   childTransport
	fw          *wire.FrameWriter
	pending     *pendingTable
	initialized bool
	state       state
	restarts    int
	closed      bool
	group       *errgroup.Group

	// sessionID is reassigned every time startLocked spawns a child, so a
	// crash-triggered restart never carries a stale session id into the new
	// process (spec.md §3: "the client assigns a fresh session id whenever
	// it (re)spawns the host").
	sessionID string
}

// New constructs a Worker that spawns cfg.HostPath on first request.
func New(cfg Config) *Worker {
	cfg.setDefaults()
	w := &Worker{cfg: cfg, pending: newPendingTable(), state: stateIdle}
	w.spawn = func() (childTransport, error) {
		p, err := spawnProcess(cfg.HostPath, cfg.HostArgs, cfg.HostEnv)
		if err != nil {
			return nil, err
		}
		go p.forwardStderr(cfg.Log)
		return p, nil
	}
	return w
}

// newWithSpawner builds a Worker around a caller-supplied transport
// factory, bypassing real process spawning. Used by tests.
func newWithSpawner(cfg Config, spawn func() (childTransport, error)) *Worker {
	cfg.setDefaults()
	return &Worker{cfg: cfg, pending: newPendingTable(), state: stateIdle, spawn: spawn}
}

// Format issues a format request, spawning and initializing the child if
// this is the first call, and returns the decoded response. req.SessionID is
// overwritten with the worker's current session id immediately before each
// attempt goes out, so callers never need to track it themselves.
func (w *Worker) Format(ctx context.Context, req wire.FormatRequest) (*wire.FormatResponse, error) {
	var resp wire.FormatResponse
	if err := w.roundTrip(ctx, wire.CommandFormat, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping issues a ping request against the running child.
func (w *Worker) Ping(ctx context.Context, req wire.PingRequest) (*wire.PingResponse, error) {
	var resp wire.PingResponse
	if err := w.roundTrip(ctx, wire.CommandPing, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the child to exit cleanly and waits for acknowledgement.
func (w *Worker) Shutdown(ctx context.Context) error {
	var resp wire.ShutdownResponse
	if err := w.roundTrip(ctx, wire.CommandShutdown, wire.ShutdownRequest{Reason: "client requested shutdown"}, &resp); err != nil {
		return err
	}
	w.Close()
	return nil
}

// Close tears down the child process, if any, and rejects any requests
// still in flight. Safe to call more than once.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.state = stateStopped
	transport := w.transport
	w.transport = nil
	w.mu.Unlock()

	if transport != nil {
		transport.Kill()
	}
	for _, p := range w.pending.drainAll() {
		p.buffer.Fail(ErrShutdown)
	}
}

// roundTrip performs one request/response cycle against the child,
// restarting it and retrying up to cfg.MaxRestarts times if the child
// crashes while the request is outstanding.
func (w *Worker) roundTrip(ctx context.Context, command wire.Command, payload any, out any) error {
	for attempt := 0; ; attempt++ {
		raw, err := w.call(ctx, command, payload)
		if err == nil {
			return json.Unmarshal(raw, out)
		}

		if !isRestartable(err) {
			return err
		}
		if attempt >= w.cfg.MaxRestarts {
			return fmt.Errorf("%w: %w", ErrRestartsExhausted, err)
		}

		w.cfg.Log.Warn("host unavailable, restarting", "attempt", attempt+1, "error", err)
		delay := calculateBackoff(attempt+1, w.cfg.InitialBackoff, w.cfg.MaxBackoff, w.cfg.BackoffMultiplier)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		w.restartLocked()
	}
}

func isRestartable(err error) bool {
	switch err.(type) {
	case *CrashError, *FatalNotificationError:
		return true
	default:
		return false
	}
}

// restartLocked discards the current (dead) transport so the next call
// spawns and re-initializes a fresh child.
func (w *Worker) restartLocked() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transport = nil
	w.initialized = false
	w.restarts++
}

// call performs a single request/response cycle with no restart handling:
// ensure the child is ready, send the request, and wait for its response.
func (w *Worker) call(ctx context.Context, command wire.Command, payload any) (json.RawMessage, error) {
	if err := w.ensureReady(ctx); err != nil {
		return nil, err
	}
	if fr, ok := payload.(*wire.FormatRequest); ok {
		fr.SessionID = w.currentSessionID()
	}
	return w.doCall(ctx, command, payload)
}

// currentSessionID returns the session id minted for the child transport
// that is (or is about to be) in use.
func (w *Worker) currentSessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// doCall sends one request and waits for its response without checking or
// establishing readiness first. handshakeLocked uses this directly since
// the initialize request IS the readiness check.
func (w *Worker) doCall(ctx context.Context, command wire.Command, payload any) (json.RawMessage, error) {
	id := uuid.NewString()
	env, err := wire.NewRequest(id, command, payload)
	if err != nil {
		return nil, fmt.Errorf("worker: build request: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("worker: marshal request: %w", err)
	}

	pr := &pendingRequest{
		requestID: id,
		command:   command,
		deadline:  time.Now().Add(w.cfg.RequestTimeout),
		buffer:    NewSharedBuffer(w.cfg.BufferCapacity),
	}
	w.pending.add(pr)

	w.mu.Lock()
	fw := w.fw
	w.mu.Unlock()

	reqCtx, cancel := context.WithDeadline(ctx, pr.deadline)
	defer cancel()

	// The frame is written on its own goroutine so a child that has stopped
	// reading its stdin cannot hold the caller past reqCtx.
	written := make(chan error, 1)
	go func() { written <- fw.WriteFrame(data) }()

	var raw []byte
	select {
	case err = <-written:
		if err != nil {
			w.pending.remove(id)
			return nil, fmt.Errorf("worker: write request: %w", err)
		}
		raw, err = pr.buffer.Wait(reqCtx)
	case <-reqCtx.Done():
		err = reqCtx.Err()
	}
	if err != nil {
		w.pending.remove(id)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrRequestTimeout
		}
		return nil, err
	}
	return raw, nil
}

// ensureReady spawns the child and performs the initialize handshake if
// this is the first call since construction or the last restart.
func (w *Worker) ensureReady(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrShutdown
	}
	if w.transport == nil {
		if err := w.startLocked(); err != nil {
			return err
		}
	}
	if !w.initialized {
		if err := w.handshakeLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) startLocked() error {
	transport, err := w.spawn()
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	w.transport = transport
	w.fw = wire.NewFrameWriter(transport.Stdin())
	w.state = stateRunning
	w.sessionID = uuid.NewString()

	g, gctx := errgroup.WithContext(context.Background())
	w.group = g
	g.Go(func() error { return w.readLoop(transport) })
	g.Go(func() error { return w.watchExit(gctx, transport) })
	return nil
}

// handshakeLocked performs the initialize request. It is called with w.mu
// held but unlocks around the actual round trip, since doCall needs to
// read w.fw and the read loop needs to deliver the response concurrently.
func (w *Worker) handshakeLocked(ctx context.Context) error {
	w.mu.Unlock()
	defer w.mu.Lock()

	hctx, cancel := context.WithTimeout(ctx, w.cfg.HandshakeTimeout)
	defer cancel()

	raw, err := w.doCall(hctx, wire.CommandInitialize, wire.InitializeRequest{
		ClientVersion: w.cfg.ClientVersion,
		Platform:      w.cfg.Platform,
	})
	if err != nil {
		if hctx.Err() != nil {
			return ErrHandshakeTimeout
		}
		return err
	}

	var resp wire.InitializeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !resp.OK {
		return fmt.Errorf("worker: initialize rejected: %s", resp.Reason)
	}

	w.mu.Lock()
	w.initialized = true
	w.mu.Unlock()
	return nil
}

// readLoop decodes frames from the child's stdout until it closes, routing
// responses to their pending request and notifications to their handler.
// It returns nil unconditionally: an unreadable stream just means the child
// is gone, which watchExit — running alongside it in the same errgroup —
// is responsible for turning into a rejection.
func (w *Worker) readLoop(transport childTransport) error {
	fr := wire.NewFrameReader(transport.Stdout())
	for {
		body, err := fr.ReadFrame()
		if err != nil {
			return nil
		}

		var env wire.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			continue
		}

		switch env.Type {
		case wire.TypeResponse:
			if pr, ok := w.pending.remove(env.RequestID); ok {
				pr.buffer.Publish(env.Payload)
			}
		case wire.TypeNotification:
			w.handleNotification(&env)
		}
	}
}

func (w *Worker) handleNotification(env *wire.Envelope) {
	switch env.Command {
	case wire.CommandLog:
		var n wire.LogNotification
		if err := env.Unmarshal(&n); err != nil {
			return
		}
		w.forwardLog(n)
	case wire.CommandError:
		var n wire.ErrorNotification
		if err := env.Unmarshal(&n); err != nil {
			return
		}
		if w.cfg.OnErrorNotification != nil {
			w.cfg.OnErrorNotification(n)
		}
		if n.Severity == wire.ErrorSeverityFatal {
			w.rejectAll(&FatalNotificationError{ErrorCode: n.ErrorCode, Message: n.Message})
		} else {
			w.cfg.Log.Warn("host reported recoverable error", "errorCode", n.ErrorCode, "message", n.Message)
		}
	}
}

func (w *Worker) forwardLog(n wire.LogNotification) {
	attrs := []any{"message", n.Message}
	if n.TraceToken != "" {
		attrs = append(attrs, "traceToken", n.TraceToken)
	}
	switch n.Level {
	case wire.LogDebug:
		w.cfg.Log.Debug("host log", attrs...)
	case wire.LogWarn:
		w.cfg.Log.Warn("host log", attrs...)
	case wire.LogError:
		w.cfg.Log.Error("host log", attrs...)
	default:
		w.cfg.Log.Info("host log", attrs...)
	}
}

// watchExit waits for the child to exit and rejects any requests still
// outstanding with a descriptive crash error. It runs in the same errgroup
// as readLoop so a detected exit is reported through the group like any
// other worker-lifecycle failure.
func (w *Worker) watchExit(gctx context.Context, transport childTransport) error {
	select {
	case err, ok := <-transport.Wait():
		if !ok {
			return nil
		}
		code, signal := exitDescription(err)
		crash := &CrashError{Code: code, Signal: signal}
		w.rejectAll(crash)
		return crash
	case <-gctx.Done():
		return nil
	}
}

func (w *Worker) rejectAll(err error) {
	w.mu.Lock()
	if w.transport != nil {
		w.transport.Kill()
	}
	w.transport = nil
	w.initialized = false
	w.mu.Unlock()

	for _, p := range w.pending.drainAll() {
		p.buffer.Fail(err)
	}
}
