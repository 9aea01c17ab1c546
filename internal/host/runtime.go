// Package host implements the format host process: a single-threaded
// read-dispatch-write loop speaking the wire protocol defined in
// internal/wire over the process's standard input and output.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/codeformat/fmtbridge/internal/config"
	"github.com/codeformat/fmtbridge/internal/formatter"
	"github.com/codeformat/fmtbridge/internal/wire"
)

// Version is the host's own version string, reported during initialize.
const Version = "1.0.0"

// Runtime runs the read-dispatch-write loop against a formatter.Formatter.
// It has no concurrency of its own: at most one command is ever being
// processed at a time, matching spec.md §5's "no concurrent format may be
// in flight" invariant.
type Runtime struct {
	fr        *wire.FrameReader
	fw        *wire.FrameWriter
	formatter formatter.Formatter
	log       *slog.Logger
	cfg       config.HostConfig

	start       time.Time
	initialized bool

	exiting  bool
	exitCode int
}

// New constructs a Runtime reading frames from r and writing responses to w.
func New(r io.Reader, w io.Writer, f formatter.Formatter, log *slog.Logger, cfg config.HostConfig) *Runtime {
	return &Runtime{
		fr:        wire.NewFrameReader(r),
		fw:        wire.NewFrameWriter(w),
		formatter: f,
		log:       log,
		cfg:       cfg,
		start:     time.Now(),
	}
}

// Run executes the read-dispatch-write loop until end-of-input, a shutdown
// request, a fatal protocol error, or ctx cancellation. It returns the
// process exit code the caller should use.
func (rt *Runtime) Run(ctx context.Context) int {
	for {
		select {
		case <-ctx.Done():
			return 0
		default:
		}

		body, err := rt.fr.ReadFrame()
		if err != nil {
			return rt.handleReadError(err)
		}

		rt.handleFrame(body)
		if rt.exiting {
			return rt.exitCode
		}
	}
}

func (rt *Runtime) handleReadError(err error) int {
	var ferr *wire.FrameError
	if errors.As(err, &ferr) {
		// spec.md §7: INVALID_HEADERS is not recoverable at the host level —
		// a garbled frame boundary means the stream itself can no longer be
		// trusted, even though the codec itself could keep decoding.
		rt.log.Error("invalid frame headers, exiting", "reason", ferr.Reason)
		return 1
	}
	if err == io.EOF {
		rt.log.Info("end of input, shutting down cleanly")
		return 0
	}
	rt.log.Error("read frame failed", "error", err)
	return 1
}

func (rt *Runtime) handleFrame(body []byte) {
	probe := wire.ProbeRaw(body)

	var env wire.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		rt.sendFailure(probe.RequestID, probe.Command, wire.ErrInvalidJSON, "request body is not valid JSON")
		return
	}

	if perr := wire.Validate(&env); perr != nil {
		rt.sendFailure(env.RequestID, env.Command, perr.Code, perr.Message)
		return
	}

	if env.Type != wire.TypeRequest {
		rt.sendFailure(env.RequestID, env.Command, wire.ErrInvalidMessage, "host only accepts request envelopes")
		return
	}

	rt.dispatch(&env)
}

func (rt *Runtime) requestExit(code int) {
	rt.exiting = true
	rt.exitCode = code
}

func (rt *Runtime) writeEnvelope(env *wire.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		rt.log.Error("marshal envelope failed", "error", err)
		return
	}
	if err := rt.fw.WriteFrame(data); err != nil {
		rt.log.Error("write frame failed", "error", err)
	}
}

func (rt *Runtime) respond(env *wire.Envelope, payload any) {
	resp, err := wire.NewResponse(env.RequestID, env.Command, payload)
	if err != nil {
		rt.log.Error("build response failed", "error", err)
		return
	}
	rt.writeEnvelope(resp)
}

func (rt *Runtime) respondError(env *wire.Envelope, code wire.ErrCode, message string) {
	rt.sendFailure(env.RequestID, env.Command, code, message)
}

// sendFailure reports a protocol-level failure. When a requestId could be
// recovered it is returned as an error response correlated to that id;
// otherwise it is reported as a recoverable error notification, per
// spec.md §4.2.
func (rt *Runtime) sendFailure(requestID string, command wire.Command, code wire.ErrCode, message string) {
	if requestID == "" {
		rt.notifyError(wire.ErrorSeverityRecoverable, code, message, nil)
		return
	}

	resp, err := wire.NewResponse(requestID, command, wire.ErrorPayload{
		OK:        false,
		ErrorCode: string(code),
		Message:   message,
	})
	if err != nil {
		rt.log.Error("build error response failed", "error", err)
		return
	}
	rt.writeEnvelope(resp)
}

func (rt *Runtime) notifyLog(level wire.LogLevel, message, traceToken string, fields map[string]any) {
	notif, err := wire.NewNotification(wire.CommandLog, wire.LogNotification{
		Level:      level,
		Message:    message,
		TraceToken: traceToken,
		Context:    fields,
	})
	if err != nil {
		rt.log.Error("build log notification failed", "error", err)
		return
	}
	rt.writeEnvelope(notif)
}

func (rt *Runtime) notifyError(severity wire.ErrorSeverity, code wire.ErrCode, message string, details map[string]any) {
	notif, err := wire.NewNotification(wire.CommandError, wire.ErrorNotification{
		Severity:  severity,
		ErrorCode: string(code),
		Message:   message,
		Details:   details,
	})
	if err != nil {
		rt.log.Error("build error notification failed", "error", err)
		return
	}
	rt.writeEnvelope(notif)
}
