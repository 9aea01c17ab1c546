package host

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/codeformat/fmtbridge/internal/wire"
)

func (rt *Runtime) dispatch(env *wire.Envelope) {
	switch env.Command {
	case wire.CommandInitialize:
		rt.handleInitialize(env)
	case wire.CommandFormat:
		rt.handleFormat(env)
	case wire.CommandPing:
		rt.handlePing(env)
	case wire.CommandShutdown:
		rt.handleShutdown(env)
	default:
		rt.respondError(env, wire.ErrUnknownCommand, fmt.Sprintf("command %q is not dispatchable", env.Command))
	}
}

func (rt *Runtime) handleInitialize(env *wire.Envelope) {
	if rt.initialized {
		rt.respondError(env, wire.ErrAlreadyInitialized, "initialize already completed for this host")
		return
	}

	var req wire.InitializeRequest
	if err := env.Unmarshal(&req); err != nil {
		rt.respondError(env, wire.ErrInvalidMessage, "malformed initialize payload")
		return
	}
	if req.ClientVersion == "" || req.Platform == "" {
		rt.respondError(env, wire.ErrInvalidMessage, "clientVersion and platform are required")
		return
	}

	rt.initialized = true
	rt.respond(env, wire.InitializeResponse{
		OK:          true,
		HostVersion: Version,
		Capabilities: &wire.Capabilities{
			SupportsRangeFormatting: true,
			SupportsDiagnostics:     true,
			SupportsTelemetry:       true,
		},
	})

	rt.notifyLog(wire.LogInfo, "initialize completed", "", map[string]any{
		"clientVersion": req.ClientVersion,
		"platform":      req.Platform,
		"hostVersion":   Version,
	})
}

func (rt *Runtime) handlePing(env *wire.Envelope) {
	var req wire.PingRequest
	_ = env.Unmarshal(&req)

	ts := time.Now().UnixMilli()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	rt.respond(env, wire.PingResponse{
		OK:             true,
		Timestamp:      ts,
		UptimeMs:       time.Since(rt.start).Milliseconds(),
		ActiveRequests: 0,
	})
}

func (rt *Runtime) handleShutdown(env *wire.Envelope) {
	rt.respond(env, wire.ShutdownResponse{OK: true})
	rt.requestExit(0)
}

func (rt *Runtime) handleFormat(env *wire.Envelope) {
	if !rt.initialized {
		rt.respondError(env, wire.ErrNotInitialized, "format requires initialize first")
		return
	}

	var req wire.FormatRequest
	if err := env.Unmarshal(&req); err != nil {
		rt.respondError(env, wire.ErrInvalidMessage, "malformed format payload")
		return
	}
	if perr := wire.ValidateFormatRequest(&req); perr != nil {
		rt.respondError(env, perr.Code, perr.Message)
		return
	}

	opts := clampOptions(req.Options)
	rng := clampRange(req.Range, len(req.Content))

	before := sampleMemory()
	callStart := time.Now()

	result, err := rt.formatter.Format(context.Background(), req.Content, rng, opts)
	elapsed := time.Since(callStart)
	if err != nil {
		rt.respond(env, wire.FormatResponse{
			OK:        false,
			ErrorCode: string(wire.ErrFormatFailed),
			Message:   err.Error(),
		})
		return
	}

	formatted := normalizeEndOfLine(result.Formatted, opts.EndOfLine)
	diags := append([]wire.Diagnostic{}, result.ParseDiagnostics...)
	diags = append(diags, findTODODiagnostics(formatted)...)

	after := sampleMemory()
	managed := after.HeapAllocMB
	workingSet := after.SysMB
	delta := workingSet - before.SysMB
	if delta < 0 {
		delta = 0
	}
	budget := float64(rt.cfg.MemoryBudgetMB)

	if workingSet > budget {
		rt.handleMemoryBudgetExceeded(env, managed, workingSet, delta, budget)
		return
	}

	rt.respond(env, wire.FormatResponse{
		OK:          true,
		Formatted:   formatted,
		Diagnostics: diags,
		Metrics: &wire.Metrics{
			ElapsedMs:         float64(elapsed.Microseconds()) / 1000,
			ParseDiagnostics:  len(result.ParseDiagnostics),
			ManagedMemoryMb:   &managed,
			WorkingSetMb:      &workingSet,
			WorkingSetDeltaMb: &delta,
		},
	})

	rt.notifyLog(wire.LogDebug, "format completed", req.TraceToken, map[string]any{
		"elapsedMs":   elapsed.Milliseconds(),
		"diagnostics": len(diags),
	})
}

func (rt *Runtime) handleMemoryBudgetExceeded(env *wire.Envelope, managed, workingSet, delta, budget float64) {
	details := &wire.FormatDetails{
		ManagedMemoryMb:   managed,
		WorkingSetMb:      workingSet,
		WorkingSetDeltaMb: delta,
		BudgetMb:          budget,
	}

	rt.respond(env, wire.FormatResponse{
		OK:        false,
		ErrorCode: string(wire.ErrMemoryBudgetExceeded),
		Message:   "working set exceeded the configured memory budget",
		Details:   details,
	})
	rt.notifyError(wire.ErrorSeverityFatal, wire.ErrMemoryBudgetExceeded, "working set exceeded the configured memory budget", map[string]any{
		"managedMemoryMb":   managed,
		"workingSetMb":      workingSet,
		"workingSetDeltaMb": delta,
		"budgetMb":          budget,
	})

	debug.FreeOSMemory()
	post := sampleMemory()
	if post.SysMB > 0.9*budget {
		rt.log.Error("memory guard tripped after forced collection", "workingSetMb", post.SysMB, "budgetMb", budget)
		rt.requestExit(86)
	}
}
