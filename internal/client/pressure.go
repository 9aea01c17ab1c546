package client

import (
	"log/slog"
	"sync"

	"github.com/codeformat/fmtbridge/internal/wire"
)

// pressureThreshold is the fraction of the memory budget a reported working
// set must reach for a format response to count as a "pressure hit"
// (spec.md §4.5).
const pressureThreshold = 0.85

// consecutiveHitsForWarning is how many pressure (or guard) hits in a row
// trigger the one-shot advisory warning.
const consecutiveHitsForWarning = 3

// pressureTracker counts consecutive signs of memory pressure across format
// calls and emits each advisory warning at most once per client instance.
type pressureTracker struct {
	mu sync.Mutex

	budgetMb float64
	log      *slog.Logger

	pressureStreak int
	guardStreak    int
	warnedPressure bool
	warnedGuard    bool
}

func newPressureTracker(budgetMb float64, log *slog.Logger) *pressureTracker {
	return &pressureTracker{budgetMb: budgetMb, log: log}
}

// observeSuccess updates the pressure-hit streak from a successful format
// response's reported working set.
func (p *pressureTracker) observeSuccess(metrics *wire.Metrics) {
	if metrics == nil || metrics.WorkingSetMb == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if *metrics.WorkingSetMb >= pressureThreshold*p.budgetMb {
		p.pressureStreak++
	} else {
		p.pressureStreak = 0
	}

	if p.pressureStreak >= consecutiveHitsForWarning && !p.warnedPressure {
		p.warnedPressure = true
		p.log.Warn("host working set has repeatedly approached its memory budget; consider raising HOST_MEMORY_BUDGET_MB",
			"workingSetMb", *metrics.WorkingSetMb, "budgetMb", p.budgetMb)
	}
}

// observeErrorCode updates the guard-hit streak from a failed format
// response's error code.
func (p *pressureTracker) observeErrorCode(errorCode string) {
	if errorCode != "MEMORY_BUDGET_EXCEEDED" {
		p.mu.Lock()
		p.guardStreak = 0
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.guardStreak++
	if p.guardStreak >= consecutiveHitsForWarning && !p.warnedGuard {
		p.warnedGuard = true
		p.log.Warn("host memory guard has tripped repeatedly; review telemetry for a sustained working-set trend")
	}
}
