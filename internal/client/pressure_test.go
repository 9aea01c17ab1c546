package client

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/codeformat/fmtbridge/internal/wire"
)

func mb(v float64) *float64 { return &v }

func TestPressureTrackerWarnsAfterThreeConsecutiveHits(t *testing.T) {
	var buf bytes.Buffer
	p := newPressureTracker(100, slog.New(slog.NewTextHandler(&buf, nil)))

	for i := 0; i < consecutiveHitsForWarning-1; i++ {
		p.observeSuccess(&wire.Metrics{WorkingSetMb: mb(90)})
	}
	if strings.Contains(buf.String(), "working set") {
		t.Fatal("warned before reaching the consecutive-hit threshold")
	}

	p.observeSuccess(&wire.Metrics{WorkingSetMb: mb(90)})
	if !strings.Contains(buf.String(), "working set") {
		t.Error("expected a pressure warning after 3 consecutive high-working-set responses")
	}
}

func TestPressureTrackerResetsStreakOnLowReading(t *testing.T) {
	var buf bytes.Buffer
	p := newPressureTracker(100, slog.New(slog.NewTextHandler(&buf, nil)))

	p.observeSuccess(&wire.Metrics{WorkingSetMb: mb(90)})
	p.observeSuccess(&wire.Metrics{WorkingSetMb: mb(10)})
	p.observeSuccess(&wire.Metrics{WorkingSetMb: mb(90)})
	p.observeSuccess(&wire.Metrics{WorkingSetMb: mb(90)})

	if strings.Contains(buf.String(), "working set") {
		t.Error("a low reading should have reset the streak, so no warning should fire yet")
	}
}

func TestPressureTrackerWarnsOnlyOnceAcrossMultipleStreaks(t *testing.T) {
	var buf bytes.Buffer
	p := newPressureTracker(100, slog.New(slog.NewTextHandler(&buf, nil)))

	for round := 0; round < 2; round++ {
		for i := 0; i < consecutiveHitsForWarning; i++ {
			p.observeSuccess(&wire.Metrics{WorkingSetMb: mb(90)})
		}
	}

	if n := strings.Count(buf.String(), "working set has repeatedly"); n != 1 {
		t.Errorf("warning emitted %d times, want exactly 1", n)
	}
}

func TestPressureTrackerWarnsAfterThreeGuardHits(t *testing.T) {
	var buf bytes.Buffer
	p := newPressureTracker(100, slog.New(slog.NewTextHandler(&buf, nil)))

	p.observeErrorCode("MEMORY_BUDGET_EXCEEDED")
	p.observeErrorCode("MEMORY_BUDGET_EXCEEDED")
	if strings.Contains(buf.String(), "memory guard") {
		t.Fatal("warned before reaching the consecutive-hit threshold")
	}
	p.observeErrorCode("MEMORY_BUDGET_EXCEEDED")
	if !strings.Contains(buf.String(), "memory guard") {
		t.Error("expected a guard warning after 3 consecutive MEMORY_BUDGET_EXCEEDED errors")
	}
}

func TestPressureTrackerGuardStreakResetsOnOtherErrorCode(t *testing.T) {
	var buf bytes.Buffer
	p := newPressureTracker(100, slog.New(slog.NewTextHandler(&buf, nil)))

	p.observeErrorCode("MEMORY_BUDGET_EXCEEDED")
	p.observeErrorCode("READ_FAILED")
	p.observeErrorCode("MEMORY_BUDGET_EXCEEDED")
	p.observeErrorCode("MEMORY_BUDGET_EXCEEDED")

	if strings.Contains(buf.String(), "memory guard") {
		t.Error("an unrelated error code should have reset the guard streak")
	}
}
