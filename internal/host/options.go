package host

import (
	"strings"

	"github.com/codeformat/fmtbridge/internal/wire"
)

const (
	minTabWidth   = 1
	maxTabWidth   = 16
	minPrintWidth = 40
	maxPrintWidth = 240
)

// clampOptions enforces spec.md §4.3 step 1: tabWidth and printWidth are
// clamped into their valid ranges and endOfLine falls back to lf for any
// unrecognized value.
func clampOptions(opts wire.FormattingOptions) wire.FormattingOptions {
	opts.TabWidth = clampInt(opts.TabWidth, minTabWidth, maxTabWidth)
	opts.PrintWidth = clampInt(opts.PrintWidth, minPrintWidth, maxPrintWidth)
	if opts.EndOfLine != wire.EndOfLineLF && opts.EndOfLine != wire.EndOfLineCRLF {
		opts.EndOfLine = wire.EndOfLineLF
	}
	return opts
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampRange enforces spec.md §4.3 step 2: a range is honored only when it
// is well-formed for the given content length; otherwise the whole document
// is formatted.
func clampRange(rng *wire.TextRange, contentLen int) *wire.TextRange {
	if rng == nil {
		return nil
	}
	if rng.Start < 0 || rng.End <= rng.Start || rng.End > contentLen {
		return nil
	}
	return rng
}

// normalizeEndOfLine converts all newlines in text to the requested style
// and ensures exactly one trailing line terminator (spec.md §4.3 step 5).
func normalizeEndOfLine(text string, eol wire.EndOfLine) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimRight(text, "\n")

	terminator := "\n"
	if eol == wire.EndOfLineCRLF {
		terminator = "\r\n"
		text = strings.ReplaceAll(text, "\n", terminator)
	}
	return text + terminator
}

// findTODODiagnostics synthesizes a warning diagnostic for every literal
// occurrence of the substring "TODO" (spec.md §4.3 step 6).
func findTODODiagnostics(text string) []wire.Diagnostic {
	const needle = "TODO"
	var diags []wire.Diagnostic
	for i := 0; ; {
		idx := strings.Index(text[i:], needle)
		if idx < 0 {
			break
		}
		start := i + idx
		end := start + len(needle)
		diags = append(diags, wire.Diagnostic{
			Severity: wire.SeverityWarning,
			Message:  "TODO comment detected.",
			Start:    intPtr(start),
			End:      intPtr(end),
		})
		i = end
	}
	return diags
}

func intPtr(v int) *int { return &v }
