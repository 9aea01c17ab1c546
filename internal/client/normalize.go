package client

import "github.com/codeformat/fmtbridge/internal/wire"

// defaultPrintWidth and defaultTabWidth are the fallbacks for unset
// formatting options, and minPrintWidth is the printWidth floor (spec.md
// §4.5 step 1). The endOfLine fallback, lf, is applied in normalizeOptions.
const (
	defaultPrintWidth = 80
	defaultTabWidth   = 4
	minPrintWidth     = 40
)

// normalizeOptions clamps and defaults a caller-supplied FormattingOptions
// per spec.md §4.5 step 1: printWidth truncated and floored at 40 (default
// 80), tabWidth below 1 replaced by the default 4 (standing in for "language
// preferred" since this module has no language-specific defaults table),
// and endOfLine restricted to {lf, crlf} (default lf).
func normalizeOptions(opts wire.FormattingOptions) wire.FormattingOptions {
	if opts.PrintWidth == 0 {
		opts.PrintWidth = defaultPrintWidth
	} else if opts.PrintWidth < minPrintWidth {
		opts.PrintWidth = minPrintWidth
	}

	if opts.TabWidth < 1 {
		opts.TabWidth = defaultTabWidth
	}

	switch opts.EndOfLine {
	case wire.EndOfLineLF, wire.EndOfLineCRLF:
	default:
		opts.EndOfLine = wire.EndOfLineLF
	}

	return opts
}

// normalizeRange applies spec.md §4.5 step 2: a range covering the whole
// document collapses to nil (whole-document format), otherwise start/end
// are clamped into [0, textLen].
func normalizeRange(rng *wire.TextRange, textLen int) *wire.TextRange {
	if rng == nil {
		return nil
	}

	start := rng.Start
	if start < 0 {
		start = 0
	}
	end := rng.End
	if end > textLen {
		end = textLen
	}
	if end <= start {
		end = textLen
	}

	if start == 0 && end == textLen {
		return nil
	}
	return &wire.TextRange{Start: start, End: end}
}
