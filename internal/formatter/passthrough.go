package formatter

import (
	"context"
	"strings"

	"github.com/codeformat/fmtbridge/internal/wire"
)

// PassThrough is a reference Formatter that performs whitespace and
// line-ending normalization only: it strips trailing whitespace from every
// line and collapses CRLF/CR to LF. It never reports parse diagnostics.
//
// It exists so the host runtime is runnable and testable without a real
// formatting engine wired in.
type PassThrough struct{}

// Format implements Formatter.
func (PassThrough) Format(_ context.Context, source string, rng *wire.TextRange, _ wire.FormattingOptions) (Result, error) {
	prefix, target, suffix := source, "", ""
	if rng != nil {
		prefix, target, suffix = source[:rng.Start], source[rng.Start:rng.End], source[rng.End:]
	} else {
		prefix, target = "", source
	}

	return Result{Formatted: prefix + normalizeWhitespace(target) + suffix}, nil
}

// normalizeWhitespace collapses CRLF/CR to LF and trims trailing whitespace
// from every line, leaving the line structure otherwise intact.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
