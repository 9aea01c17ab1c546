// Package formatter defines the boundary between the host runtime and the
// underlying code-formatting engine. The engine itself — a real
// language-aware pretty-printer — is out of scope; this package only
// specifies the contract a host delegates to and ships one reference
// implementation for running the host end-to-end.
package formatter

import (
	"context"

	"github.com/codeformat/fmtbridge/internal/wire"
)

// Result is the outcome of a successful Format call.
type Result struct {
	// Formatted is the full document text with any requested range
	// replaced by its formatted form; text outside the range, if any, is
	// returned unchanged.
	Formatted string
	// ParseDiagnostics are issues the engine itself observed while
	// formatting (as opposed to the host's own synthetic diagnostics).
	ParseDiagnostics []wire.Diagnostic
}

// Formatter reformats source text. Implementations must be safe to reuse
// across calls but need not be safe for concurrent use — the host runtime
// never has more than one format request in flight at a time.
type Formatter interface {
	Format(ctx context.Context, source string, rng *wire.TextRange, opts wire.FormattingOptions) (Result, error)
}
