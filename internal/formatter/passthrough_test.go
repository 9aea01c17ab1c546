package formatter

import (
	"context"
	"testing"

	"github.com/codeformat/fmtbridge/internal/wire"
)

func TestPassThroughFormatsWholeDocument(t *testing.T) {
	src := "line one   \r\nline two\t\r\n"
	res, err := PassThrough{}.Format(context.Background(), src, nil, wire.FormattingOptions{})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "line one\nline two\n"
	if res.Formatted != want {
		t.Errorf("Format() = %q, want %q", res.Formatted, want)
	}
	if len(res.ParseDiagnostics) != 0 {
		t.Errorf("ParseDiagnostics = %v, want empty", res.ParseDiagnostics)
	}
}

func TestPassThroughFormatsOnlyRequestedRange(t *testing.T) {
	src := "func one() {}\nfunc two() {  \n}\n"
	start := len("func one() {}\n")
	rng := &wire.TextRange{Start: start, End: len(src)}

	res, err := PassThrough{}.Format(context.Background(), src, rng, wire.FormattingOptions{})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	if got := res.Formatted[:start]; got != src[:start] {
		t.Errorf("text outside range changed: got %q, want %q", got, src[:start])
	}
	want := "func one() {}\nfunc two() {\n}\n"
	if res.Formatted != want {
		t.Errorf("Format() = %q, want %q", res.Formatted, want)
	}
}
