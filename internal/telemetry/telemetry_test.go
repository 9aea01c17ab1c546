package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeformat/fmtbridge/internal/wire"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestRecordWritesOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sink.Close()

	if err := sink.Record(Event{Timestamp: 1, Success: true, ElapsedMs: 12.5, Options: wire.FormattingOptions{PrintWidth: 80}}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := sink.Record(Event{Timestamp: 2, Success: false, ErrorCode: "MEMORY_BUDGET_EXCEEDED", Error: "boom"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0]["success"] != true {
		t.Errorf("lines[0][success] = %v, want true", lines[0]["success"])
	}
	if lines[1]["errorCode"] != "MEMORY_BUDGET_EXCEEDED" {
		t.Errorf("lines[1][errorCode] = %v, want MEMORY_BUDGET_EXCEEDED", lines[1]["errorCode"])
	}
	if _, present := lines[0]["error"]; present {
		t.Error("lines[0] should omit the error field when there was no error")
	}
}

func TestRecordOmitsOptionalMemoryFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sink.Close()

	if err := sink.Record(Event{Timestamp: 1, Success: true}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	lines := readLines(t, path)
	for _, field := range []string{"managedMemoryMb", "workingSetMb", "workingSetDeltaMb", "range"} {
		if _, present := lines[0][field]; present {
			t.Errorf("lines[0] should omit %q when not supplied", field)
		}
	}
}

func TestOpenRotatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	if err := os.WriteFile(path, make([]byte, maxFileSize+1), 0o600); err != nil {
		t.Fatalf("seed oversized file: %v", err)
	}

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sink.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("file size after Open() = %d, want 0 (truncated)", info.Size())
	}
}
