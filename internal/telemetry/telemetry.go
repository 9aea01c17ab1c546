// Package telemetry appends one JSON line per format call to a rotating
// sink file (spec.md §6). It never participates in formatting decisions;
// a telemetry failure is logged by the caller and otherwise ignored.
package telemetry

import (
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/codeformat/fmtbridge/internal/wire"
)

// maxFileSize mirrors the threshold the teacher's own log rotation uses
// before truncating and starting over.
const maxFileSize = 5_000_000

// Event is one format call's telemetry record.
type Event struct {
	Timestamp         int64
	Success           bool
	ElapsedMs         float64
	Diagnostics       int
	Error             string
	ErrorCode         string
	Options           wire.FormattingOptions
	Range             *wire.TextRange
	ManagedMemoryMb   *float64
	WorkingSetMb      *float64
	WorkingSetDeltaMb *float64
	MemoryBudgetMb    float64
}

// Sink is an append-only JSONL file, safe for concurrent use.
type Sink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open opens or creates the sink file at path, truncating it first if it
// has already grown past maxFileSize.
func Open(path string) (*Sink, error) {
	f, err := openForAppend(path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Sink{path: path, file: f}, nil
}

func openForAppend(path string) (*os.File, error) {
	if info, err := os.Stat(path); err == nil && info.Size() >= maxFileSize {
		return os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o600)
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// Record appends one telemetry line, rotating the file first if it has
// grown past maxFileSize since the last write.
func (s *Sink) Record(e Event) error {
	line, err := buildLine(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if info, statErr := s.file.Stat(); statErr == nil && info.Size() >= maxFileSize {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}

	_, err = s.file.Write(append(line, '\n'))
	return err
}

func (s *Sink) rotateLocked() error {
	s.file.Close()
	f, err := os.OpenFile(s.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("telemetry: rotate %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

// Close closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// buildLine assembles one telemetry JSON object field-by-field with sjson,
// so optional fields (error, range, memory observations) are only present
// when the caller actually has them, without hand-building a second struct
// variant per field-presence combination.
func buildLine(e Event) ([]byte, error) {
	line := []byte("{}")
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		line, err = sjson.SetBytes(line, path, value)
	}

	set("timestamp", e.Timestamp)
	set("success", e.Success)
	set("elapsedMs", e.ElapsedMs)
	set("diagnostics", e.Diagnostics)
	if e.Error != "" {
		set("error", e.Error)
	}
	if e.ErrorCode != "" {
		set("errorCode", e.ErrorCode)
	}
	set("options", e.Options)
	if e.Range != nil {
		set("range", e.Range)
	}
	if e.ManagedMemoryMb != nil {
		set("managedMemoryMb", *e.ManagedMemoryMb)
	}
	if e.WorkingSetMb != nil {
		set("workingSetMb", *e.WorkingSetMb)
	}
	if e.WorkingSetDeltaMb != nil {
		set("workingSetDeltaMb", *e.WorkingSetDeltaMb)
	}
	set("memoryBudgetMb", e.MemoryBudgetMb)

	if err != nil {
		return nil, fmt.Errorf("telemetry: build line: %w", err)
	}
	return line, nil
}
