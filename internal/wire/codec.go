package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	contentLengthHeader = "content-length"
	headerTerminator    = "\r\n\r\n"
)

// FrameError reports a malformed Content-Length header block. The reader
// discards the offending block up to and including its terminator and does
// not attempt to resync further into the stream; the next ReadFrame call
// resumes at the following header line.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("wire: invalid frame headers: %s", e.Reason)
}

// FrameReader decodes a stream of Content-Length framed message bodies.
// It is not safe for concurrent use by multiple goroutines.
type FrameReader struct {
	br      *bufio.Reader
	bomSeen bool
}

// NewFrameReader wraps r for frame-at-a-time decoding. A UTF-8 byte order
// mark on the first frame, if present, is stripped transparently.
func NewFrameReader(r io.Reader) *FrameReader {
	dec := unicode.UTF8BOM.NewDecoder()
	return &FrameReader{br: bufio.NewReaderSize(transform.NewReader(r, dec), 64*1024)}
}

// ReadFrame returns the next frame body. A *FrameError indicates one
// malformed header block was discarded; it is not fatal and ReadFrame may be
// called again to continue reading the stream. io.EOF indicates the stream
// ended cleanly between frames.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	length, ferr, err := f.readHeaders()
	if err != nil {
		return nil, err
	}
	if ferr != nil {
		return nil, ferr
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(f.br, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("wire: read frame body: %w", err)
	}
	return body, nil
}

// readHeaders reads one header block terminated by a blank line and returns
// the parsed Content-Length. Per spec.md §4.1 point 4, a blank line seen
// before any header line is a benign trailing separator left over from the
// previous frame, not an empty header block; it is skipped rather than
// treated as malformed. It returns a non-nil *FrameError (and nil Go error)
// when the block is malformed rather than failing the stream outright.
func (f *FrameReader) readHeaders() (int, *FrameError, error) {
	length := -1
	headerLines := 0
	for {
		line, err := f.br.ReadString('\n')
		if err != nil {
			if err == io.EOF && headerLines == 0 && line == "" {
				return 0, nil, io.EOF
			}
			return 0, nil, fmt.Errorf("wire: read frame headers: %w", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if headerLines == 0 {
				continue
			}
			break
		}
		headerLines++
		name, value, ok := strings.Cut(trimmed, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), contentLengthHeader) {
			n, perr := strconv.Atoi(strings.TrimSpace(value))
			if perr == nil && n >= 0 {
				length = n
			}
		}
	}
	if length < 0 {
		return 0, &FrameError{Reason: "missing or unparsable Content-Length header"}, nil
	}
	return length, nil, nil
}

// FrameWriter encodes message bodies as Content-Length framed output. Safe
// for concurrent use by multiple goroutines.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameWriter wraps w for frame-at-a-time encoding.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes a single Content-Length framed body.
func (f *FrameWriter) WriteFrame(body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d%s", len(body), headerTerminator)
	if _, err := io.WriteString(f.w, header); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := f.w.Write(body); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}
