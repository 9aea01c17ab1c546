package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// SharedBuffer is the hand-off point between the worker's read loop and a
// caller blocked in Format/Ping/Shutdown. The read loop publishes a decoded
// response payload once under the buffer's mutex; length is stored
// atomically and the ready channel wakes the waiter, which then takes the
// same mutex to copy out the fully written payload. This stands in for the release/
// acquire pair a shared-memory transport would use between a producer and
// consumer thread.
//
// A published payload is always host-shaped response bytes (Fail is for
// transport-level failures, like a crashed child, that never produced any
// bytes at all).
type SharedBuffer struct {
	mu       sync.Mutex
	payload  []byte
	capacity int
	length   atomic.Int32
	failed   atomic.Bool
	err      error
	ready    chan struct{}
}

// NewSharedBuffer allocates a SharedBuffer with the given payload capacity.
func NewSharedBuffer(capacity int) *SharedBuffer {
	return &SharedBuffer{
		payload:  make([]byte, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Publish delivers a decoded host response. A payload larger than the
// buffer's capacity is replaced with a buffer-overflow error payload rather
// than truncated.
func (b *SharedBuffer) Publish(payload []byte) {
	if len(payload) > b.capacity {
		payload = overflowPayload()
	}

	b.mu.Lock()
	n := copy(b.payload, payload)
	b.mu.Unlock()

	b.length.Store(int32(n))
	b.wake()
}

// Fail marks the request as undeliverable — the child crashed, was
// restarted, or reported a fatal error before a response arrived.
func (b *SharedBuffer) Fail(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.failed.Store(true)
	b.wake()
}

func (b *SharedBuffer) wake() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Wait blocks until a response is published, a failure is recorded, or ctx
// is done, then returns the delivered payload.
func (b *SharedBuffer) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-b.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failed.Load() {
		return nil, b.err
	}
	n := b.length.Load()
	out := make([]byte, n)
	copy(out, b.payload[:n])
	return out, nil
}

func overflowPayload() []byte {
	data, _ := json.Marshal(struct {
		OK        bool   `json:"ok"`
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}{
		OK:        false,
		ErrorCode: "INTERNAL_ERROR",
		Message:   "response exceeded the worker's shared buffer capacity",
	})
	return data
}
