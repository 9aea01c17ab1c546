package worker

import (
	"sync"
	"time"

	"github.com/codeformat/fmtbridge/internal/wire"
)

// pendingRequest tracks one in-flight request awaiting a matching response.
type pendingRequest struct {
	requestID string
	command   wire.Command
	deadline  time.Time
	buffer    *SharedBuffer
}

// pendingTable is the worker's map of in-flight requests, keyed by
// requestId. It may be written to from the goroutine issuing a request and
// read from the read loop delivering a response; both sides take the lock.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingRequest)}
}

func (t *pendingTable) add(p *pendingRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[p.requestID] = p
}

func (t *pendingTable) remove(id string) (*pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return p, ok
}

// drainAll removes and returns every pending request, used when the child
// exits or reports a fatal error while requests are outstanding.
func (t *pendingTable) drainAll() []*pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*pendingRequest, 0, len(t.entries))
	for id, p := range t.entries {
		out = append(out, p)
		delete(t.entries, id)
	}
	return out
}
