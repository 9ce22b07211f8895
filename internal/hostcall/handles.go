package hostcall

import (
	"io"
	"sync"
)

// HandleTable issues small-int handles for host-side resources. A handle is
// unique among live handles, never 0, and dead after Close.
type HandleTable struct {
	mu   sync.Mutex
	next uint32
	open map[uint32]io.Closer
}

// NewHandleTable returns an empty table. The first handle issued is 1.
func NewHandleTable() *HandleTable {
	return &HandleTable{next: 1, open: make(map[uint32]io.Closer)}
}

// Push stores the resource and returns its handle.
func (t *HandleTable) Push(r io.Closer) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		h := t.next
		t.next++
		if t.next == 0 {
			t.next = 1
		}
		if _, taken := t.open[h]; !taken && h != 0 {
			t.open[h] = r
			return h
		}
	}
}

// Get returns the resource behind a live handle.
func (t *HandleTable) Get(handle uint32) (io.Closer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.open[handle]
	return r, ok
}

// Close releases the handle and closes its resource. Closing a handle that
// was never issued, or a second time, reports false.
func (t *HandleTable) Close(handle uint32) bool {
	t.mu.Lock()
	r, ok := t.open[handle]
	delete(t.open, handle)
	t.mu.Unlock()
	if !ok {
		return false
	}
	r.Close()
	return true
}

// CloseAll releases every live handle.
func (t *HandleTable) CloseAll() {
	t.mu.Lock()
	open := t.open
	t.open = make(map[uint32]io.Closer)
	t.mu.Unlock()
	for _, r := range open {
		r.Close()
	}
}

// Len reports the live handle count.
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
