package drivers

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// MemoryDriver serves memory:// URIs from an in-process byte store, keyed by
// the URI host. It exists for guests that need deterministic fixture data
// and for exercising the dispatch path without real I/O.
type MemoryDriver struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryDriver seeds the driver with the given entries. The map is
// copied; later mutation of the argument does not affect the driver.
func NewMemoryDriver(entries map[string][]byte) *MemoryDriver {
	d := &MemoryDriver{entries: make(map[string][]byte, len(entries))}
	for k, v := range entries {
		d.entries[k] = append([]byte(nil), v...)
	}
	return d
}

// Name implements Driver.
func (*MemoryDriver) Name() string { return "memory" }

// Open returns a file over the entry named by the URI host. Reads serve a
// snapshot of the entry at open time; writes append to the stored entry.
func (d *MemoryDriver) Open(ctx context.Context, uri string, opts string) (HostFile, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("memory: bad uri %q: %w", uri, KindDriverBadParams)
	}
	d.mu.Lock()
	data, ok := d.entries[u.Host]
	snapshot := append([]byte(nil), data...)
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memory: no entry %q: %w", u.Host, KindDriverBadOpen)
	}
	return &memoryFile{driver: d, key: u.Host, data: snapshot}, nil
}

type memoryFile struct {
	driver *MemoryDriver
	key    string
	data   []byte
	off    int
	closed bool
}

func (f *memoryFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("memory: read after close: %w", KindBadFileDescriptor)
	}
	if f.off >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.off:])
	f.off += n
	return n, nil
}

func (f *memoryFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("memory: write after close: %w", KindBadFileDescriptor)
	}
	f.driver.mu.Lock()
	f.driver.entries[f.key] = append(f.driver.entries[f.key], p...)
	f.driver.mu.Unlock()
	return len(p), nil
}

func (f *memoryFile) Close() error {
	f.closed = true
	return nil
}
