package drivers

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Registry maps lowercased URI schemes to drivers. It is constructed
// explicitly and handed to whoever dispatches guest calls; there is no
// process-global registry.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver under its lowercased name. Registering a second
// driver for the same scheme replaces the first; the last registration wins.
func (r *Registry) Register(d Driver) {
	key := strings.ToLower(d.Name())
	r.mu.Lock()
	if _, exists := r.drivers[key]; exists {
		slog.Debug("replacing registered driver", "scheme", key)
	}
	r.drivers[key] = d
	r.mu.Unlock()
}

// Find returns the driver registered for a scheme, case-insensitively.
func (r *Registry) Find(scheme string) (Driver, bool) {
	r.mu.RLock()
	d, ok := r.drivers[strings.ToLower(scheme)]
	r.mu.RUnlock()
	return d, ok
}

// Resolve finds the driver for a full URI by its scheme. A URI that does not
// parse, carries no scheme (a bare host:port has none), or names a scheme
// nothing is registered for resolves to no driver, which is not an error at
// this layer.
func (r *Registry) Resolve(uri string) (Driver, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	return r.Find(u.Scheme)
}

// Schemes lists the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.drivers))
	for k := range r.drivers {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
