// Package hostcall bridges guest host calls to the resource drivers. Every
// exported function validates guest arguments, checks permissions, then
// dispatches through the driver registry; failures cross the boundary as
// per-domain integer error codes, never as raw host errors. Permission
// denial always precedes any driver I/O.
package hostcall

import (
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/blocklessnetwork/runtime/internal/drivers"
	"github.com/blocklessnetwork/runtime/internal/permissions"
)

// Bridge owns the per-guest state behind the blockless_http and
// blockless_socket host modules. The registry and permission container are
// injected; the bridge has no globals.
type Bridge struct {
	registry *drivers.Registry
	perms    *permissions.Container

	mu       sync.Mutex
	contexts map[string]*guestContext
}

// guestContext is the handle state of one guest module instance, keyed by
// the instance's module name so concurrent guests cannot see each other's
// handles.
type guestContext struct {
	sockets *HandleTable
}

// NewBridge wires a bridge to its registry and permission container.
func NewBridge(registry *drivers.Registry, perms *permissions.Container) *Bridge {
	return &Bridge{
		registry: registry,
		perms:    perms,
		contexts: make(map[string]*guestContext),
	}
}

func (b *Bridge) guest(mod api.Module) *guestContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.contexts[mod.Name()]
	if !ok {
		g = &guestContext{sockets: NewHandleTable()}
		b.contexts[mod.Name()] = g
	}
	return g
}

// httpDriver resolves the registered http driver; a missing registration or
// one without the session surface is InvalidDriver to the guest.
func (b *Bridge) httpDriver() (drivers.HTTPDriver, bool) {
	d, ok := b.registry.Find("http")
	if !ok {
		return nil, false
	}
	h, ok := d.(drivers.HTTPDriver)
	return h, ok
}

// Close releases every handle of every guest context.
func (b *Bridge) Close() {
	b.mu.Lock()
	contexts := b.contexts
	b.contexts = make(map[string]*guestContext)
	b.mu.Unlock()
	for _, g := range contexts {
		g.sockets.CloseAll()
	}
}
