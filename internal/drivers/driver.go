// Package drivers defines the resource driver surface of the runtime: the
// Driver interface, the scheme registry that dispatches guest URIs, the
// built-in drivers and the closed error taxonomies shared with the host-call
// bridge.
package drivers

import (
	"context"
	"io"
)

// HostFile is the guest-visible view of an opened resource. Reads and writes
// move bytes between the guest and the resource; Close releases it.
type HostFile interface {
	io.Reader
	io.Writer
	io.Closer
}

// Driver opens resources for one URI scheme. Name is the scheme it serves,
// compared case-insensitively by the registry. opts is a driver-specific
// option document, usually JSON, and may be empty.
type Driver interface {
	Name() string
	Open(ctx context.Context, uri string, opts string) (HostFile, error)
}

// HTTPDriver is the session-oriented surface the http host calls need on
// top of Driver. Handles are driver-scoped small integers; ReadBody returns
// successive body slices and reports exhaustion with a zero count.
type HTTPDriver interface {
	Driver
	Req(ctx context.Context, rawURL, opts string) (handle uint32, status int, err error)
	ReadHeader(handle uint32, name string) (string, error)
	ReadBody(handle uint32, buf []byte) (int, error)
	CloseSession(handle uint32) error
}
