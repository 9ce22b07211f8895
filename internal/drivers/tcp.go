package drivers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// TCPDriver serves tcp:// URIs by dialing the host:port in the URI and
// handing the connection to the guest as a HostFile. It also backs the
// socket host calls through Connect and Bind.
type TCPDriver struct{}

// Name implements Driver.
func (TCPDriver) Name() string { return "tcp" }

// Open dials the URI target. opts is ignored.
func (d TCPDriver) Open(ctx context.Context, uri string, opts string) (HostFile, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("tcp: bad uri %q: %w", uri, KindDriverBadParams)
	}
	return d.Connect(ctx, u.Host)
}

// Connect dials addr (host:port) over TCP.
func (TCPDriver) Connect(ctx context.Context, addr string) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: connect %s: %w", addr, MapSocketError(err))
	}
	return conn, nil
}

// Bind opens a TCP listener on addr (host:port).
func (TCPDriver) Bind(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: bind %s: %w", addr, MapSocketError(err))
	}
	return ln, nil
}

// MapSocketError collapses a transport error into the socket error taxonomy.
func MapSocketError(err error) SocketErrorKind {
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return SocketAddressInUse
	case errors.Is(err, syscall.ECONNREFUSED):
		return SocketConnectRefused
	case errors.Is(err, syscall.ECONNRESET):
		return SocketConnectionReset
	default:
		return SocketParameterError
	}
}
