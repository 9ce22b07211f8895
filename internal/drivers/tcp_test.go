package drivers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPDriver_OpenEcho(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
	}()

	d := TCPDriver{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f, err := d.Open(ctx, "tcp://"+ln.Addr().String(), "")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestTCPDriver_ConnectRefused(t *testing.T) {
	t.Parallel()

	// Grab a free port and release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = TCPDriver{}.Connect(ctx, addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, SocketConnectRefused))
}

func TestTCPDriver_BadURI(t *testing.T) {
	t.Parallel()

	_, err := TCPDriver{}.Open(context.Background(), "tcp://", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, KindDriverBadParams))
}

func TestTCPDriver_BindAddressInUse(t *testing.T) {
	t.Parallel()

	d := TCPDriver{}
	ln, err := d.Bind("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = d.Bind(ln.Addr().String())
	require.Error(t, err)
	assert.True(t, errors.Is(err, SocketAddressInUse))
}

func TestMapSocketError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SocketConnectRefused, MapSocketError(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.Equal(t, SocketAddressInUse, MapSocketError(syscall.EADDRINUSE))
	assert.Equal(t, SocketConnectionReset, MapSocketError(syscall.ECONNRESET))
	assert.Equal(t, SocketParameterError, MapSocketError(errors.New("weird")))
}
