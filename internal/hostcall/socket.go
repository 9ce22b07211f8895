package hostcall

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"syscall"

	"github.com/tetratelabs/wazero/api"

	"github.com/blocklessnetwork/runtime/internal/drivers"
)

// Guest-side address family and socket type codes.
const (
	familyUnspec = 0
	familyInet4  = 4
	familyInet6  = 6

	sockTypeDatagram = 0
	sockTypeStream   = 1
)

// socketErrno collapses a socket error into its errno for the guest.
func socketErrno(err error) uint32 {
	var kind drivers.SocketErrorKind
	if errors.As(err, &kind) {
		return kind.Errno()
	}
	return drivers.SocketParameterError.Errno()
}

// socketCreate implements socket_create(family, socktype, fd_ptr) -> errno.
// An unspecified family means IPv4 and an unspecified type means datagram.
func (b *Bridge) socketCreate(ctx context.Context, mod api.Module, stack []uint64) {
	family := api.DecodeU32(stack[0])
	sockType := api.DecodeU32(stack[1])
	fdPtr := api.DecodeU32(stack[2])

	stack[0] = uint64(b.doSocketCreate(mod, family, sockType, fdPtr))
}

func (b *Bridge) doSocketCreate(mod api.Module, family, sockType, fdPtr uint32) uint32 {
	var domain int
	switch family {
	case familyUnspec, familyInet4:
		domain = syscall.AF_INET
	case familyInet6:
		domain = syscall.AF_INET6
	default:
		return drivers.SocketParameterError.Errno()
	}
	var typ int
	switch sockType {
	case sockTypeDatagram:
		typ = syscall.SOCK_DGRAM
	case sockTypeStream:
		typ = syscall.SOCK_STREAM
	default:
		return drivers.SocketParameterError.Errno()
	}

	fd, err := syscall.Socket(domain, typ, 0)
	if err != nil {
		return drivers.SocketParameterError.Errno()
	}
	handle := b.guest(mod).sockets.Push(os.NewFile(uintptr(fd), "socket"))
	if err := writeGuestUint32(mod, fdPtr, handle); err != nil {
		b.guest(mod).sockets.Close(handle)
		return drivers.SocketParameterError.Errno()
	}
	return drivers.SocketSuccess.Errno()
}

// tcpConnect implements tcp_connect(addr_ptr, addr_len, fd_ptr) -> errno.
func (b *Bridge) tcpConnect(ctx context.Context, mod api.Module, stack []uint64) {
	addrPtr, addrLen := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	fdPtr := api.DecodeU32(stack[2])

	stack[0] = uint64(b.doTCPConnect(ctx, mod, addrPtr, addrLen, fdPtr))
}

func (b *Bridge) doTCPConnect(ctx context.Context, mod api.Module, addrPtr, addrLen, fdPtr uint32) uint32 {
	addr, err := readGuestString(mod, addrPtr, addrLen)
	if err != nil {
		return drivers.SocketParameterError.Errno()
	}
	if errno := b.checkNetAddr(addr, "tcp_connect"); errno != 0 {
		return errno
	}

	conn, err := drivers.TCPDriver{}.Connect(ctx, addr)
	if err != nil {
		return socketErrno(err)
	}
	handle := b.guest(mod).sockets.Push(conn)
	if err := writeGuestUint32(mod, fdPtr, handle); err != nil {
		b.guest(mod).sockets.Close(handle)
		return drivers.SocketParameterError.Errno()
	}
	return drivers.SocketSuccess.Errno()
}

// tcpBind implements create_tcp_bind_socket(addr_ptr, addr_len, fd_ptr) ->
// errno.
func (b *Bridge) tcpBind(ctx context.Context, mod api.Module, stack []uint64) {
	addrPtr, addrLen := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	fdPtr := api.DecodeU32(stack[2])

	stack[0] = uint64(b.doTCPBind(mod, addrPtr, addrLen, fdPtr))
}

func (b *Bridge) doTCPBind(mod api.Module, addrPtr, addrLen, fdPtr uint32) uint32 {
	addr, err := readGuestString(mod, addrPtr, addrLen)
	if err != nil {
		return drivers.SocketParameterError.Errno()
	}
	if errno := b.checkNetAddr(addr, "create_tcp_bind_socket"); errno != 0 {
		return errno
	}

	ln, err := drivers.TCPDriver{}.Bind(addr)
	if err != nil {
		return socketErrno(err)
	}
	handle := b.guest(mod).sockets.Push(ln)
	if err := writeGuestUint32(mod, fdPtr, handle); err != nil {
		b.guest(mod).sockets.Close(handle)
		return drivers.SocketParameterError.Errno()
	}
	return drivers.SocketSuccess.Errno()
}

// checkNetAddr gates a host:port address on the net permission class before
// any socket work. The socket errno set has no deny code, so a denial
// surfaces as ParameterError.
func (b *Bridge) checkNetAddr(addr, apiName string) uint32 {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return drivers.SocketParameterError.Errno()
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return drivers.SocketParameterError.Errno()
	}
	if err := b.perms.CheckNet(host, uint16(port), apiName); err != nil {
		slog.Debug("socket call denied", "addr", addr, "api", apiName)
		return drivers.SocketParameterError.Errno()
	}
	return 0
}
