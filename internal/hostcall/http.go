package hostcall

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tetratelabs/wazero/api"

	"github.com/blocklessnetwork/runtime/internal/drivers"
	"github.com/blocklessnetwork/runtime/internal/permissions"
)

// httpErrno collapses a driver error into the HTTP errno for the guest.
func httpErrno(err error) uint32 {
	var kind drivers.HTTPErrorKind
	if errors.As(err, &kind) {
		return kind.Errno()
	}
	if permissions.IsDenied(err) {
		return drivers.HTTPPermissionDeny.Errno()
	}
	return drivers.HTTPRuntimeError.Errno()
}

func memErrno(err error) uint32 {
	switch {
	case errors.Is(err, errGuestUTF8):
		return drivers.HTTPUtf8Error.Errno()
	case errors.Is(err, errGuestTooSmall):
		return drivers.HTTPBufferTooSmall.Errno()
	default:
		return drivers.HTTPMemoryAccessError.Errno()
	}
}

// httpReq implements http_req(url_ptr, url_len, opts_ptr, opts_len,
// fd_ptr, code_ptr) -> errno.
func (b *Bridge) httpReq(ctx context.Context, mod api.Module, stack []uint64) {
	urlPtr, urlLen := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	optsPtr, optsLen := api.DecodeU32(stack[2]), api.DecodeU32(stack[3])
	fdPtr, codePtr := api.DecodeU32(stack[4]), api.DecodeU32(stack[5])

	stack[0] = uint64(b.doHTTPReq(ctx, mod, urlPtr, urlLen, optsPtr, optsLen, fdPtr, codePtr))
}

func (b *Bridge) doHTTPReq(ctx context.Context, mod api.Module, urlPtr, urlLen, optsPtr, optsLen, fdPtr, codePtr uint32) uint32 {
	rawURL, err := readGuestString(mod, urlPtr, urlLen)
	if err != nil {
		return memErrno(err)
	}

	// The permission gate comes before the option read and before any
	// driver work; a denied request must not touch the network.
	if err := b.perms.CheckNetURL(rawURL, "http_req"); err != nil {
		slog.Debug("http_req denied", "url", rawURL)
		return drivers.HTTPPermissionDeny.Errno()
	}

	opts, err := readGuestString(mod, optsPtr, optsLen)
	if err != nil {
		return memErrno(err)
	}

	driver, ok := b.httpDriver()
	if !ok {
		return drivers.HTTPInvalidDriver.Errno()
	}
	handle, status, err := driver.Req(ctx, rawURL, opts)
	if err != nil {
		return httpErrno(err)
	}

	if err := writeGuestUint32(mod, fdPtr, handle); err != nil {
		driver.CloseSession(handle)
		return memErrno(err)
	}
	if err := writeGuestUint32(mod, codePtr, uint32(status)); err != nil {
		driver.CloseSession(handle)
		return memErrno(err)
	}
	return drivers.HTTPSuccess.Errno()
}

// httpReadHeader implements http_read_header(fd, name_ptr, name_len,
// buf_ptr, buf_len, num_ptr) -> errno.
func (b *Bridge) httpReadHeader(ctx context.Context, mod api.Module, stack []uint64) {
	fd := api.DecodeU32(stack[0])
	namePtr, nameLen := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	bufPtr, bufLen := api.DecodeU32(stack[3]), api.DecodeU32(stack[4])
	numPtr := api.DecodeU32(stack[5])

	stack[0] = uint64(b.doHTTPReadHeader(mod, fd, namePtr, nameLen, bufPtr, bufLen, numPtr))
}

func (b *Bridge) doHTTPReadHeader(mod api.Module, fd, namePtr, nameLen, bufPtr, bufLen, numPtr uint32) uint32 {
	name, err := readGuestString(mod, namePtr, nameLen)
	if err != nil {
		return memErrno(err)
	}
	driver, ok := b.httpDriver()
	if !ok {
		return drivers.HTTPInvalidDriver.Errno()
	}
	value, err := driver.ReadHeader(fd, name)
	if err != nil {
		return httpErrno(err)
	}
	if err := writeGuestBytes(mod, bufPtr, bufLen, []byte(value)); err != nil {
		return memErrno(err)
	}
	if err := writeGuestUint32(mod, numPtr, uint32(len(value))); err != nil {
		return memErrno(err)
	}
	return drivers.HTTPSuccess.Errno()
}

// httpReadBody implements http_read_body(fd, buf_ptr, buf_len, num_ptr) ->
// errno. A zero count in num means the body is exhausted.
func (b *Bridge) httpReadBody(ctx context.Context, mod api.Module, stack []uint64) {
	fd := api.DecodeU32(stack[0])
	bufPtr, bufLen := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	numPtr := api.DecodeU32(stack[3])

	stack[0] = uint64(b.doHTTPReadBody(mod, fd, bufPtr, bufLen, numPtr))
}

func (b *Bridge) doHTTPReadBody(mod api.Module, fd, bufPtr, bufLen, numPtr uint32) uint32 {
	driver, ok := b.httpDriver()
	if !ok {
		return drivers.HTTPInvalidDriver.Errno()
	}
	if err := checkGuestRange(mod, bufPtr, bufLen); err != nil {
		return memErrno(err)
	}
	buf := make([]byte, bufLen)
	n, err := driver.ReadBody(fd, buf)
	if err != nil {
		return httpErrno(err)
	}
	if n > 0 {
		if err := writeGuestBytes(mod, bufPtr, bufLen, buf[:n]); err != nil {
			return memErrno(err)
		}
	}
	if err := writeGuestUint32(mod, numPtr, uint32(n)); err != nil {
		return memErrno(err)
	}
	return drivers.HTTPSuccess.Errno()
}

// httpClose implements http_close(fd) -> errno.
func (b *Bridge) httpClose(ctx context.Context, mod api.Module, stack []uint64) {
	fd := api.DecodeU32(stack[0])

	driver, ok := b.httpDriver()
	if !ok {
		stack[0] = uint64(drivers.HTTPInvalidDriver.Errno())
		return
	}
	if err := driver.CloseSession(fd); err != nil {
		stack[0] = uint64(httpErrno(err))
		return
	}
	stack[0] = uint64(drivers.HTTPSuccess.Errno())
}
