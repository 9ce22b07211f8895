package hostcall

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Host module names exported to the guest.
const (
	HTTPModule   = "blockless_http"
	SocketModule = "blockless_socket"
)

var i32 = api.ValueTypeI32

// RegisterHostModules instantiates the blockless_http and blockless_socket
// host modules on the runtime, bound to this bridge.
func (b *Bridge) RegisterHostModules(ctx context.Context, runtime wazero.Runtime) error {
	httpBuilder := runtime.NewHostModuleBuilder(HTTPModule)

	// http_req(url_ptr, url_len, opts_ptr, opts_len, fd_ptr, code_ptr) -> errno
	httpBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.httpReq),
			[]api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		Export("http_req")

	// http_read_header(fd, name_ptr, name_len, buf_ptr, buf_len, num_ptr) -> errno
	httpBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.httpReadHeader),
			[]api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		Export("http_read_header")

	// http_read_body(fd, buf_ptr, buf_len, num_ptr) -> errno
	httpBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.httpReadBody),
			[]api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}).
		Export("http_read_body")

	// http_close(fd) -> errno
	httpBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.httpClose),
			[]api.ValueType{i32}, []api.ValueType{i32}).
		Export("http_close")

	if _, err := httpBuilder.Instantiate(ctx); err != nil {
		return err
	}

	socketBuilder := runtime.NewHostModuleBuilder(SocketModule)

	// socket_create(family, socktype, fd_ptr) -> errno
	socketBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.socketCreate),
			[]api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		Export("socket_create")

	// create_tcp_bind_socket(addr_ptr, addr_len, fd_ptr) -> errno
	socketBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.tcpBind),
			[]api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		Export("create_tcp_bind_socket")

	// tcp_connect(addr_ptr, addr_len, fd_ptr) -> errno
	socketBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.tcpConnect),
			[]api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		Export("tcp_connect")

	_, err := socketBuilder.Instantiate(ctx)
	return err
}
