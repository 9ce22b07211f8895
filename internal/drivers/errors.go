package drivers

// ErrorKind is the closed set of generic driver errors. Every failure that
// crosses the host-call boundary is mapped into exactly one kind; the guest
// sees the numeric code, never a raw transport error.
type ErrorKind uint32

const (
	// KindSuccess is the distinguished zero value meaning no error.
	KindSuccess ErrorKind = iota
	KindConnectError
	KindEOF
	KindMemoryNotExport
	KindBadFileDescriptor
	KindDriverNotFound
	KindAddrNotAvail
	KindDriverBadOpen
	KindDriverBadParams
	KindPermissionDeny
	KindUnknown
)

func (k ErrorKind) Error() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindConnectError:
		return "connect error"
	case KindEOF:
		return "end of file"
	case KindMemoryNotExport:
		return "memory not exported"
	case KindBadFileDescriptor:
		return "bad file descriptor"
	case KindDriverNotFound:
		return "driver not found"
	case KindAddrNotAvail:
		return "address not available"
	case KindDriverBadOpen:
		return "driver bad open"
	case KindDriverBadParams:
		return "driver bad params"
	case KindPermissionDeny:
		return "permission deny"
	default:
		return "unknown error"
	}
}

// Errno returns the wire representation of the kind.
func (k ErrorKind) Errno() uint32 { return uint32(k) }

// KindFromErrno maps a numeric code back to a kind. Codes outside the known
// set collapse to KindUnknown rather than panicking.
func KindFromErrno(code uint32) ErrorKind {
	if code > uint32(KindUnknown) {
		return KindUnknown
	}
	return ErrorKind(code)
}

// HTTPErrorKind is the closed set of HTTP driver errors.
type HTTPErrorKind uint32

const (
	HTTPSuccess HTTPErrorKind = iota
	HTTPInvalidDriver
	HTTPInvalidHandle
	HTTPMemoryAccessError
	HTTPBufferTooSmall
	HTTPHeaderNotFound
	HTTPUtf8Error
	HTTPDestinationNotAllowed
	HTTPInvalidMethod
	HTTPInvalidEncoding
	HTTPInvalidURL
	HTTPRequestError
	HTTPRuntimeError
	HTTPTooManySessions
	HTTPPermissionDeny
)

func (k HTTPErrorKind) Error() string {
	switch k {
	case HTTPSuccess:
		return "success"
	case HTTPInvalidDriver:
		return "invalid driver"
	case HTTPInvalidHandle:
		return "invalid handle"
	case HTTPMemoryAccessError:
		return "memory access error"
	case HTTPBufferTooSmall:
		return "buffer too small"
	case HTTPHeaderNotFound:
		return "header not found"
	case HTTPUtf8Error:
		return "utf8 error"
	case HTTPDestinationNotAllowed:
		return "destination not allowed"
	case HTTPInvalidMethod:
		return "invalid method"
	case HTTPInvalidEncoding:
		return "invalid encoding"
	case HTTPInvalidURL:
		return "invalid url"
	case HTTPRequestError:
		return "request error"
	case HTTPTooManySessions:
		return "too many sessions"
	case HTTPPermissionDeny:
		return "permission deny"
	default:
		return "runtime error"
	}
}

// Errno returns the wire representation of the kind.
func (k HTTPErrorKind) Errno() uint32 { return uint32(k) }

// HTTPKindFromErrno maps a numeric code back to a kind. Unknown codes
// default to HTTPRuntimeError.
func HTTPKindFromErrno(code uint32) HTTPErrorKind {
	if code > uint32(HTTPPermissionDeny) {
		return HTTPRuntimeError
	}
	return HTTPErrorKind(code)
}

// SocketErrorKind is the closed set of socket driver errors.
type SocketErrorKind uint32

const (
	SocketSuccess SocketErrorKind = iota
	SocketAddressInUse
	SocketConnectRefused
	SocketConnectionReset
	SocketParameterError
)

func (k SocketErrorKind) Error() string {
	switch k {
	case SocketSuccess:
		return "success"
	case SocketAddressInUse:
		return "address in use"
	case SocketConnectRefused:
		return "connection refused"
	case SocketConnectionReset:
		return "connection reset"
	default:
		return "parameter error"
	}
}

// Errno returns the wire representation of the kind.
func (k SocketErrorKind) Errno() uint32 { return uint32(k) }
