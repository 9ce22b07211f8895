package hostcall

import (
	"errors"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
)

// Guest memory access failures, mapped to per-domain errnos at each call
// site.
var (
	errGuestMemory   = errors.New("hostcall: guest pointer out of range")
	errGuestUTF8     = errors.New("hostcall: guest string is not utf-8")
	errGuestTooSmall = errors.New("hostcall: guest buffer too small")
)

// readGuestBytes copies length bytes at ptr out of the guest's linear
// memory. The copy keeps the host safe from the guest growing or reusing
// the region afterwards.
func readGuestBytes(mod api.Module, ptr, length uint32) ([]byte, error) {
	view, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, errGuestMemory
	}
	return append([]byte(nil), view...), nil
}

// readGuestString reads a guest string and validates it is UTF-8.
func readGuestString(mod api.Module, ptr, length uint32) (string, error) {
	b, err := readGuestBytes(mod, ptr, length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errGuestUTF8
	}
	return string(b), nil
}

// checkGuestRange verifies [ptr, ptr+length) lies inside guest memory
// without copying anything, so a hostile length is rejected before the host
// allocates for it.
func checkGuestRange(mod api.Module, ptr, length uint32) error {
	if length == 0 {
		return nil
	}
	if _, ok := mod.Memory().Read(ptr, length); !ok {
		return errGuestMemory
	}
	return nil
}

// writeGuestBytes copies data into the guest buffer at ptr, failing when
// the declared capacity cannot hold it.
func writeGuestBytes(mod api.Module, ptr, capacity uint32, data []byte) error {
	if uint32(len(data)) > capacity {
		return errGuestTooSmall
	}
	if len(data) == 0 {
		return nil
	}
	if !mod.Memory().Write(ptr, data) {
		return errGuestMemory
	}
	return nil
}

// writeGuestUint32 stores one little-endian u32 at ptr.
func writeGuestUint32(mod api.Module, ptr, value uint32) error {
	if !mod.Memory().WriteUint32Le(ptr, value) {
		return errGuestMemory
	}
	return nil
}
