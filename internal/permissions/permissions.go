// Package permissions implements the capability model gating every resource
// access made on behalf of a guest module. It is pure decision logic: no I/O
// happens here, and every privileged host operation must pass a check from
// this package before any driver is invoked.
//
// Network grants carry a known sharp edge: URL permissions are matched by a
// raw case-insensitive string prefix, not a structured scheme+host+path
// comparison. A prefix of "http://example.com" therefore also matches
// "http://example.com.evil.com". This mirrors the established grant format
// and is kept deliberately; tighten only with an explicit format change.
package permissions

import (
	"fmt"
	"strings"
)

// Class identifies one resource class gated by the permission model.
type Class int

const (
	ClassRead Class = iota
	ClassWrite
	ClassNet
	ClassEnv
	ClassRun
	ClassSys
	ClassFFI
)

func (c Class) String() string {
	switch c {
	case ClassRead:
		return "read"
	case ClassWrite:
		return "write"
	case ClassNet:
		return "net"
	case ClassEnv:
		return "env"
	case ClassRun:
		return "run"
	case ClassSys:
		return "sys"
	case ClassFFI:
		return "ffi"
	default:
		return "unknown"
	}
}

// State is the outcome of querying a permission without side effects.
type State int

const (
	// Denied means an explicit deny rule matched, or nothing grants access
	// and prompting is not possible.
	Denied State = iota
	// Prompt means no rule decides the outcome; an interactive request may
	// still grant it.
	Prompt
	// Granted means an allow rule (or the allow-all flag) covers the
	// descriptor.
	Granted
)

func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case Prompt:
		return "prompt"
	default:
		return "denied"
	}
}

// Permission is one URL-prefix capability record for network-like resources.
// Immutable once constructed.
type Permission struct {
	Schema    string
	URLPrefix string
}

// Matches reports whether the candidate URL falls under this permission.
// Matching is a case-insensitive prefix comparison; see the package comment
// for the consequences.
func (p Permission) Matches(url string) bool {
	return strings.HasPrefix(strings.ToLower(url), strings.ToLower(p.URLPrefix))
}

func (p Permission) String() string {
	return p.Schema + ":" + p.URLPrefix
}

// Grant is the tri-state outcome holder for one direction (allow or deny) of
// one resource class: All covers every descriptor, otherwise List enumerates
// covered descriptors. The zero value covers nothing, which makes default
// deny fall out naturally.
type Grant struct {
	All  bool
	List []string
}

// IsEmpty reports whether the grant covers nothing at all.
func (g Grant) IsEmpty() bool { return !g.All && len(g.List) == 0 }

func (g Grant) clone() Grant {
	out := Grant{All: g.All}
	if len(g.List) > 0 {
		out.List = append([]string(nil), g.List...)
	}
	return out
}

// DeniedError is returned for every permission denial. Callers translate it
// into the PermissionDeny wire code; it never degrades into a generic
// failure.
type DeniedError struct {
	Class      Class
	Descriptor string
	API        string
}

func (e *DeniedError) Error() string {
	if e.API != "" {
		return fmt.Sprintf("permission denied: %s access to %q (requested by %s)", e.Class, e.Descriptor, e.API)
	}
	return fmt.Sprintf("permission denied: %s access to %q", e.Class, e.Descriptor)
}

// IsDenied reports whether err is a permission denial.
func IsDenied(err error) bool {
	_, ok := err.(*DeniedError)
	return ok
}
