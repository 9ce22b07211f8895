// Package httpdrv is the http resource driver. Each guest request becomes a
// raw HTTP/1.1 session; the fully read response is tracked in a session
// table and served back to the guest incrementally through small-int
// handles.
package httpdrv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blocklessnetwork/runtime/internal/drivers"
	"github.com/blocklessnetwork/runtime/internal/httpraw"
)

// MaxSessions caps the number of concurrently open sessions per driver.
const MaxSessions = 1024

// Options is the JSON option document accepted by Req.
type Options struct {
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	Body           string            `json:"body"`
	ConnectTimeout int               `json:"connectTimeout"`
	ReadTimeout    int               `json:"readTimeout"`
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true, "PATCH": true,
}

// Driver implements drivers.HTTPDriver.
type Driver struct {
	mu       sync.Mutex
	next     uint32
	sessions map[uint32]*session
}

type session struct {
	raw  *httpraw.Session
	body []byte
	off  int
}

// New returns an empty driver. Handles start at 1; 0 is never issued.
func New() *Driver {
	return &Driver{next: 1, sessions: make(map[uint32]*session)}
}

// Name implements drivers.Driver.
func (*Driver) Name() string { return "http" }

// Open adapts Req to the generic driver surface: the returned file reads
// the response body and Close releases the session. Writes are rejected.
func (d *Driver) Open(ctx context.Context, uri string, opts string) (drivers.HostFile, error) {
	handle, _, err := d.Req(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	return &sessionFile{driver: d, handle: handle}, nil
}

// Req performs one request: connect, send, read the full response. It
// returns the session handle and the response status code. All failures
// carry an HTTPErrorKind.
func (d *Driver) Req(ctx context.Context, rawURL, opts string) (uint32, int, error) {
	raw, err := httpraw.FromURL(rawURL)
	if err != nil {
		return 0, 0, fmt.Errorf("http_req %s: %w", rawURL, drivers.HTTPInvalidURL)
	}

	var o Options
	if opts != "" {
		if err := json.Unmarshal([]byte(opts), &o); err != nil {
			return 0, 0, fmt.Errorf("http_req options: %w", drivers.HTTPInvalidEncoding)
		}
	}
	method := strings.ToUpper(o.Method)
	if method == "" {
		method = "GET"
	}
	if !validMethods[method] {
		return 0, 0, fmt.Errorf("http_req method %q: %w", o.Method, drivers.HTTPInvalidMethod)
	}
	raw.Method(method)
	for k, v := range o.Headers {
		raw.InsertHeader(k, v)
	}

	connectCtx := ctx
	if o.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, time.Duration(o.ConnectTimeout)*time.Second)
		defer cancel()
	}
	if err := raw.Connect(connectCtx); err != nil {
		return 0, 0, fmt.Errorf("http_req connect: %w", drivers.HTTPRequestError)
	}

	if o.Body != "" {
		err = raw.WriteBody([]byte(o.Body))
	} else {
		err = raw.EndHeaders()
	}
	if err != nil {
		raw.Close()
		return 0, 0, fmt.Errorf("http_req send: %w", drivers.HTTPRequestError)
	}

	readCtx := ctx
	if o.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, time.Duration(o.ReadTimeout)*time.Second)
		defer cancel()
	}
	status, body, err := raw.ReadResponse(readCtx)
	if err != nil {
		raw.Close()
		return 0, 0, fmt.Errorf("http_req response: %w", drivers.HTTPRequestError)
	}

	handle, err := d.store(&session{raw: raw, body: body})
	if err != nil {
		raw.Close()
		return 0, 0, err
	}
	slog.Debug("http session opened", "handle", handle, "status", status, "body_len", len(body))
	return handle, status, nil
}

func (d *Driver) store(s *session) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) >= MaxSessions {
		return 0, fmt.Errorf("http_req: %d sessions open: %w", len(d.sessions), drivers.HTTPTooManySessions)
	}
	for {
		h := d.next
		d.next++
		if d.next == 0 {
			d.next = 1
		}
		if _, taken := d.sessions[h]; !taken && h != 0 {
			d.sessions[h] = s
			return h, nil
		}
	}
}

func (d *Driver) lookup(handle uint32) (*session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[handle]
	if !ok {
		return nil, fmt.Errorf("http handle %d: %w", handle, drivers.HTTPInvalidHandle)
	}
	return s, nil
}

// ReadHeader returns the first value of a response header. A missing header
// is HeaderNotFound, never an empty string.
func (d *Driver) ReadHeader(handle uint32, name string) (string, error) {
	s, err := d.lookup(handle)
	if err != nil {
		return "", err
	}
	values := s.raw.Header(name)
	if len(values) == 0 {
		return "", fmt.Errorf("http header %q: %w", name, drivers.HTTPHeaderNotFound)
	}
	return values[0], nil
}

// ReadBody copies the next body slice into buf. A zero count with nil error
// means the body is exhausted.
func (d *Driver) ReadBody(handle uint32, buf []byte) (int, error) {
	s, err := d.lookup(handle)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.off >= len(s.body) {
		return 0, nil
	}
	n := copy(buf, s.body[s.off:])
	s.off += n
	return n, nil
}

// CloseSession releases the handle and its transport. Closing an unknown or
// already closed handle is InvalidHandle.
func (d *Driver) CloseSession(handle uint32) error {
	d.mu.Lock()
	s, ok := d.sessions[handle]
	delete(d.sessions, handle)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("http close %d: %w", handle, drivers.HTTPInvalidHandle)
	}
	return s.raw.Close()
}

// SessionCount reports the open sessions.
func (d *Driver) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

type sessionFile struct {
	driver *Driver
	handle uint32
}

func (f *sessionFile) Read(p []byte) (int, error) {
	n, err := f.driver.ReadBody(f.handle, p)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *sessionFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("http session is read-only: %w", drivers.HTTPRequestError)
}

func (f *sessionFile) Close() error { return f.driver.CloseSession(f.handle) }
