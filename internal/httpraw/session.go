// Package httpraw is a hand-written HTTP/1.1 client used by the resource
// drivers. It builds request byte-streams itself and decodes responses
// incrementally so the drivers control exact framing (including multipart
// boundary injection for uploads) without pulling in a general-purpose HTTP
// stack. TLS is out of scope; the surrounding runtime terminates secure
// transports elsewhere.
package httpraw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrNoConnection is returned when an operation requires an established
	// transport and Connect was never called (or the session was closed).
	// This is a programming error on the caller's side, never assumed away.
	ErrNoConnection = errors.New("httpraw: session not connected")

	// ErrInvalidURL is returned by FromURL for URLs the session cannot
	// target.
	ErrInvalidURL = errors.New("httpraw: invalid url")
)

const crlf = "\r\n"

// Session is one HTTP/1.1 exchange over a raw TCP transport. Construct it
// from a URL, adjust method/headers/boundary, Connect, optionally write a
// body, then read the response. There is no reconnect: once the transport
// is gone the session is terminal.
type Session struct {
	url         *url.URL
	method      string
	boundary    string
	header      map[string][]string
	conn        net.Conn
	defaultPort int

	status     int
	respHeader map[string][]string
}

// FromURL constructs a session targeting the given URL. The method defaults
// to GET.
func FromURL(raw string) (*Session, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, ErrInvalidURL
	}
	return &Session{
		url:    u,
		method: "GET",
		header: make(map[string][]string),
	}, nil
}

// Method overrides the request method.
func (s *Session) Method(m string) { s.method = m }

// Boundary sets the multipart boundary used by WriteBoundary.
func (s *Session) Boundary(b string) { s.boundary = b }

// DefaultPort sets the port used when the URL does not carry one and the
// scheme has no well-known default (e.g. 5001 for the IPFS API).
func (s *Session) DefaultPort(p int) { s.defaultPort = p }

// InsertHeader appends one header value; repeated keys accumulate.
func (s *Session) InsertHeader(key, value string) {
	s.header[key] = append(s.header[key], value)
}

// Connected reports whether the transport is established.
func (s *Session) Connected() bool { return s.conn != nil }

// URL returns the session target.
func (s *Session) URL() *url.URL { return s.url }

func (s *Session) port() int {
	if p := s.url.Port(); p != "" {
		n, _ := strconv.Atoi(p)
		return n
	}
	switch s.url.Scheme {
	case "http":
		return 80
	case "https":
		return 443
	}
	if s.defaultPort != 0 {
		return s.defaultPort
	}
	return 80
}

// Connect resolves the target host, opens the TCP transport and eagerly
// writes the request line and headers. Body writes and the response read
// happen on the same connection afterwards.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(s.url.Hostname(), strconv.Itoa(s.port()))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("httpraw: connect %s: %w", addr, err)
	}
	if _, err := conn.Write(s.requestHead()); err != nil {
		conn.Close()
		return fmt.Errorf("httpraw: write request head: %w", err)
	}
	s.conn = conn
	return nil
}

// Close drops the transport. The session is terminal afterwards.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// requestHead renders the request line and headers, terminated by CRLF but
// without the final blank line: callers that send a body append their own
// entity headers first.
func (s *Session) requestHead() []byte {
	var buf bytes.Buffer
	buf.WriteString(s.method)
	buf.WriteByte(' ')
	path := s.url.EscapedPath()
	if path == "" {
		path = "/"
	}
	buf.WriteString(path)
	if q := s.url.RawQuery; q != "" {
		buf.WriteByte('?')
		buf.WriteString(q)
	}
	buf.WriteString(" HTTP/1.1")
	buf.WriteString(crlf)

	host := s.url.Hostname()
	if p := s.port(); p != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(p))
	}
	fmt.Fprintf(&buf, "Host: %s%s", host, crlf)
	if _, ok := s.header["Accept"]; !ok {
		buf.WriteString("Accept: */*")
		buf.WriteString(crlf)
	}
	for key, values := range s.header {
		for _, v := range values {
			fmt.Fprintf(&buf, "%s: %s%s", key, v, crlf)
		}
	}
	return buf.Bytes()
}

// EndHeaders terminates the header block for bodyless requests.
func (s *Session) EndHeaders() error {
	if s.conn == nil {
		return ErrNoConnection
	}
	if _, err := s.conn.Write([]byte(crlf)); err != nil {
		return fmt.Errorf("httpraw: end headers: %w", err)
	}
	return nil
}

// WriteBody sends a plain entity body with its Content-Length header and
// the blank line separating it from the request head.
func (s *Session) WriteBody(payload []byte) error {
	if s.conn == nil {
		return ErrNoConnection
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d%s%s", len(payload), crlf, crlf)
	buf.Write(payload)
	if _, err := s.conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("httpraw: write body: %w", err)
	}
	return nil
}

// WriteBoundary wraps the payload in multipart/form-data framing using the
// configured boundary and sends it together with the Content-Length and
// Content-Type entity headers. It returns the payload size written.
func (s *Session) WriteBoundary(payload []byte) (int, error) {
	if s.conn == nil {
		return 0, ErrNoConnection
	}
	if s.boundary == "" {
		return 0, errors.New("httpraw: no boundary configured")
	}

	var body bytes.Buffer
	body.WriteString("--")
	body.WriteString(s.boundary)
	body.WriteString(crlf)
	body.WriteString("Content-Disposition: form-data")
	body.WriteString(crlf)
	body.WriteString("Content-Type: application/octet-stream")
	body.WriteString(crlf)
	body.WriteString(crlf)
	body.Write(payload)
	body.WriteString(crlf)
	body.WriteString("--")
	body.WriteString(s.boundary)
	body.WriteString("--")
	body.WriteString(crlf)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d%s", body.Len(), crlf)
	fmt.Fprintf(&buf, "Content-Type: multipart/form-data; boundary=%s%s%s", s.boundary, crlf, crlf)
	buf.Write(body.Bytes())

	if _, err := s.conn.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("httpraw: write multipart body: %w", err)
	}
	return len(payload), nil
}

// Status returns the response status code once ReadResponse has run.
func (s *Session) Status() int { return s.status }

// Header returns the response header values for a name, nil when absent.
// Lookup is case-insensitive.
func (s *Session) Header(name string) []string {
	if s.respHeader == nil {
		return nil
	}
	return s.respHeader[textproto.CanonicalMIMEHeaderKey(name)]
}

func headerValue(h map[string][]string, name string) string {
	if v := h[textproto.CanonicalMIMEHeaderKey(name)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func isChunked(h map[string][]string) bool {
	return strings.EqualFold(headerValue(h, "Transfer-Encoding"), "chunked")
}
