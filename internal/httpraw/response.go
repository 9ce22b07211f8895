package httpraw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

const (
	// headerSlotBase is the initial header-count budget; each failed parse
	// attempt multiplies the allotted slots so large header sets are
	// tolerated without pre-allocating for the worst case.
	headerSlotBase = 128
	// maxHeaderAttempts bounds the escalation.
	maxHeaderAttempts = 10
	// readIncrement is the transport read granularity during decoding.
	readIncrement = 1024
	// maxChunkSizeLine bounds a chunk-size line before declaring the
	// framing broken.
	maxChunkSizeLine = 256
	// maxHeadBytes bounds the response head before declaring it broken.
	maxHeadBytes = 64 * 1024
)

var (
	errNeedMore       = errors.New("httpraw: need more data")
	errTooManyHeaders = errors.New("httpraw: header budget exceeded")

	// ErrMalformedResponse is returned for structurally invalid status
	// lines, headers or chunk framing.
	ErrMalformedResponse = errors.New("httpraw: malformed response")
)

// ReadResponse reads and decodes the response for this session: an
// incremental header phase followed by body decoding (chunked transfer,
// Content-Length, or read-to-EOF, in that order of preference). The status
// code and headers stay available on the session afterwards.
func (s *Session) ReadResponse(ctx context.Context) (int, []byte, error) {
	if s.conn == nil {
		return 0, nil, ErrNoConnection
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}

	var (
		buf      []byte
		status   int
		header   map[string][]string
		consumed int
	)
	budget := headerSlotBase
	for {
		var err error
		status, header, consumed, err = parseResponseHead(buf, budget)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, errTooManyHeaders):
			// Escalate the slot budget and re-parse the same bytes.
			if budget >= headerSlotBase*maxHeaderAttempts {
				return 0, nil, ErrMalformedResponse
			}
			budget *= 2
		case errors.Is(err, errNeedMore):
			if len(buf) > maxHeadBytes {
				return 0, nil, ErrMalformedResponse
			}
			if buf, err = fill(s.conn, buf); err != nil {
				return 0, nil, err
			}
		default:
			return 0, nil, err
		}
	}
	s.status = status
	s.respHeader = header

	rest := buf[consumed:]
	var body []byte
	var err error
	switch {
	case isChunked(header):
		body, err = decodeChunked(s.conn, rest)
	case headerValue(header, "Content-Length") != "":
		var n int
		n, err = strconv.Atoi(headerValue(header, "Content-Length"))
		if err != nil {
			return 0, nil, ErrMalformedResponse
		}
		body, err = readContentLength(s.conn, rest, n)
	default:
		body, err = readToEOF(s.conn, rest)
	}
	if err != nil {
		return 0, nil, err
	}
	return status, body, nil
}

// parseResponseHead attempts to parse a status line plus headers out of b
// against a header-count budget. It returns errNeedMore when the terminator
// has not arrived yet and errTooManyHeaders when the budget was too small
// for an otherwise complete head.
func parseResponseHead(b []byte, maxHeaders int) (int, map[string][]string, int, error) {
	term := bytes.Index(b, []byte(crlf+crlf))
	if term < 0 {
		return 0, nil, 0, errNeedMore
	}
	lines := strings.Split(string(b[:term]), crlf)
	if len(lines)-1 > maxHeaders {
		return 0, nil, 0, errTooManyHeaders
	}

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/1.") {
		return 0, nil, 0, ErrMalformedResponse
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil || status < 100 || status > 599 {
		return 0, nil, 0, ErrMalformedResponse
	}

	header := make(map[string][]string, len(lines)-1)
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, nil, 0, ErrMalformedResponse
		}
		key = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))
		header[key] = append(header[key], strings.TrimSpace(value))
	}
	return status, header, term + 4, nil
}

// decodeChunked reassembles a chunked-transfer body: parse a chunk-size
// line from the buffered remainder, read any missing payload bytes, strip
// the size line and trailing CRLF, and append the payload until the
// terminating zero chunk. The output is the exact concatenation of chunk
// payloads regardless of how the transport fragments reads, and no more
// than one declared chunk is buffered beyond what has been consumed.
func decodeChunked(r io.Reader, buffered []byte) ([]byte, error) {
	buf := append([]byte(nil), buffered...)
	var out []byte
	for {
		pos, size, err := parseChunkSize(buf)
		if errors.Is(err, errNeedMore) {
			if buf, err = fill(r, buf); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out, nil
		}
		for len(buf) < pos+size {
			if buf, err = fill(r, buf); err != nil {
				return nil, err
			}
		}
		out = append(out, buf[pos:pos+size]...)
		buf = buf[pos+size:]
		for len(buf) < 2 {
			if buf, err = fill(r, buf); err != nil {
				return nil, err
			}
		}
		if buf[0] != '\r' || buf[1] != '\n' {
			return nil, ErrMalformedResponse
		}
		buf = buf[2:]
	}
}

// parseChunkSize parses one chunk-size line (hex size, optional extension)
// from the front of b. pos is the offset just past the line's CRLF.
func parseChunkSize(b []byte) (pos, size int, err error) {
	i := bytes.Index(b, []byte(crlf))
	if i < 0 {
		if len(b) > maxChunkSizeLine {
			return 0, 0, ErrMalformedResponse
		}
		return 0, 0, errNeedMore
	}
	line := string(b[:i])
	if ext := strings.IndexByte(line, ';'); ext >= 0 {
		line = line[:ext]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, 0, ErrMalformedResponse
	}
	n, perr := strconv.ParseUint(line, 16, 31)
	if perr != nil {
		return 0, 0, ErrMalformedResponse
	}
	return i + 2, int(n), nil
}

// fill reads one increment from the transport into buf. Running dry before
// the framing completes is a malformed response, not an EOF.
func fill(r io.Reader, buf []byte) ([]byte, error) {
	chunk := make([]byte, readIncrement)
	n, err := r.Read(chunk)
	if n > 0 {
		return append(buf, chunk[:n]...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("httpraw: read body: %w", err)
	}
	return buf, nil
}

func readContentLength(r io.Reader, rest []byte, total int) ([]byte, error) {
	if total < 0 {
		return nil, ErrMalformedResponse
	}
	out := append([]byte(nil), rest...)
	for len(out) < total {
		var err error
		if out, err = fill(r, out); err != nil {
			return nil, err
		}
	}
	return out[:total], nil
}

func readToEOF(r io.Reader, rest []byte) ([]byte, error) {
	out := append([]byte(nil), rest...)
	for {
		chunk := make([]byte, readIncrement)
		n, err := r.Read(chunk)
		if n > 0 {
			out = append(out, chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("httpraw: read body: %w", err)
		}
	}
}
