// Package ipfsdrv is the ipfs resource driver. Guest URIs name commands of
// the IPFS node HTTP API (api/v0); the driver speaks to the node over raw
// HTTP/1.1 sessions, wrapping upload payloads in multipart framing with a
// generated boundary.
package ipfsdrv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/blocklessnetwork/runtime/internal/drivers"
	"github.com/blocklessnetwork/runtime/internal/httpraw"
)

// DefaultAPIPort is the conventional IPFS node API port, used when the URI
// carries none.
const DefaultAPIPort = 5001

// Options is the JSON option document accepted by Open. Payload, when
// non-empty, is uploaded as a multipart form part; IPFS commands that take
// file content (add, files/write) need it.
type Options struct {
	Method  string `json:"method"`
	Payload string `json:"payload"`
}

// Driver implements drivers.Driver for the ipfs scheme.
type Driver struct{}

// Name implements drivers.Driver.
func (Driver) Name() string { return "ipfs" }

// Open runs one API command and returns a file over the response body. The
// URI host addresses the node; the path must be an api/v0 command path.
func (d Driver) Open(ctx context.Context, uri string, opts string) (drivers.HostFile, error) {
	status, body, err := d.Command(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("ipfs: node answered %d: %w", status, drivers.HTTPRequestError)
	}
	return &responseFile{reader: bytes.NewReader(body)}, nil
}

// Command performs the API call and returns the status code and body.
func (Driver) Command(ctx context.Context, uri string, opts string) (int, []byte, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return 0, nil, fmt.Errorf("ipfs: bad uri %q: %w", uri, drivers.HTTPInvalidURL)
	}
	if !strings.HasPrefix(u.Path, "/api/v0/") {
		return 0, nil, fmt.Errorf("ipfs: %q is not an api/v0 command: %w", u.Path, drivers.HTTPInvalidURL)
	}

	var o Options
	if opts != "" {
		if err := json.Unmarshal([]byte(opts), &o); err != nil {
			return 0, nil, fmt.Errorf("ipfs: bad opts: %w", drivers.HTTPInvalidEncoding)
		}
	}

	target := *u
	target.Scheme = "http"
	raw, err := httpraw.FromURL(target.String())
	if err != nil {
		return 0, nil, fmt.Errorf("ipfs: %q: %w", uri, drivers.HTTPInvalidURL)
	}
	raw.DefaultPort(DefaultAPIPort)
	// The node API is POST-only in current daemons; older ones accept GET.
	method := strings.ToUpper(o.Method)
	if method == "" {
		method = "POST"
	}
	raw.Method(method)

	if err := raw.Connect(ctx); err != nil {
		return 0, nil, fmt.Errorf("ipfs: connect: %w", drivers.HTTPRequestError)
	}
	defer raw.Close()

	if o.Payload != "" {
		raw.Boundary(uuid.NewString())
		if _, err := raw.WriteBoundary([]byte(o.Payload)); err != nil {
			return 0, nil, fmt.Errorf("ipfs: upload: %w", drivers.HTTPRequestError)
		}
	} else if err := raw.EndHeaders(); err != nil {
		return 0, nil, fmt.Errorf("ipfs: send: %w", drivers.HTTPRequestError)
	}

	status, body, err := raw.ReadResponse(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("ipfs: response: %w", drivers.HTTPRequestError)
	}
	slog.Debug("ipfs command done", "path", u.Path, "status", status, "body_len", len(body))
	return status, body, nil
}

type responseFile struct {
	reader *bytes.Reader
}

func (f *responseFile) Read(p []byte) (int, error) { return f.reader.Read(p) }

func (f *responseFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("ipfs response is read-only: %w", drivers.HTTPRequestError)
}

func (f *responseFile) Close() error { return nil }
