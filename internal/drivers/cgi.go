package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os/exec"
)

// CGIDriver serves cgi:// URIs by running the program named in the URI path
// and piping its stdin/stdout to the guest. Run-permission for the program
// path is the caller's responsibility; the driver only executes.
type CGIDriver struct{}

type cgiOptions struct {
	Args []string `json:"args"`
	Envs []string `json:"envs"`
}

// Name implements Driver.
func (CGIDriver) Name() string { return "cgi" }

// Open starts the program at the URI path. opts may carry a JSON document
// with "args" and "envs" lists. The returned file writes to the process
// stdin and reads from its stdout; Close closes stdin and reaps the process.
func (CGIDriver) Open(ctx context.Context, uri string, opts string) (HostFile, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		return nil, fmt.Errorf("cgi: bad uri %q: %w", uri, KindDriverBadParams)
	}
	var o cgiOptions
	if opts != "" {
		if err := json.Unmarshal([]byte(opts), &o); err != nil {
			return nil, fmt.Errorf("cgi: bad opts: %w", KindDriverBadParams)
		}
	}

	cmd := exec.CommandContext(ctx, u.Path, o.Args...)
	if len(o.Envs) > 0 {
		cmd.Env = o.Envs
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("cgi: stdin pipe: %w", KindDriverBadOpen)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cgi: stdout pipe: %w", KindDriverBadOpen)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cgi: start %s: %w", u.Path, KindDriverBadOpen)
	}
	return &cgiFile{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type cgiFile struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (f *cgiFile) Read(p []byte) (int, error)  { return f.stdout.Read(p) }
func (f *cgiFile) Write(p []byte) (int, error) { return f.stdin.Write(p) }

func (f *cgiFile) Close() error {
	f.stdin.Close()
	// Drain so the process is not killed mid-write, then reap it.
	io.Copy(io.Discard, f.stdout)
	return f.cmd.Wait()
}
