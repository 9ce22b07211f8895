// Package runtime assembles the execution engine: the wazero runtime, the
// driver registry, the permission container and the host-call bridge, wired
// together per manifest.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"golang.org/x/sync/errgroup"

	"github.com/blocklessnetwork/runtime/internal/config"
	"github.com/blocklessnetwork/runtime/internal/drivers"
	"github.com/blocklessnetwork/runtime/internal/drivers/httpdrv"
	"github.com/blocklessnetwork/runtime/internal/drivers/ipfsdrv"
	"github.com/blocklessnetwork/runtime/internal/drivers/s3drv"
	"github.com/blocklessnetwork/runtime/internal/hostcall"
	"github.com/blocklessnetwork/runtime/internal/permissions"
)

// globalCache speeds up compilation across runtimes.
var globalCache = wazero.NewCompilationCache()

// Options configures a Runtime.
type Options struct {
	Manifest *config.Manifest
	// MemoryLimitMB caps guest memory. 0 means the 256MB default, -1
	// disables the limit.
	MemoryLimitMB int
	Prompter      permissions.Prompter
	Stdout        io.Writer
	Stderr        io.Writer
}

// Runtime owns one engine instance and everything guests reach through it.
type Runtime struct {
	runtime  wazero.Runtime
	registry *drivers.Registry
	perms    *permissions.Container
	bridge   *hostcall.Bridge
	env      []string
	args     []string
	stdout   io.Writer
	stderr   io.Writer
}

// New builds a runtime: engine config, WASI, built-in and external drivers,
// permission container and host modules. The registry and container are
// constructed here and injected; nothing global is touched.
func New(ctx context.Context, opts Options) (*Runtime, error) {
	manifest := opts.Manifest
	if manifest == nil {
		manifest = &config.Manifest{}
	}

	memoryLimitMB := opts.MemoryLimitMB
	switch {
	case memoryLimitMB == 0:
		memoryLimitMB = 256
	case memoryLimitMB == -1:
		slog.Warn("guest memory limit disabled")
	case memoryLimitMB > 0:
		if memoryLimitMB < 64 {
			slog.Warn("guest memory limit very low", "mb", memoryLimitMB)
		}
	default:
		return nil, fmt.Errorf("invalid memory limit %d (must be >= -1)", memoryLimitMB)
	}

	cfg := wazero.NewRuntimeConfig().WithCompilationCache(globalCache)
	if memoryLimitMB > 0 {
		// 1 page = 64KB, so 16 pages per MB.
		cfg = cfg.WithMemoryLimitPages(uint32(memoryLimitMB * 16))
	}
	engine := wazero.NewRuntimeWithConfig(ctx, cfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, engine); err != nil {
		engine.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	registry := drivers.NewRegistry()
	registry.Register(drivers.TCPDriver{})
	registry.Register(drivers.NewMemoryDriver(nil))
	registry.Register(drivers.CGIDriver{})
	registry.Register(httpdrv.New())
	registry.Register(ipfsdrv.Driver{})
	registry.Register(s3drv.New())

	// External drivers load in parallel; a single failure aborts startup.
	g, _ := errgroup.WithContext(ctx)
	for _, ref := range manifest.Drivers {
		g.Go(func() error {
			d, err := drivers.LoadExternal(ref.Path)
			if err != nil {
				return fmt.Errorf("load driver %s: %w", ref.Name, err)
			}
			registry.Register(d)
			slog.Debug("external driver loaded", "name", ref.Name, "scheme", d.Name())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		engine.Close(ctx)
		return nil, err
	}

	perms := permissions.NewContainer(manifest.PermissionOptions(opts.Prompter))
	bridge := hostcall.NewBridge(registry, perms)
	if err := bridge.RegisterHostModules(ctx, engine); err != nil {
		engine.Close(ctx)
		return nil, fmt.Errorf("register host modules: %w", err)
	}

	env, err := manifest.GuestEnv()
	if err != nil {
		engine.Close(ctx)
		return nil, err
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Runtime{
		runtime:  engine,
		registry: registry,
		perms:    perms,
		bridge:   bridge,
		env:      env,
		args:     manifest.Args,
		stdout:   stdout,
		stderr:   stderr,
	}, nil
}

// Registry exposes the driver registry, mainly so embedders can add
// drivers before running a guest.
func (r *Runtime) Registry() *drivers.Registry { return r.registry }

// Permissions exposes the permission container.
func (r *Runtime) Permissions() *permissions.Container { return r.perms }

// Run compiles and instantiates one guest module. For WASI command modules
// instantiation invokes _start and returns when the guest exits.
func (r *Runtime) Run(ctx context.Context, name string, wasmBytes []byte) error {
	compiled, err := r.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("compile module %s: %w", name, err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(name).
		WithStdout(r.stdout).
		WithStderr(r.stderr).
		WithArgs(append([]string{name}, r.args...)...)
	for _, entry := range r.env {
		key, value, _ := strings.Cut(entry, "=")
		modCfg = modCfg.WithEnv(key, value)
	}

	mod, err := r.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return fmt.Errorf("run module %s: %w", name, err)
	}
	return mod.Close(ctx)
}

// Close releases every guest handle and the engine.
func (r *Runtime) Close(ctx context.Context) error {
	r.bridge.Close()
	return r.runtime.Close(ctx)
}
