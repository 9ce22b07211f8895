package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/blocklessnetwork/runtime/internal/config"
	"github.com/blocklessnetwork/runtime/internal/permissions"
	"github.com/blocklessnetwork/runtime/internal/runtime"
)

var runFlags struct {
	manifestPath string
	allowAll     bool
	allowRead    []string
	allowWrite   []string
	allowNet     []string
	allowEnv     []string
	allowRun     []string
	denyRead     []string
	denyWrite    []string
	denyNet      []string
	records      []string
	env          []string
	envFile      string
	memoryLimit  int
}

// runCmd executes one WASM module under the configured sandbox.
var runCmd = &cobra.Command{
	Use:   "run <module.wasm> [guest args...]",
	Short: "Run a WebAssembly module in the sandbox",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModule(cmd, args[0], args[1:])
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.manifestPath, "manifest", "", "runtime manifest file")
	f.BoolVar(&runFlags.allowAll, "allow-all", false, "grant every permission class")
	f.StringArrayVar(&runFlags.allowRead, "allow-read", nil, "grant read access to a path")
	f.StringArrayVar(&runFlags.allowWrite, "allow-write", nil, "grant write access to a path")
	f.StringArrayVar(&runFlags.allowNet, "allow-net", nil, "grant network access to host[:port]")
	f.StringArrayVar(&runFlags.allowEnv, "allow-env", nil, "grant access to an environment variable")
	f.StringArrayVar(&runFlags.allowRun, "allow-run", nil, "grant permission to run a program")
	f.StringArrayVar(&runFlags.denyRead, "deny-read", nil, "deny read access to a path")
	f.StringArrayVar(&runFlags.denyWrite, "deny-write", nil, "deny write access to a path")
	f.StringArrayVar(&runFlags.denyNet, "deny-net", nil, "deny network access to host[:port]")
	f.StringArrayVar(&runFlags.records, "permission", nil, "grant a URL permission record (prefix match)")
	f.StringArrayVar(&runFlags.env, "env", nil, "environment entry for the guest (NAME or NAME=value)")
	f.StringVar(&runFlags.envFile, "env-file", "", "load guest environment from a dotenv file")
	f.IntVar(&runFlags.memoryLimit, "memory-limit", 0, "guest memory limit in MB (0 default, -1 unlimited)")

	rootCmd.AddCommand(runCmd)
}

func runModule(cmd *cobra.Command, modulePath string, guestArgs []string) error {
	manifest, err := buildManifest(guestArgs)
	if err != nil {
		return err
	}

	var prompter permissions.Prompter
	if permissions.Interactive() {
		prompter = permissions.NewTerminalPrompter()
	}

	ctx := cmd.Context()
	rt, err := runtime.New(ctx, runtime.Options{
		Manifest:      manifest,
		MemoryLimitMB: runFlags.memoryLimit,
		Prompter:      prompter,
	})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	wasmBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	return rt.Run(ctx, modulePath, wasmBytes)
}

// buildManifest merges the manifest file with the run flags; flags append
// to the file's grants.
func buildManifest(guestArgs []string) (*config.Manifest, error) {
	manifest := &config.Manifest{}
	if runFlags.manifestPath != "" {
		var err error
		manifest, err = config.Load(runFlags.manifestPath)
		if err != nil {
			return nil, err
		}
	}

	if runFlags.allowAll {
		manifest.AllowAll = true
	}
	allow := &manifest.Permissions.Allow
	allow.Read = append(allow.Read, runFlags.allowRead...)
	allow.Write = append(allow.Write, runFlags.allowWrite...)
	allow.Net = append(allow.Net, runFlags.allowNet...)
	allow.Env = append(allow.Env, runFlags.allowEnv...)
	allow.Run = append(allow.Run, runFlags.allowRun...)
	deny := &manifest.Permissions.Deny
	deny.Read = append(deny.Read, runFlags.denyRead...)
	deny.Write = append(deny.Write, runFlags.denyWrite...)
	deny.Net = append(deny.Net, runFlags.denyNet...)

	for _, raw := range runFlags.records {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" {
			return nil, fmt.Errorf("permission record %q needs a scheme", raw)
		}
		manifest.Permissions.Records = append(manifest.Permissions.Records,
			config.Record{Schema: u.Scheme, URL: raw})
	}

	manifest.Env = append(manifest.Env, runFlags.env...)
	if runFlags.envFile != "" {
		manifest.EnvFile = runFlags.envFile
	}
	manifest.Args = append(manifest.Args, guestArgs...)
	return manifest, nil
}
