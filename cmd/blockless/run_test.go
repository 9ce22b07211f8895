package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetRunFlags() {
	runFlags = struct {
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
	}{}
}

func TestBuildManifest_FlagsOnly(t *testing.T) {
	resetRunFlags()
	runFlags.allowNet = []string{"example.com:443"}
	runFlags.denyNet = []string{"internal.example.com"}
	runFlags.records = []string{"http://example.com"}
	runFlags.env = []string{"MODE=dev"}

	m, err := buildManifest([]string{"--guest-flag"})
	require.NoError(t, err)

	assert.Equal(t, []string{"example.com:443"}, m.Permissions.Allow.Net)
	assert.Equal(t, []string{"internal.example.com"}, m.Permissions.Deny.Net)
	require.Len(t, m.Permissions.Records, 1)
	assert.Equal(t, "http", m.Permissions.Records[0].Schema)
	assert.Equal(t, "http://example.com", m.Permissions.Records[0].URL)
	assert.Equal(t, []string{"MODE=dev"}, m.Env)
	assert.Equal(t, []string{"--guest-flag"}, m.Args)
	assert.False(t, m.AllowAll)
}

func TestBuildManifest_FlagsAppendToFile(t *testing.T) {
	resetRunFlags()

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"permissions:\n  allow:\n    net: [\"from-file.example\"]\n"), 0o600))

	runFlags.manifestPath = path
	runFlags.allowNet = []string{"from-flag.example"}
	runFlags.allowAll = true

	m, err := buildManifest(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-file.example", "from-flag.example"}, m.Permissions.Allow.Net)
	assert.True(t, m.AllowAll)
}

func TestBuildManifest_BadRecord(t *testing.T) {
	resetRunFlags()
	runFlags.records = []string{"no-scheme-here"}

	_, err := buildManifest(nil)
	require.Error(t, err)
}
