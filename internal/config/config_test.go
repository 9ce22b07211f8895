package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocklessnetwork/runtime/internal/permissions"
)

const sampleManifest = `
allow_all: false
permissions:
  allow:
    read: ["/data"]
    net: ["example.com:443", "api.example.com"]
    env: ["HOME", "*"]
  deny:
    net: ["internal.example.com"]
  records:
    - schema: http
      url: "http://example.com"
drivers:
  - name: custom
    path: /opt/drivers/custom.so
env:
  - MODE=production
args: ["--flag"]
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	m, err := LoadFromReader(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	assert.False(t, m.AllowAll)
	assert.Equal(t, []string{"/data"}, m.Permissions.Allow.Read)
	assert.Equal(t, []string{"internal.example.com"}, m.Permissions.Deny.Net)
	require.Len(t, m.Permissions.Records, 1)
	assert.Equal(t, "http", m.Permissions.Records[0].Schema)
	require.Len(t, m.Drivers, 1)
	assert.Equal(t, "custom", m.Drivers[0].Name)
	assert.Equal(t, []string{"--flag"}, m.Args)
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"record missing url", "permissions:\n  records:\n    - schema: http\n"},
		{"driver missing path", "drivers:\n  - name: x\n"},
		{"broken yaml", "permissions: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.False(t, m.AllowAll)
	assert.Empty(t, m.Drivers)
}

func TestPermissionOptions(t *testing.T) {
	t.Parallel()

	m, err := LoadFromReader(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	c := permissions.NewContainer(m.PermissionOptions(nil))

	// Listed net grant works; deny list wins; record grants by prefix.
	assert.NoError(t, c.CheckNet("example.com", 443, "test"))
	assert.Error(t, c.CheckNet("internal.example.com", 443, "test"))
	assert.NoError(t, c.CheckNetURL("http://example.com/anything", "test"))

	// The "*" entry grants the whole env class.
	assert.NoError(t, c.CheckEnv("ANY_VAR", "test"))

	// Reads are scoped to the listed tree.
	assert.Error(t, func() error { _, err := c.CheckRead("/etc/passwd", "test"); return err }())
}

func TestGuestEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile,
		[]byte("B_FROM_FILE=file\nA_FROM_FILE=first\nMODE=from_file\n"), 0o600))

	t.Setenv("FORWARDED_VAR", "host-value")

	m := &Manifest{
		EnvFile: envFile,
		Env:     []string{"MODE=production", "FORWARDED_VAR"},
	}
	env, err := m.GuestEnv()
	require.NoError(t, err)

	// File keys come sorted, manifest entries win on collision and append
	// in declaration order.
	assert.Equal(t, []string{
		"A_FROM_FILE=first",
		"B_FROM_FILE=file",
		"MODE=production",
		"FORWARDED_VAR=host-value",
	}, env)
}

func TestGuestEnv_Errors(t *testing.T) {
	t.Parallel()

	_, err := (&Manifest{EnvFile: "/no/such/file.env"}).GuestEnv()
	require.Error(t, err)

	_, err = (&Manifest{Env: []string{"=bad"}}).GuestEnv()
	require.Error(t, err)
}
