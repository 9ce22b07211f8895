package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocklessnetwork/runtime/internal/config"
)

func TestNew_RegistersBuiltinDrivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, err := New(ctx, Options{})
	require.NoError(t, err)
	defer r.Close(ctx)

	assert.Equal(t, []string{"cgi", "http", "ipfs", "memory", "s3", "tcp"},
		r.Registry().Schemes())
	assert.False(t, r.Permissions().WasAllowAllPassed())
}

func TestNew_InvalidMemoryLimit(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Options{MemoryLimitMB: -2})
	require.Error(t, err)
}

func TestNew_BadEnvFile(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Options{
		Manifest: &config.Manifest{EnvFile: "/no/such/file.env"},
	})
	require.Error(t, err)
}

func TestNew_BadExternalDriver(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Options{
		Manifest: &config.Manifest{
			Drivers: []config.DriverRef{{Name: "x", Path: "/no/such/driver.so"}},
		},
	})
	require.Error(t, err)
}

func TestRun_RejectsInvalidModule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, err := New(ctx, Options{})
	require.NoError(t, err)
	defer r.Close(ctx)

	err = r.Run(ctx, "broken", []byte("definitely not wasm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile module")
}

func TestNew_AllowAllManifest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, err := New(ctx, Options{Manifest: &config.Manifest{AllowAll: true}})
	require.NoError(t, err)
	defer r.Close(ctx)

	assert.True(t, r.Permissions().WasAllowAllPassed())
	assert.NoError(t, r.Permissions().CheckNet("example.com", 80, "test"))
}
