package drivers

import (
	"context"
	"errors"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCGIDriver_RunsProgram(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell fixture")
	}

	d := CGIDriver{}
	f, err := d.Open(context.Background(), "cgi:///bin/echo", `{"args":["hello","cgi"]}`)
	require.NoError(t, err)

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello cgi\n", string(got))
	assert.NoError(t, f.Close())
}

func TestCGIDriver_PipesStdin(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell fixture")
	}

	d := CGIDriver{}
	f, err := d.Open(context.Background(), "cgi:///bin/cat", "")
	require.NoError(t, err)

	_, err = f.Write([]byte("roundtrip"))
	require.NoError(t, err)

	// cat echoes as it reads; collect before closing stdin.
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", string(buf[:n]))
	assert.NoError(t, f.Close())
}

func TestCGIDriver_Errors(t *testing.T) {
	t.Parallel()

	d := CGIDriver{}

	_, err := d.Open(context.Background(), "cgi://", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, KindDriverBadParams))

	_, err = d.Open(context.Background(), "cgi:///bin/echo", "{not json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, KindDriverBadParams))

	_, err = d.Open(context.Background(), "cgi:///no/such/program", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, KindDriverBadOpen))
}
