package drivers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	name string
	tag  string
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Open(context.Context, string, string) (HostFile, error) {
	return nil, nil
}

func TestRegistry_CaseInsensitiveDispatch(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fakeDriver{name: "HTTP"})

	for _, uri := range []string{"http://x/", "HTTP://x/", "hTtP://x/"} {
		d, ok := r.Resolve(uri)
		require.True(t, ok, "uri=%s", uri)
		assert.Equal(t, "HTTP", d.Name())
	}

	d, ok := r.Find("http")
	require.True(t, ok)
	assert.Equal(t, "HTTP", d.Name())
}

func TestRegistry_ExclusiveDispatch(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	httpDrv := &fakeDriver{name: "http"}
	ipfsDrv := &fakeDriver{name: "ipfs"}
	r.Register(httpDrv)
	r.Register(ipfsDrv)

	d, ok := r.Resolve("http://example.com/")
	require.True(t, ok)
	assert.Same(t, httpDrv, d)

	d, ok = r.Resolve("ipfs://bafy/")
	require.True(t, ok)
	assert.Same(t, ipfsDrv, d)
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &fakeDriver{name: "http", tag: "first"}
	second := &fakeDriver{name: "HTTP", tag: "second"}
	r.Register(first)
	r.Register(second)

	d, ok := r.Find("http")
	require.True(t, ok)
	assert.Equal(t, "second", d.(*fakeDriver).tag)
	assert.Len(t, r.Schemes(), 1)
}

func TestRegistry_NoDriver(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fakeDriver{name: "http"})

	tests := []struct {
		name string
		uri  string
	}{
		{"unknown scheme", "gopher://x/"},
		{"bare host port has no scheme", "127.0.0.1:8080"},
		{"relative path", "/just/a/path"},
		{"unparseable", "http://bad url\x7f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, ok := r.Resolve(tt.uri)
			assert.False(t, ok)
			assert.Nil(t, d)
		})
	}
}

func TestRegistry_Schemes(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fakeDriver{name: "Memory"})
	r.Register(&fakeDriver{name: "tcp"})
	r.Register(&fakeDriver{name: "http"})

	assert.Equal(t, []string{"http", "memory", "tcp"}, r.Schemes())
}
