package httpraw

import (
	"bytes"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wikipediaStream = "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"

// fragmentReader serves a byte stream in caller-chosen fragments, to prove
// the decoder is independent of read-boundary placement.
type fragmentReader struct {
	fragments [][]byte
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	if len(r.fragments) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.fragments[0])
	if n < len(r.fragments[0]) {
		r.fragments[0] = r.fragments[0][n:]
	} else {
		r.fragments = r.fragments[1:]
	}
	return n, nil
}

func splitAt(data []byte, points ...int) [][]byte {
	var out [][]byte
	prev := 0
	for _, p := range points {
		out = append(out, data[prev:p])
		prev = p
	}
	return append(out, data[prev:])
}

func TestReadContentLength_NegativeTotal(t *testing.T) {
	t.Parallel()

	_, err := readContentLength(bytes.NewReader(nil), []byte("abc"), -5)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	_, err = readContentLength(bytes.NewReader(nil), nil, -1)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeChunked_SingleRead(t *testing.T) {
	t.Parallel()

	out, err := decodeChunked(bytes.NewReader([]byte(wikipediaStream)), nil)
	require.NoError(t, err)
	assert.Equal(t, "Wikipedia", string(out))
}

func TestDecodeChunked_ByteAtATime(t *testing.T) {
	t.Parallel()

	out, err := decodeChunked(iotest.OneByteReader(bytes.NewReader([]byte(wikipediaStream))), nil)
	require.NoError(t, err)
	assert.Equal(t, "Wikipedia", string(out))
}

func TestDecodeChunked_EverySplitPoint(t *testing.T) {
	t.Parallel()

	data := []byte(wikipediaStream)
	for i := 0; i <= len(data); i++ {
		r := &fragmentReader{fragments: splitAt(data, i)}
		out, err := decodeChunked(r, nil)
		require.NoError(t, err, "split at %d", i)
		assert.Equal(t, "Wikipedia", string(out), "split at %d", i)
	}
}

func TestDecodeChunked_BufferedRemainder(t *testing.T) {
	t.Parallel()

	// Part of the stream already arrived with the headers.
	data := []byte(wikipediaStream)
	for i := 0; i <= len(data); i++ {
		out, err := decodeChunked(bytes.NewReader(data[i:]), data[:i])
		require.NoError(t, err, "buffered %d", i)
		assert.Equal(t, "Wikipedia", string(out), "buffered %d", i)
	}
}

func TestDecodeChunked_RandomFragmentation(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("0123456789abcdef", 256)
	var stream bytes.Buffer
	// 4KiB payload split into uneven chunks.
	rest := payload
	sizes := []int{1, 7, 512, 33, 1024, 90}
	for i := 0; len(rest) > 0; i++ {
		n := sizes[i%len(sizes)]
		if n > len(rest) {
			n = len(rest)
		}
		stream.WriteString(strings.ToUpper(strings.TrimPrefix(formatHex(n), "0x")))
		stream.WriteString("\r\n")
		stream.WriteString(rest[:n])
		stream.WriteString("\r\n")
		rest = rest[n:]
	}
	stream.WriteString("0\r\n\r\n")

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		data := stream.Bytes()
		var fragments [][]byte
		for len(data) > 0 {
			n := 1 + rng.Intn(64)
			if n > len(data) {
				n = len(data)
			}
			fragments = append(fragments, data[:n])
			data = data[n:]
		}
		out, err := decodeChunked(&fragmentReader{fragments: fragments}, nil)
		require.NoError(t, err, "trial %d", trial)
		require.Equal(t, payload, string(out), "trial %d", trial)
	}
}

func formatHex(n int) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "0x0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%16]}, b...)
		n /= 16
	}
	return "0x" + string(b)
}

func TestDecodeChunked_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"non-hex size", "zz\r\nWiki\r\n0\r\n\r\n"},
		{"missing chunk crlf", "4\r\nWikiXX5\r\npedia\r\n0\r\n\r\n"},
		{"truncated stream", "4\r\nWi"},
		{"empty size line", "\r\nWiki\r\n0\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeChunked(bytes.NewReader([]byte(tt.input)), nil)
			require.Error(t, err)
		})
	}
}

func TestParseChunkSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantPos  int
		wantSize int
		wantErr  error
	}{
		{"simple", "4\r\nWiki", 3, 4, nil},
		{"hex", "1a\r\n", 4, 26, nil},
		{"uppercase hex", "FF\r\n", 4, 255, nil},
		{"extension ignored", "4;name=val\r\n", 12, 4, nil},
		{"terminator", "0\r\n\r\n", 3, 0, nil},
		{"partial", "4", 0, 0, errNeedMore},
		{"empty", "", 0, 0, errNeedMore},
		{"garbage", "wiki\r\n", 0, 0, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pos, size, err := parseChunkSize([]byte(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, pos)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestParseResponseHead(t *testing.T) {
	t.Parallel()

	t.Run("complete head", func(t *testing.T) {
		t.Parallel()
		input := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nX-Two: a\r\nX-Two: b\r\n\r\nBODY"
		status, header, consumed, err := parseResponseHead([]byte(input), headerSlotBase)
		require.NoError(t, err)
		assert.Equal(t, 200, status)
		assert.Equal(t, []string{"text/plain"}, header["Content-Type"])
		assert.Equal(t, []string{"a", "b"}, header["X-Two"])
		assert.Equal(t, "BODY", input[consumed:])
	})

	t.Run("partial head", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := parseResponseHead([]byte("HTTP/1.1 200 OK\r\nContent-"), headerSlotBase)
		require.ErrorIs(t, err, errNeedMore)
	})

	t.Run("header budget escalates", func(t *testing.T) {
		t.Parallel()
		var b strings.Builder
		b.WriteString("HTTP/1.1 200 OK\r\n")
		for i := 0; i < headerSlotBase+10; i++ {
			b.WriteString("X-Filler: v\r\n")
		}
		b.WriteString("\r\n")
		_, _, _, err := parseResponseHead([]byte(b.String()), headerSlotBase)
		require.ErrorIs(t, err, errTooManyHeaders)

		status, header, _, err := parseResponseHead([]byte(b.String()), headerSlotBase*2)
		require.NoError(t, err)
		assert.Equal(t, 200, status)
		assert.Len(t, header["X-Filler"], headerSlotBase+10)
	})

	t.Run("malformed status line", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := parseResponseHead([]byte("NOT-HTTP hello\r\n\r\n"), headerSlotBase)
		require.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("bad status code", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := parseResponseHead([]byte("HTTP/1.1 9000 NOPE\r\n\r\n"), headerSlotBase)
		require.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func FuzzParseChunkSize(f *testing.F) {
	f.Add([]byte("4\r\nWiki"))
	f.Add([]byte("0\r\n\r\n"))
	f.Add([]byte("1a;ext=1\r\n"))
	f.Add([]byte("zz\r\n"))
	f.Fuzz(func(t *testing.T, data []byte) {
		pos, size, err := parseChunkSize(data)
		if err == nil {
			if pos > len(data) || size < 0 {
				t.Fatalf("out of range result pos=%d size=%d len=%d", pos, size, len(data))
			}
		}
	})
}

func FuzzDecodeChunkedFragmentation(f *testing.F) {
	f.Add([]byte("Wikipedia"), uint8(3))
	f.Add([]byte(""), uint8(1))
	f.Add(bytes.Repeat([]byte{0xA5}, 300), uint8(7))
	f.Fuzz(func(t *testing.T, payload []byte, step uint8) {
		// Frame the payload into chunks, then feed it back fragmented; the
		// decoder must reproduce the payload exactly.
		chunk := int(step%32) + 1
		var stream bytes.Buffer
		for rest := payload; len(rest) > 0; {
			n := chunk
			if n > len(rest) {
				n = len(rest)
			}
			stream.WriteString(strings.TrimPrefix(formatHex(n), "0x"))
			stream.WriteString("\r\n")
			stream.Write(rest[:n])
			stream.WriteString("\r\n")
			rest = rest[n:]
		}
		stream.WriteString("0\r\n\r\n")

		frag := int(step%7) + 1
		var fragments [][]byte
		for data := stream.Bytes(); len(data) > 0; {
			n := frag
			if n > len(data) {
				n = len(data)
			}
			fragments = append(fragments, data[:n])
			data = data[n:]
		}
		out, err := decodeChunked(&fragmentReader{fragments: fragments}, nil)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !bytes.Equal(out, payload) {
			t.Fatalf("decoded %d bytes, want %d", len(out), len(payload))
		}
	})
}
