package compression

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/OneOfOne/xxhash"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressible(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 23)
	}
	return data
}

func TestMethodString(t *testing.T) {
	tests := []struct {
		method Method
		want   string
	}{
		{MethodGzip, "gzip"},
		{MethodZlib, "zlib"},
		{MethodNone, "none"},
		{MethodLZ4, "lz4"},
		{Method(5), "unknown(5)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.method.String())
		})
	}
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"gzip", "zlib", "none", "lz4"} {
		t.Run(name, func(t *testing.T) {
			method, err := ParseMethod(name)
			require.NoError(t, err)
			assert.Equal(t, name, method.String())
			assert.True(t, method.Valid())
		})
	}

	t.Run("aliases", func(t *testing.T) {
		method, err := ParseMethod("deflate")
		require.NoError(t, err)
		assert.Equal(t, MethodZlib, method)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseMethod("brotli")
		assert.ErrorIs(t, err, ErrUnsupportedMethod)
	})
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	random := make([]byte, 70*1024)
	_, err := rand.Read(random)
	require.NoError(t, err)

	inputs := map[string][]byte{
		"empty":        {},
		"small":        []byte("hello"),
		"compressible": compressible(300 * 1024),
		"random":       random,
	}

	for _, method := range []Method{MethodGzip, MethodZlib, MethodNone, MethodLZ4} {
		for name, data := range inputs {
			t.Run(method.String()+"/"+name, func(t *testing.T) {
				compressed, err := Compress(data, method, DefaultLevel)
				require.NoError(t, err)

				decompressed, err := Decompress(compressed, method)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(data, decompressed), "round trip mismatch")
			})
		}
	}
}

func TestCompressShrinksCompressibleData(t *testing.T) {
	data := compressible(128 * 1024)
	for _, method := range []Method{MethodGzip, MethodZlib, MethodLZ4} {
		t.Run(method.String(), func(t *testing.T) {
			compressed, err := Compress(data, method, 6)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(data)/4)
		})
	}
}

func TestZlibStreamHeader(t *testing.T) {
	compressed, err := Compress([]byte("chunk"), MethodZlib, DefaultLevel)
	require.NoError(t, err)
	assert.Equal(t, byte(0x78), compressed[0])
}

func TestUnsupportedMethod(t *testing.T) {
	_, err := Compress([]byte("x"), Method(5), DefaultLevel)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = Decompress([]byte("x"), Method(127))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestDecompressGarbage(t *testing.T) {
	garbage := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	for _, method := range []Method{MethodGzip, MethodZlib, MethodLZ4} {
		t.Run(method.String(), func(t *testing.T) {
			_, err := Decompress(garbage, method)
			assert.Error(t, err)
		})
	}
}

func TestLZ4BlockFraming(t *testing.T) {
	data := compressible(lz4BlockSize + 100)
	compressed, err := Compress(data, MethodLZ4, DefaultLevel)
	require.NoError(t, err)

	// Two data blocks and the end marker.
	assert.Equal(t, 3, bytes.Count(compressed, []byte(lz4BlockMagic)))
	assert.Equal(t, byte(lz4MethodCompressed|6), compressed[8])

	end := compressed[len(compressed)-lz4BlockHeaderSize:]
	assert.Equal(t, lz4BlockMagic, string(end[:8]))
	assert.Equal(t, byte(lz4MethodRaw|6), end[8])
	assert.Equal(t, make([]byte, 12), end[9:])
}

func TestLZ4BlockChecksumMismatch(t *testing.T) {
	compressed, err := Compress([]byte("some chunk payload"), MethodLZ4, DefaultLevel)
	require.NoError(t, err)

	corrupted := bytes.Clone(compressed)
	checksum := binary.LittleEndian.Uint32(corrupted[17:])
	binary.LittleEndian.PutUint32(corrupted[17:], checksum^1)

	_, err = Decompress(corrupted, MethodLZ4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errLZ4BlockCorrupt))
}

func TestLZ4BlockChecksum(t *testing.T) {
	assert.Equal(t, uint32(0x02cc5d05), xxhash.Checksum32S(nil, 0))
	assert.Equal(t, uint32(0x32d153ff), xxhash.Checksum32S([]byte("abc"), 0))
	assert.Equal(t, xxhash.Checksum32S([]byte("abc"), lz4BlockSeed)&0x0fffffff, lz4BlockChecksum([]byte("abc")))
}

func TestZstdRoundTrip(t *testing.T) {
	data := compressible(512 * 1024)
	for _, level := range []int{MinZstdLevel, 6, 15, MaxZstdLevel} {
		compressed, err := CompressZstd(data, level)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(data))

		decompressed, err := DecompressZstd(compressed)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, decompressed))
	}
}

func TestZstdLevelBounds(t *testing.T) {
	_, err := CompressZstd([]byte("x"), 0)
	assert.Error(t, err)
	_, err = CompressZstd([]byte("x"), 23)
	assert.Error(t, err)
}

func TestDrainLimit(t *testing.T) {
	compressed, err := Compress(make([]byte, 4096), MethodGzip, DefaultLevel)
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	_, err = drain(r, "gzip", 1024)
	assert.ErrorIs(t, err, ErrTooLarge)

	r, err = gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	out, err := drain(r, "gzip", 4096)
	require.NoError(t, err)
	assert.Len(t, out, 4096)
}

func TestDecompressZstdDeclaredSizeLimit(t *testing.T) {
	// Frame declaring 3.75 GiB of content, followed by one 1000 byte RLE block.
	frame := []byte{
		0x28, 0xb5, 0x2f, 0xfd,
		0x80, 0x00,
		0x00, 0x00, 0x00, 0xf0,
		0x43, 0x1f, 0x00, 0x00,
	}
	_, err := DecompressZstd(frame)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecompressZstdGarbage(t *testing.T) {
	_, err := DecompressZstd([]byte("not a zstd frame"))
	assert.Error(t, err)
}
