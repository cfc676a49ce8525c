// Package compression wraps the payload codecs used by the region formats.
//
// Anvil stores every chunk with its own method tag (gzip, zlib, none or the
// LZ4 block stream). Linear compresses the whole region body once with zstd.
package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Method is the per-chunk compression tag stored in Anvil records. The
// values are wire constants.
type Method uint8

const (
	// MethodGzip is a gzip member wrapping deflate data.
	MethodGzip Method = 1
	// MethodZlib is a zlib stream; the default for Anvil.
	MethodZlib Method = 2
	// MethodNone stores the payload as is.
	MethodNone Method = 3
	// MethodLZ4 is an LZ4Block stream.
	MethodLZ4 Method = 4
)

// DefaultLevel asks gzip and zlib for their default level.
const DefaultLevel = -1

// ErrUnsupportedMethod is returned for tags outside the known set.
var ErrUnsupportedMethod = errors.New("unsupported compression method")

// ErrTooLarge is returned when decompressed output would exceed
// MaxDecompressedSize.
var ErrTooLarge = errors.New("decompressed size exceeds limit")

// String returns the name of a method.
func (m Method) String() string {
	switch m {
	case MethodGzip:
		return "gzip"
	case MethodZlib:
		return "zlib"
	case MethodNone:
		return "none"
	case MethodLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the known methods.
func (m Method) Valid() bool {
	return m >= MethodGzip && m <= MethodLZ4
}

// ParseMethod parses a method from its name.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "gzip":
		return MethodGzip, nil
	case "zlib", "deflate":
		return MethodZlib, nil
	case "none", "uncompressed":
		return MethodNone, nil
	case "lz4":
		return MethodLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMethod, name)
	}
}

// Compress encodes data with the given method. The level applies to gzip
// and zlib (-1 default, 0-9) and is ignored otherwise. MethodNone returns
// the input slice without copying.
func Compress(data []byte, method Method, level int) ([]byte, error) {
	switch method {
	case MethodGzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		return finish(&buf, w, data, "gzip")

	case MethodZlib:
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, fmt.Errorf("zlib compress: %w", err)
		}
		return finish(&buf, w, data, "zlib")

	case MethodNone:
		return data, nil

	case MethodLZ4:
		return compressLZ4Block(data)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, uint8(method))
	}
}

// Decompress decodes data that was compressed with the given method.
func Decompress(data []byte, method Method) ([]byte, error) {
	switch method {
	case MethodGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return drain(r, "gzip", MaxDecompressedSize)

	case MethodZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib decompress: %w", err)
		}
		return drain(r, "zlib", MaxDecompressedSize)

	case MethodNone:
		return data, nil

	case MethodLZ4:
		return decompressLZ4Block(data)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, uint8(method))
	}
}

func finish(buf *bytes.Buffer, w io.WriteCloser, data []byte, name string) ([]byte, error) {
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%s compress: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s compress: %w", name, err)
	}
	return buf.Bytes(), nil
}

func drain(r io.ReadCloser, name string, limit int64) ([]byte, error) {
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", name, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%s decompress: %w: more than %d bytes", name, ErrTooLarge, limit)
	}
	return out, nil
}
