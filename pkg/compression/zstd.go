package compression

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd level bounds accepted for Linear bodies.
const (
	MinZstdLevel = 1
	MaxZstdLevel = 22
)

// MaxDecompressedSize bounds the output of a single decode. A zstd frame
// declaring a larger content size fails with ErrTooLarge before any buffer
// is allocated.
const MaxDecompressedSize = 512 << 20

// zstd.Encoder and zstd.Decoder are safe for concurrent EncodeAll and
// DecodeAll calls, so one decoder and one encoder per speed class are
// shared by every worker.
var (
	zstdDecoder *zstd.Decoder

	zstdMu       sync.Mutex
	zstdEncoders = map[zstd.EncoderLevel]*zstd.Encoder{}
)

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecompressedSize),
	)
	if err != nil {
		panic("compression: zstd decoder initialization failed: " + err.Error())
	}
}

func zstdEncoder(level int) (*zstd.Encoder, error) {
	speed := zstd.EncoderLevelFromZstd(level)

	zstdMu.Lock()
	defer zstdMu.Unlock()

	if enc, ok := zstdEncoders[speed]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(speed),
		zstd.WithEncoderCRC(true),
	)
	if err != nil {
		return nil, err
	}
	zstdEncoders[speed] = enc
	return enc, nil
}

// CompressZstd compresses data as a single zstd frame. Levels follow the
// reference zstd scale (1-22) and are mapped onto the encoder's speed
// classes.
func CompressZstd(data []byte, level int) ([]byte, error) {
	if level < MinZstdLevel || level > MaxZstdLevel {
		return nil, fmt.Errorf("zstd level %d outside %d-%d", level, MinZstdLevel, MaxZstdLevel)
	}
	enc, err := zstdEncoder(level)
	if err != nil {
		return nil, fmt.Errorf("zstd compress: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// DecompressZstd decodes every zstd frame in data.
func DecompressZstd(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		return nil, fmt.Errorf("zstd decompress: %w: %w", ErrTooLarge, err)
	}
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
