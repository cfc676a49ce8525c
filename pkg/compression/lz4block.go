package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v4"
)

// LZ4Block is the framing written by the JVM lz4 block streams. Each block
// is a 21-byte header followed by its data:
//
//	[magic "LZ4Block"(8)][token(1)][compressed len(4)][original len(4)][checksum(4)]
//
// Lengths and checksum are little-endian. The token holds the method in the
// high nibble and log2(block size)-10 in the low nibble. The checksum is
// xxh32 of the original bytes with a fixed seed, truncated to 28 bits. An
// all-zero raw block ends the stream.
const (
	lz4BlockMagic      = "LZ4Block"
	lz4BlockHeaderSize = len(lz4BlockMagic) + 13
	lz4BlockSize       = 64 * 1024
	lz4BlockSeed       = 0x9747b28c
	lz4BlockLevelBase  = 10

	lz4MethodRaw        = 0x10
	lz4MethodCompressed = 0x20
)

var errLZ4BlockCorrupt = errors.New("lz4 block stream corrupted")

func lz4BlockLevel(blockSize int) byte {
	level := bits.Len(uint(blockSize-1)) - lz4BlockLevelBase
	if level < 0 {
		level = 0
	}
	return byte(level)
}

func lz4BlockChecksum(data []byte) uint32 {
	return xxhash.Checksum32S(data, lz4BlockSeed) & 0x0fffffff
}

func compressLZ4Block(data []byte) ([]byte, error) {
	level := lz4BlockLevel(lz4BlockSize)

	var out bytes.Buffer
	out.Grow(len(data)/2 + lz4BlockHeaderSize*2)

	scratch := make([]byte, lz4.CompressBlockBound(lz4BlockSize))
	header := make([]byte, lz4BlockHeaderSize)

	for len(data) > 0 {
		n := min(len(data), lz4BlockSize)
		block := data[:n]
		data = data[n:]

		written, err := lz4.CompressBlock(block, scratch, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}

		method := byte(lz4MethodCompressed)
		payload := scratch[:written]
		if written == 0 || written >= n {
			method = lz4MethodRaw
			payload = block
		}

		putLZ4BlockHeader(header, method|level, len(payload), n, lz4BlockChecksum(block))
		out.Write(header)
		out.Write(payload)
	}

	putLZ4BlockHeader(header, lz4MethodRaw|level, 0, 0, 0)
	out.Write(header)
	return out.Bytes(), nil
}

func putLZ4BlockHeader(dst []byte, token byte, compressed, original int, checksum uint32) {
	copy(dst, lz4BlockMagic)
	dst[8] = token
	binary.LittleEndian.PutUint32(dst[9:], uint32(compressed))
	binary.LittleEndian.PutUint32(dst[13:], uint32(original))
	binary.LittleEndian.PutUint32(dst[17:], checksum)
}

func decompressLZ4Block(data []byte) ([]byte, error) {
	var out bytes.Buffer

	for len(data) > 0 {
		if len(data) < lz4BlockHeaderSize || string(data[:len(lz4BlockMagic)]) != lz4BlockMagic {
			return nil, fmt.Errorf("lz4 decompress: %w: bad block header", errLZ4BlockCorrupt)
		}
		token := data[8]
		compressed := int(binary.LittleEndian.Uint32(data[9:]))
		original := int(binary.LittleEndian.Uint32(data[13:]))
		checksum := binary.LittleEndian.Uint32(data[17:])
		data = data[lz4BlockHeaderSize:]

		maxBlock := 1 << (int(token&0x0f) + lz4BlockLevelBase)
		if original == 0 && compressed == 0 {
			if checksum != 0 {
				return nil, fmt.Errorf("lz4 decompress: %w: bad end marker", errLZ4BlockCorrupt)
			}
			break
		}
		if original < 0 || original > maxBlock || compressed < 0 || compressed > len(data) {
			return nil, fmt.Errorf("lz4 decompress: %w: block lengths %d/%d", errLZ4BlockCorrupt, compressed, original)
		}

		payload := data[:compressed]
		data = data[compressed:]

		var block []byte
		switch token & 0xf0 {
		case lz4MethodRaw:
			if compressed != original {
				return nil, fmt.Errorf("lz4 decompress: %w: raw block size mismatch", errLZ4BlockCorrupt)
			}
			block = payload
		case lz4MethodCompressed:
			block = make([]byte, original)
			read, err := lz4.UncompressBlock(payload, block)
			if err != nil {
				return nil, fmt.Errorf("lz4 decompress: %w", err)
			}
			if read != original {
				return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, original)
			}
		default:
			return nil, fmt.Errorf("lz4 decompress: %w: block method 0x%02x", errLZ4BlockCorrupt, token&0xf0)
		}

		if lz4BlockChecksum(block) != checksum {
			return nil, fmt.Errorf("lz4 decompress: %w: checksum mismatch", errLZ4BlockCorrupt)
		}
		out.Write(block)
	}

	return out.Bytes(), nil
}
