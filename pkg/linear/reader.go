package linear

import (
	"encoding/binary"

	"github.com/ssargent/lineartools/pkg/compression"
	"github.com/ssargent/lineartools/pkg/region"
)

// Signature opens and closes every Linear file.
const Signature uint64 = 0xc3ff13183cca9d9a

// Version is the format version written by Write.
const Version = 1

// Framing sizes.
const (
	SignatureSize = 8
	HeaderSize    = SignatureSize + 1 + 1 + 8 + 4
	TrailerSize   = SignatureSize
	MinFileSize   = HeaderSize + TrailerSize
)

const formatName = "linear"

var supportedVersions = map[uint8]bool{1: true, 2: true}

// Header is the fixed part in front of the compressed body.
type Header struct {
	Version    uint8
	Level      uint8
	Newest     uint64
	ChunkCount uint32
}

// Supported reports whether the reader understands a format version.
func Supported(version uint8) bool {
	return supportedVersions[version]
}

// HasSignature reports whether data starts with the Linear signature.
func HasSignature(data []byte) bool {
	return len(data) >= SignatureSize && binary.BigEndian.Uint64(data) == Signature
}

// ReadHeader parses and validates the framing of a Linear file without
// decompressing the body.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < MinFileSize {
		return nil, region.NewFormatError(formatName, region.ErrTruncated,
			"%d bytes, need at least %d", len(data), MinFileSize)
	}
	if !HasSignature(data) {
		return nil, region.NewFormatError(formatName, region.ErrBadSignature,
			"leading signature %#016x", binary.BigEndian.Uint64(data))
	}
	if trailer := binary.BigEndian.Uint64(data[len(data)-TrailerSize:]); trailer != Signature {
		return nil, region.NewFormatError(formatName, region.ErrBadSignature,
			"trailing signature %#016x", trailer)
	}

	h := &Header{
		Version:    data[8],
		Level:      data[9],
		Newest:     binary.BigEndian.Uint64(data[10:]),
		ChunkCount: binary.BigEndian.Uint32(data[18:]),
	}
	if !Supported(h.Version) {
		return nil, region.NewFormatError(formatName, region.ErrUnsupportedVersion, "version %d", h.Version)
	}
	if h.ChunkCount > region.SlotCount {
		return nil, region.NewFormatError(formatName, region.ErrCorruptBody,
			"header claims %d chunks", h.ChunkCount)
	}
	return h, nil
}

// Read parses a Linear file into a region at the given coordinates. The
// region's LastModified is taken from the header.
func Read(data []byte, coords region.Coords) (*region.Region, *Header, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, nil, err
	}

	body, err := compression.DecompressZstd(data[HeaderSize : len(data)-TrailerSize])
	if err != nil {
		return nil, nil, region.NewFormatError(formatName, region.ErrCorruptBody, "%v", err)
	}

	r := region.New(coords.X, coords.Z)
	r.LastModified = h.Newest

	pos := 0
	for i := 0; i < region.SlotCount; i++ {
		if len(body)-pos < 4 {
			return nil, nil, region.NewFormatError(formatName, region.ErrCorruptBody,
				"body ends at record %d", i)
		}
		length := int(binary.BigEndian.Uint32(body[pos:]))
		pos += 4
		if length == 0 {
			continue
		}
		if len(body)-pos < 4 || len(body)-pos-4 < length {
			return nil, nil, region.NewFormatError(formatName, region.ErrCorruptBody,
				"record %d length %d overruns body", i, length)
		}

		timestamp := binary.BigEndian.Uint32(body[pos:])
		pos += 4
		payload := body[pos : pos+length : pos+length]
		pos += length

		x, z := region.Local(i)
		if err := r.Put(region.NewChunk(x, z, timestamp, payload)); err != nil {
			return nil, nil, region.NewFormatError(formatName, region.ErrCorruptBody, "record %d: %v", i, err)
		}
	}

	if pos != len(body) {
		return nil, nil, region.NewFormatError(formatName, region.ErrCorruptBody,
			"%d trailing bytes after records", len(body)-pos)
	}
	if uint32(r.Len()) != h.ChunkCount {
		return nil, nil, region.NewFormatError(formatName, region.ErrCorruptBody,
			"header claims %d chunks, body holds %d", h.ChunkCount, r.Len())
	}

	return r, h, nil
}
