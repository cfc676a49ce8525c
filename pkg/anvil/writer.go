package anvil

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/lineartools/pkg/compression"
	"github.com/ssargent/lineartools/pkg/region"
)

// WriteOptions configures Write. Use DefaultWriteOptions as the base; the
// zero Level means "store with deflate level 0".
type WriteOptions struct {
	Compression         compression.Method // Method for every chunk; zero means zlib
	Level               int                // gzip/zlib level
	PreserveCompression bool               // Reuse each chunk's SourceCompression when set
	MaxSectorCount      int                // Overflow threshold; zero or >255 means 255
}

// DefaultWriteOptions returns zlib at its default level.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Compression:    compression.MethodZlib,
		Level:          compression.DefaultLevel,
		MaxSectorCount: MaxSectorCount,
	}
}

// ExternalFile is an overflow chunk file that must be written next to the
// region file.
type ExternalFile struct {
	Name string
	Data []byte
}

// Output is a serialized region.
type Output struct {
	Data     []byte
	External []ExternalFile
}

// Write serializes a region. Overflow chunks are returned in
// Output.External; the caller writes them beside the region file.
func Write(r *region.Region, opts WriteOptions) (*Output, error) {
	maxSectors := opts.MaxSectorCount
	if maxSectors <= 0 || maxSectors > MaxSectorCount {
		maxSectors = MaxSectorCount
	}
	coords := region.Coords{X: r.X, Z: r.Z}

	out := &Output{Data: make([]byte, HeaderSize, HeaderSize+r.PayloadSize()/2)}

	var werr error
	r.Each(func(index int, c *region.Chunk) {
		if werr != nil {
			return
		}

		method := opts.methodFor(c)
		compressed, err := compression.Compress(c.Payload, method, opts.Level)
		if err != nil {
			werr = fmt.Errorf("anvil: chunk %d,%d: %w", c.X, c.Z, err)
			return
		}

		tag := byte(method)
		if sectorsFor(recordHeader+len(compressed)) > maxSectors {
			external := make([]byte, 1+len(compressed))
			external[0] = tag | ExternalFlag
			copy(external[1:], compressed)
			out.External = append(out.External, ExternalFile{
				Name: region.ExternalFileName(coords.ChunkX(c.X), coords.ChunkZ(c.Z)),
				Data: external,
			})
			compressed = nil
			tag |= ExternalFlag
		}

		offset := len(out.Data) / SectorSize
		if offset > maxSectorOffset {
			werr = fmt.Errorf("anvil: chunk %d,%d: sector offset %d exceeds location field", c.X, c.Z, offset)
			return
		}

		out.Data = appendRecord(out.Data, tag, compressed)
		sectors := len(out.Data)/SectorSize - offset

		binary.BigEndian.PutUint32(out.Data[index*4:], uint32(offset)<<8|uint32(sectors))
		binary.BigEndian.PutUint32(out.Data[SectorSize+index*4:], c.Timestamp)
	})
	if werr != nil {
		return nil, werr
	}

	return out, nil
}

func (o WriteOptions) methodFor(c *region.Chunk) compression.Method {
	if o.PreserveCompression && c.SourceCompression.Valid() {
		return c.SourceCompression
	}
	if o.Compression.Valid() {
		return o.Compression
	}
	return compression.MethodZlib
}

// appendRecord writes [length][tag][payload] at the end of buf and pads to a
// sector boundary.
func appendRecord(buf []byte, tag byte, payload []byte) []byte {
	var header [recordHeader]byte
	binary.BigEndian.PutUint32(header[:], uint32(1+len(payload)))
	header[4] = tag

	buf = append(buf, header[:]...)
	buf = append(buf, payload...)
	return pad(buf)
}

// pad extends buf with zeros to the next sector boundary.
func pad(buf []byte) []byte {
	if rem := len(buf) % SectorSize; rem != 0 {
		buf = append(buf, make([]byte, SectorSize-rem)...)
	}
	return buf
}

// sectorsFor returns the number of sectors needed for n bytes.
func sectorsFor(n int) int {
	return (n + SectorSize - 1) / SectorSize
}
