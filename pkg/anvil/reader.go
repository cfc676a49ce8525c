package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ssargent/lineartools/pkg/compression"
	"github.com/ssargent/lineartools/pkg/region"
)

// Layout constants.
const (
	SectorSize      = 4096
	HeaderSize      = 2 * SectorSize
	ExternalFlag    = 0x80
	MaxSectorCount  = 255
	firstDataSector = HeaderSize / SectorSize
	recordHeader    = 5 // length(4) + tag(1)
	maxSectorOffset = 1<<24 - 1
)

const formatName = "anvil"

// ExternalSource loads overflow chunk files by name.
type ExternalSource interface {
	ReadExternal(name string) ([]byte, error)
}

// DirSource reads overflow files from a directory.
type DirSource string

// ReadExternal reads name from the directory.
func (d DirSource) ReadExternal(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(d), name))
}

// ReadOptions configures Read.
type ReadOptions struct {
	Coords   region.Coords  // Region coordinates, from the file name
	ModTime  uint64         // Stored as the region's LastModified
	External ExternalSource // Nil means overflow chunks cannot be loaded
}

// Read parses an Anvil file. Chunks that cannot be read are reported in the
// returned slice and left out of the region.
func Read(data []byte, opts ReadOptions) (*region.Region, []*region.ChunkError, error) {
	if len(data) < HeaderSize {
		return nil, nil, region.NewFormatError(formatName, region.ErrTruncated,
			"%d bytes, header needs %d", len(data), HeaderSize)
	}

	r := region.New(opts.Coords.X, opts.Coords.Z)
	r.LastModified = opts.ModTime

	var dropped []*region.ChunkError
	for i := 0; i < region.SlotCount; i++ {
		location := binary.BigEndian.Uint32(data[i*4:])
		if location == 0 {
			continue
		}
		timestamp := binary.BigEndian.Uint32(data[SectorSize+i*4:])
		x, z := region.Local(i)

		payload, method, err := readRecord(data, location, opts, x, z)
		if err != nil {
			dropped = append(dropped, &region.ChunkError{
				X: x, Z: z,
				ChunkX: opts.Coords.ChunkX(x),
				ChunkZ: opts.Coords.ChunkZ(z),
				Err:    err,
			})
			continue
		}
		if len(payload) == 0 {
			continue
		}

		c := region.NewChunk(x, z, timestamp, payload)
		c.SourceCompression = method
		if err := place(r, c); err != nil {
			return nil, nil, err
		}
	}

	return r, dropped, nil
}

// place stores c in r, reporting a rejected chunk as a container failure.
func place(r *region.Region, c *region.Chunk) error {
	if err := r.Put(c); err != nil {
		return region.NewFormatError(formatName, region.ErrCorruptBody, "%v", err)
	}
	return nil
}

// readRecord returns the decompressed payload of one location entry. A nil
// payload with a nil error means the record is empty.
func readRecord(data []byte, location uint32, opts ReadOptions, x, z int) ([]byte, compression.Method, error) {
	offset := int(location >> 8)
	count := int(location & 0xff)

	if offset < firstDataSector {
		return nil, 0, fmt.Errorf("%w: sector offset %d inside header", region.ErrCorruptLength, offset)
	}
	if count == 0 {
		return nil, 0, fmt.Errorf("%w: zero sector count at sector %d", region.ErrCorruptLength, offset)
	}

	start := offset * SectorSize
	if start+recordHeader > len(data) {
		return nil, 0, fmt.Errorf("%w: sector %d past end of file", region.ErrCorruptLength, offset)
	}

	length := int(binary.BigEndian.Uint32(data[start:]))
	if length == 0 {
		return nil, 0, nil
	}
	if 4+length > count*SectorSize {
		return nil, 0, fmt.Errorf("%w: length %d exceeds %d sectors", region.ErrCorruptLength, length, count)
	}
	if start+4+length > len(data) {
		return nil, 0, fmt.Errorf("%w: length %d past end of file", region.ErrCorruptLength, length)
	}

	tag := data[start+4]
	method := compression.Method(tag &^ ExternalFlag)
	if !method.Valid() {
		return nil, 0, fmt.Errorf("%w: tag %d", region.ErrUnsupportedCompression, tag)
	}

	body := data[start+recordHeader : start+4+length]
	if tag&ExternalFlag != 0 {
		var err error
		body, err = readExternal(opts, x, z, method)
		if err != nil {
			return nil, 0, err
		}
	}

	payload, err := compression.Decompress(body, method)
	if err != nil {
		return nil, 0, err
	}
	if method == compression.MethodNone {
		payload = bytes.Clone(payload)
	}
	return payload, method, nil
}

func readExternal(opts ReadOptions, x, z int, method compression.Method) ([]byte, error) {
	name := region.ExternalFileName(opts.Coords.ChunkX(x), opts.Coords.ChunkZ(z))
	if opts.External == nil {
		return nil, fmt.Errorf("%w: %s", region.ErrMissingExternal, name)
	}

	raw, err := opts.External.ReadExternal(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", region.ErrMissingExternal, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	// Files written by this tool lead with the tag; files written by the
	// game hold only the compressed stream.
	if len(raw) > 0 && compression.Method(raw[0]&^ExternalFlag) == method {
		return raw[1:], nil
	}
	return raw, nil
}
