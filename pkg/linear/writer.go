package linear

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/lineartools/pkg/compression"
	"github.com/ssargent/lineartools/pkg/region"
)

// DefaultLevel is the zstd level used when none is configured.
const DefaultLevel = 6

// Write serializes a region as a Linear file compressed at the given zstd
// level (1-22). The header timestamp is the newest chunk timestamp.
func Write(r *region.Region, level int) ([]byte, error) {
	if level < compression.MinZstdLevel || level > compression.MaxZstdLevel {
		return nil, fmt.Errorf("linear: compression level %d outside %d-%d",
			level, compression.MinZstdLevel, compression.MaxZstdLevel)
	}

	body := make([]byte, 0, 4*region.SlotCount+r.PayloadSize()+8*r.Len())
	for i := 0; i < region.SlotCount; i++ {
		c := r.At(i)
		if c == nil {
			body = binary.BigEndian.AppendUint32(body, 0)
			continue
		}
		body = binary.BigEndian.AppendUint32(body, uint32(len(c.Payload)))
		body = binary.BigEndian.AppendUint32(body, c.Timestamp)
		body = append(body, c.Payload...)
	}

	compressed, err := compression.CompressZstd(body, level)
	if err != nil {
		return nil, fmt.Errorf("linear: %w", err)
	}

	out := make([]byte, 0, HeaderSize+len(compressed)+TrailerSize)
	out = binary.BigEndian.AppendUint64(out, Signature)
	out = append(out, Version, byte(level))
	out = binary.BigEndian.AppendUint64(out, uint64(r.Newest()))
	out = binary.BigEndian.AppendUint32(out, uint32(r.Len()))
	out = append(out, compressed...)
	out = binary.BigEndian.AppendUint64(out, Signature)
	return out, nil
}
