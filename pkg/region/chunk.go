package region

import (
	"fmt"

	"github.com/ssargent/lineartools/pkg/compression"
)

// Chunk is one chunk's stored data. Payload is the decompressed, still
// serialized chunk and is never interpreted.
type Chunk struct {
	X, Z      int    // Local coordinates, 0..31
	Timestamp uint32 // Last modification, epoch seconds
	Payload   []byte

	// SourceCompression is the Anvil method the payload was read with, or
	// zero when the source carried no per-chunk method.
	SourceCompression compression.Method
}

// NewChunk creates a chunk at local coordinates.
func NewChunk(x, z int, timestamp uint32, payload []byte) *Chunk {
	return &Chunk{X: x, Z: z, Timestamp: timestamp, Payload: payload}
}

// Index returns the chunk's slot index.
func (c *Chunk) Index() int {
	return Index(c.X, c.Z)
}

// WorldX returns the world chunk x coordinate for a chunk in region rx.
func (c *Chunk) WorldX(rx int32) int {
	return int(rx)*Dimension + c.X
}

// WorldZ returns the world chunk z coordinate for a chunk in region rz.
func (c *Chunk) WorldZ(rz int32) int {
	return int(rz)*Dimension + c.Z
}

func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk %d %d - %d bytes", c.X, c.Z, len(c.Payload))
}
