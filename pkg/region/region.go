// Package region holds the in-memory model shared by the region codecs.
//
// A Region is a 32x32 grid of chunks. Slots are addressed row-major,
// z outer and x inner (index = z*32 + x); both container formats lay their
// tables out in that order. Absent chunks are nil slots.
package region

import (
	"fmt"
)

// Grid dimensions.
const (
	Dimension = 32
	SlotCount = Dimension * Dimension
)

// Region is one region file's worth of chunks. Readers build it with Put;
// writers only read from it.
type Region struct {
	X int32 // Region coordinates; world chunk = X*32 + local x
	Z int32

	// LastModified is the region-level stamp in epoch seconds: the header
	// value for Linear files, the file modification time for Anvil files.
	LastModified uint64

	slots [SlotCount]*Chunk
	count int
}

// New returns an empty region at the given region coordinates.
func New(x, z int32) *Region {
	return &Region{X: x, Z: z}
}

// Index returns the slot index for local chunk coordinates.
func Index(x, z int) int {
	return z*Dimension + x
}

// Local returns the local chunk coordinates of a slot index.
func Local(index int) (x, z int) {
	return index % Dimension, index / Dimension
}

// InBounds reports whether local coordinates lie within the grid.
func InBounds(x, z int) bool {
	return x >= 0 && x < Dimension && z >= 0 && z < Dimension
}

// Put stores a chunk in its slot. It rejects chunks outside the grid, chunks
// without payload and a second chunk for an occupied slot.
func (r *Region) Put(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("nil chunk")
	}
	if !InBounds(c.X, c.Z) {
		return fmt.Errorf("chunk (%d, %d) outside %dx%d grid", c.X, c.Z, Dimension, Dimension)
	}
	if len(c.Payload) == 0 {
		return fmt.Errorf("chunk (%d, %d) has no payload", c.X, c.Z)
	}
	index := Index(c.X, c.Z)
	if r.slots[index] != nil {
		return fmt.Errorf("duplicate chunk (%d, %d)", c.X, c.Z)
	}
	r.slots[index] = c
	r.count++
	return nil
}

// Chunk returns the chunk at local coordinates, or nil.
func (r *Region) Chunk(x, z int) *Chunk {
	if !InBounds(x, z) {
		return nil
	}
	return r.slots[Index(x, z)]
}

// At returns the chunk in a slot, or nil.
func (r *Region) At(index int) *Chunk {
	if index < 0 || index >= SlotCount {
		return nil
	}
	return r.slots[index]
}

// Len returns the number of chunks present.
func (r *Region) Len() int {
	return r.count
}

// Each calls fn for every present chunk in slot order.
func (r *Region) Each(fn func(index int, c *Chunk)) {
	for i, c := range r.slots {
		if c != nil {
			fn(i, c)
		}
	}
}

// Chunks returns the present chunks in slot order.
func (r *Region) Chunks() []*Chunk {
	chunks := make([]*Chunk, 0, r.count)
	r.Each(func(_ int, c *Chunk) {
		chunks = append(chunks, c)
	})
	return chunks
}

// Newest returns the largest chunk timestamp, or 0 for an empty region.
func (r *Region) Newest() uint32 {
	var newest uint32
	r.Each(func(_ int, c *Chunk) {
		newest = max(newest, c.Timestamp)
	})
	return newest
}

// PayloadSize returns the sum of all chunk payload lengths.
func (r *Region) PayloadSize() int {
	total := 0
	r.Each(func(_ int, c *Chunk) {
		total += len(c.Payload)
	})
	return total
}

func (r *Region) String() string {
	return fmt.Sprintf("region %d,%d - %d chunks", r.X, r.Z, r.count)
}
