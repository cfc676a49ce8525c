// Package anvil reads and writes Anvil (.mca) region files.
//
// # File Layout
//
// An Anvil file is a sequence of 4096-byte sectors. The first two sectors
// are the header:
//
//	[location table: 1024 x uint32][timestamp table: 1024 x uint32]
//
// Both tables are big-endian and indexed by z*32 + x. A location entry packs
// the sector offset in its high 24 bits and the sector count in its low 8
// bits; an all-zero entry means the slot is empty. A timestamp entry is the
// chunk's last modification time in epoch seconds.
//
// # Chunk Records
//
// A location points at a record that starts on a sector boundary:
//
//	[length(4)][compression tag(1)][compressed payload(length-1)]
//
// and is zero padded to the end of its last sector. The low 7 bits of the
// tag select the method (see package compression). When bit 0x80 is set the
// payload does not live in the region at all: it is stored in a sibling file
// c.<chunkX>.<chunkZ>.mcc whose first byte repeats the tag and whose
// remaining bytes are the compressed payload. The writer uses such files when
// a record would need more sectors than the one-byte count can express.
//
// # Error Handling
//
// A file shorter than the header is rejected with a *region.FormatError.
// Problems confined to one chunk (unknown method, missing overflow file,
// lengths that overrun the file, payloads that fail to decompress) are
// returned as *region.ChunkError values next to the region; that chunk is
// left out and the rest of the file is still read.
//
// # Allocation
//
// The writer allocates sectors strictly append-only, in slot order, starting
// right after the header. It never reuses space, so output is deterministic
// for a given region and compression setting.
package anvil
