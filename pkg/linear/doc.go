// Package linear reads and writes Linear (.linear) region files.
//
// A Linear file stores a whole region as one zstd-compressed blob framed by
// a fixed header and trailer, all integers big-endian:
//
//	[signature(8)][version(1)][level(1)][newest timestamp(8)][chunk count(4)]
//	[zstd body][signature(8)]
//
// The decompressed body is 1024 records in slot order (index = z*32 + x):
//
//	[length(4)]                           absent chunk, length 0
//	[length(4)][timestamp(4)][payload]    present chunk
//
// Payloads are the decompressed chunk bytes; unlike Anvil there is no
// per-chunk compression. The reader is all or nothing: any framing problem
// yields a *region.FormatError and no region.
package linear
