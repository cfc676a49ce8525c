package inspect

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/ssargent/lineartools/pkg/region"
)

// Difference kinds.
const (
	Missing   = "missing"   // In the source only
	Extra     = "extra"     // In the converted file only
	Timestamp = "timestamp" // Timestamps differ
	Payload   = "payload"   // Payload digests differ
)

// Difference is one slot that does not match.
type Difference struct {
	X, Z int
	Kind string
	Want uint64
	Got  uint64
}

func (d Difference) String() string {
	switch d.Kind {
	case Timestamp:
		return fmt.Sprintf("chunk %d,%d: timestamp %d, want %d", d.X, d.Z, d.Got, d.Want)
	case Payload:
		return fmt.Sprintf("chunk %d,%d: payload digest %016x, want %016x", d.X, d.Z, d.Got, d.Want)
	default:
		return fmt.Sprintf("chunk %d,%d: %s", d.X, d.Z, d.Kind)
	}
}

// Comparison is the result of Verify.
type Comparison struct {
	Source      *Report
	Converted   *Report
	Matched     int
	Differences []Difference
}

// OK reports whether every chunk matched.
func (c *Comparison) OK() bool {
	return len(c.Differences) == 0
}

// Verify reads two region files, in any format, and compares them slot by
// slot: presence, timestamp and an xxhash64 digest of the payload.
func Verify(source, converted string) (*Comparison, error) {
	src, err := Inspect(source)
	if err != nil {
		return nil, err
	}
	dst, err := Inspect(converted)
	if err != nil {
		return nil, err
	}

	c := &Comparison{
		Source:      src,
		Converted:   dst,
		Differences: Compare(src.region, dst.region),
	}
	c.Matched = countShared(src.region, dst.region)
	for _, d := range c.Differences {
		if d.Kind == Timestamp || d.Kind == Payload {
			c.Matched--
		}
	}
	return c, nil
}

// Compare returns every slot where the regions disagree, in slot order.
func Compare(want, got *region.Region) []Difference {
	var diffs []Difference
	for i := 0; i < region.SlotCount; i++ {
		a, b := want.At(i), got.At(i)
		x, z := region.Local(i)
		switch {
		case a == nil && b == nil:
		case b == nil:
			diffs = append(diffs, Difference{X: x, Z: z, Kind: Missing})
		case a == nil:
			diffs = append(diffs, Difference{X: x, Z: z, Kind: Extra})
		case a.Timestamp != b.Timestamp:
			diffs = append(diffs, Difference{X: x, Z: z, Kind: Timestamp, Want: uint64(a.Timestamp), Got: uint64(b.Timestamp)})
		default:
			if wd, gd := xxhash.Sum64(a.Payload), xxhash.Sum64(b.Payload); wd != gd {
				diffs = append(diffs, Difference{X: x, Z: z, Kind: Payload, Want: wd, Got: gd})
			}
		}
	}
	return diffs
}

// countShared counts slots occupied in both regions.
func countShared(a, b *region.Region) int {
	n := 0
	for i := 0; i < region.SlotCount; i++ {
		if a.At(i) != nil && b.At(i) != nil {
			n++
		}
	}
	return n
}

// Write prints the comparison.
func (c *Comparison) Write(w io.Writer) {
	fmt.Fprintf(w, "%s (%s, %d chunks) vs %s (%s, %d chunks)\n",
		c.Source.Path, c.Source.Format, c.Source.Chunks,
		c.Converted.Path, c.Converted.Format, c.Converted.Chunks)
	for _, d := range c.Differences {
		fmt.Fprintf(w, "  %s\n", d)
	}
	if c.OK() {
		fmt.Fprintf(w, "  all %d chunks match\n", c.Source.Chunks)
		return
	}
	fmt.Fprintf(w, "  %d differences\n", len(c.Differences))
}
