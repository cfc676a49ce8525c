// Package inspect describes region files and compares two of them.
package inspect

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ssargent/lineartools/pkg/anvil"
	"github.com/ssargent/lineartools/pkg/convert"
	"github.com/ssargent/lineartools/pkg/linear"
	"github.com/ssargent/lineartools/pkg/region"
)

// Report describes one region file.
type Report struct {
	Path    string
	Format  convert.Format
	Coords  region.Coords
	Size    int64
	ModTime time.Time

	// Linear only.
	Version uint8
	Level   uint8

	Chunks       int
	PayloadBytes int
	Newest       uint32
	Dropped      []*region.ChunkError

	region *region.Region
}

// Region returns the parsed region.
func (r *Report) Region() *region.Region {
	return r.region
}

// Inspect reads a region file in either format. Files that cannot be
// parsed at all return the reader's *region.FormatError.
func Inspect(path string) (*Report, error) {
	coords, err := region.ParseFileName(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Path:    path,
		Format:  convert.DetectFormat(path, data),
		Coords:  coords,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	switch rep.Format {
	case convert.Anvil:
		rep.region, rep.Dropped, err = anvil.Read(data, anvil.ReadOptions{
			Coords:   coords,
			ModTime:  uint64(info.ModTime().Unix()),
			External: anvil.DirSource(filepath.Dir(path)),
		})
	case convert.Linear:
		var h *linear.Header
		rep.region, h, err = linear.Read(data, coords)
		if err == nil {
			rep.Version = h.Version
			rep.Level = h.Level
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rep.Chunks = rep.region.Len()
	rep.PayloadBytes = rep.region.PayloadSize()
	rep.Newest = rep.region.Newest()
	return rep, nil
}

// Write prints the report in a human readable form.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "%s\n", r.Path)
	fmt.Fprintf(w, "  format:    %s", r.Format)
	if r.Format == convert.Linear {
		fmt.Fprintf(w, " (version %d, zstd level %d)", r.Version, r.Level)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  region:    %d, %d\n", r.Coords.X, r.Coords.Z)
	fmt.Fprintf(w, "  size:      %s\n", humanize.Bytes(uint64(r.Size)))
	fmt.Fprintf(w, "  chunks:    %d / %d\n", r.Chunks, region.SlotCount)
	fmt.Fprintf(w, "  payload:   %s\n", humanize.Bytes(uint64(r.PayloadBytes)))
	if r.Newest != 0 {
		newest := time.Unix(int64(r.Newest), 0)
		fmt.Fprintf(w, "  newest:    %s (%s)\n", newest.UTC().Format(time.RFC3339), humanize.Time(newest))
	}
	for _, d := range r.Dropped {
		fmt.Fprintf(w, "  unreadable %v\n", d)
	}
}
