package region

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// File extensions of the supported containers and of Anvil overflow files.
const (
	ExtAnvil    = "mca"
	ExtLinear   = "linear"
	ExtExternal = "mcc"
)

// Coords are region coordinates recovered from a file name.
type Coords struct {
	X, Z int32
}

// ChunkX returns the world chunk x coordinate of local x.
func (c Coords) ChunkX(local int) int {
	return int(c.X)*Dimension + local
}

// ChunkZ returns the world chunk z coordinate of local z.
func (c Coords) ChunkZ(local int) int {
	return int(c.Z)*Dimension + local
}

// ParseFileName extracts region coordinates from a path whose base name is
// r.<x>.<z>.<ext>. It returns a *PathError for anything else.
func ParseFileName(path string) (Coords, error) {
	name := filepath.Base(path)
	parts := strings.Split(name, ".")
	if len(parts) != 4 {
		return Coords{}, &PathError{Path: path, Reason: "expected r.<x>.<z>.<ext>"}
	}
	x, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return Coords{}, &PathError{Path: path, Reason: "bad x coordinate", Err: err}
	}
	z, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return Coords{}, &PathError{Path: path, Reason: "bad z coordinate", Err: err}
	}
	return Coords{X: int32(x), Z: int32(z)}, nil
}

// Extension returns the extension token of a region file name, without the
// dot.
func Extension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// FileName formats a region file name.
func FileName(c Coords, ext string) string {
	return fmt.Sprintf("r.%d.%d.%s", c.X, c.Z, ext)
}

// ExternalFileName formats the overflow file name of a chunk from its
// world chunk coordinates.
func ExternalFileName(chunkX, chunkZ int) string {
	return fmt.Sprintf("c.%d.%d.%s", chunkX, chunkZ, ExtExternal)
}
