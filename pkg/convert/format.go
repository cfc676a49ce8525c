package convert

import (
	"fmt"
	"strings"

	"github.com/ssargent/lineartools/pkg/linear"
	"github.com/ssargent/lineartools/pkg/region"
)

// Format is a region container format.
type Format int

const (
	FormatUnknown Format = iota
	Anvil
	Linear
)

func (f Format) String() string {
	switch f {
	case Anvil:
		return "anvil"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case Anvil:
		return region.ExtAnvil
	case Linear:
		return region.ExtLinear
	default:
		return ""
	}
}

// ParseFormat accepts a format name or its extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "anvil", region.ExtAnvil:
		return Anvil, nil
	case region.ExtLinear:
		return Linear, nil
	default:
		return FormatUnknown, fmt.Errorf("unknown region format %q", s)
	}
}

// DetectFormat picks the format from the file extension, falling back to
// the Linear signature. Anything else is treated as Anvil, which has no
// signature of its own.
func DetectFormat(path string, data []byte) Format {
	switch region.Extension(path) {
	case region.ExtAnvil:
		return Anvil
	case region.ExtLinear:
		return Linear
	}
	if linear.HasSignature(data) {
		return Linear
	}
	return Anvil
}
