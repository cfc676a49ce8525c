package region

import (
	"errors"
	"fmt"
)

// Sentinels for container-level failures. They are wrapped in *FormatError.
var (
	ErrBadSignature       = errors.New("bad signature")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrTruncated          = errors.New("truncated file")
	ErrCorruptBody        = errors.New("corrupt body")
)

// Sentinels for chunk-level failures. They are wrapped in *ChunkError.
var (
	ErrUnsupportedCompression = errors.New("unsupported compression method")
	ErrMissingExternal        = errors.New("missing external chunk file")
	ErrCorruptLength          = errors.New("corrupt chunk length")
)

// PathError reports a file name that does not resolve to region
// coordinates.
type PathError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: cannot resolve region coordinates: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: cannot resolve region coordinates: %s", e.Path, e.Reason)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// FormatError reports a container that cannot be parsed at all. The whole
// file is skipped.
type FormatError struct {
	Format string // "anvil" or "linear"
	Path   string // Optional; filled in by callers that know it
	Err    error
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: invalid %s file: %v", e.Path, e.Format, e.Err)
	}
	return fmt.Sprintf("invalid %s file: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError wraps a sentinel with extra detail.
func NewFormatError(format string, sentinel error, detail string, args ...any) *FormatError {
	if detail == "" {
		return &FormatError{Format: format, Err: sentinel}
	}
	return &FormatError{Format: format, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(detail, args...))}
}

// ChunkError reports a single chunk that was dropped while the rest of the
// region was read.
type ChunkError struct {
	X, Z   int // Local coordinates
	ChunkX int // World chunk coordinates
	ChunkZ int
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d,%d (local %d,%d): %v", e.ChunkX, e.ChunkZ, e.X, e.Z, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
