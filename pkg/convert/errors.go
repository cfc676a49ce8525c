package convert

import "fmt"

// IOError reports a file system failure while converting a file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ConflictError reports an input whose output path is claimed by another
// input of the same run.
type ConflictError struct {
	Path   string
	Output string
	Owner  string // Input that writes Output
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: output %s is already written from %s", e.Path, e.Output, e.Owner)
}
