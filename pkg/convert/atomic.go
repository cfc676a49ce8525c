package convert

import (
	"os"
	"path/filepath"
	"time"
)

// writeFileAtomic writes data to a temporary file in the destination
// directory, syncs it and renames it over path. Readers see either the old
// file or the complete new one. A non-zero mtime is applied before the
// rename.
func writeFileAtomic(path string, data []byte, mtime time.Time) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if !mtime.IsZero() {
		if err = os.Chtimes(tmpName, mtime, mtime); err != nil {
			return &IOError{Op: "chtimes", Path: path, Err: err}
		}
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
