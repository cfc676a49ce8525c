package convert

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ssargent/lineartools/pkg/region"
)

// Discover returns the region files under input. A file is returned as is;
// a directory is walked recursively for names of the form r.<x>.<z>.mca or
// r.<x>.<z>.linear. Results are in lexical order.
func Discover(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: input, Err: err}
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	var files []string
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRegionFile(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "walk", Path: input, Err: err}
	}
	return files, nil
}

func isRegionFile(name string) bool {
	switch region.Extension(name) {
	case region.ExtAnvil, region.ExtLinear:
	default:
		return false
	}
	_, err := region.ParseFileName(name)
	return err == nil
}
