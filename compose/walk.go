package compose

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// walk visits every file with requested suffix under dir depth first. Entries
// of a directory are visited in natural order of their names, so when two
// files declare the same type the outcome does not depend on the file system.
// Symbolic links are followed. Failure to list any directory is fatal.
func walk(fsys fs.FS, dir, suffix string, fn func(name string) error) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return newError(FilesystemAccess, dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].Name(), entries[j].Name())
	})

	for _, e := range entries {
		name := path.Join(dir, e.Name())

		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			fi, err := fs.Stat(fsys, name)
			if err != nil {
				return newError(FilesystemAccess, name, err)
			}
			isDir = fi.IsDir()
		}

		if isDir {
			if err := walk(fsys, name, suffix, fn); err != nil {
				return err
			}
			continue
		}
		if !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

// isDir reports if name exists and is a directory.
func isDir(fsys fs.FS, name string) bool {
	fi, err := fs.Stat(fsys, name)
	return err == nil && fi.IsDir()
}

// isRegular reports if name exists and is a regular file.
func isRegular(fsys fs.FS, name string) bool {
	fi, err := fs.Stat(fsys, name)
	return err == nil && fi.Mode().IsRegular()
}
