// Package archive opens schema sources. A source is either a directory or a
// zip bundle, optionally followed by a path inside the bundle, for example
// "schema.zip/ocsf-schema-main".
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
)

// Kind of schema source.
type Kind int

const (
	KindDir Kind = iota
	KindZip
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "directory"
	case KindZip:
		return "zip"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Source is an opened schema home.
type Source struct {
	FS   fs.FS
	Kind Kind
	// Path is file system path of directory or bundle.
	Path string
	// Inner is slash separated path inside bundle, empty for directories.
	Inner string

	bundle *bundleFS
}

// Name describes source for logs.
func (s *Source) Name() string {
	if len(s.Inner) == 0 {
		return s.Path
	}
	return s.Path + "!" + s.Inner
}

// Reopen reads bundle central directory again, so later reads see current
// bundle content. On error previous content stays in use. It is no-op for
// directories, which are always read from disk.
func (s *Source) Reopen() error {
	if s.bundle == nil {
		return nil
	}
	fsys, closer, err := openBundle(s.Path, s.Inner)
	if err != nil {
		return err
	}
	return s.bundle.swap(fsys, closer)
}

// Close releases bundle, it is no-op for directories.
func (s *Source) Close() error {
	if s.bundle == nil {
		return nil
	}
	return s.bundle.Close()
}

// bundleFS lets Reopen replace zip reader under a file system already handed
// out to users of the source.
type bundleFS struct {
	mu     sync.RWMutex
	fsys   fs.FS
	closer io.Closer
}

func (b *bundleFS) current() fs.FS {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fsys
}

func (b *bundleFS) Open(name string) (fs.File, error) {
	return b.current().Open(name)
}

func (b *bundleFS) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(b.current(), name)
}

func (b *bundleFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(b.current(), name)
}

func (b *bundleFS) Stat(name string) (fs.FileInfo, error) {
	return fs.Stat(b.current(), name)
}

// swap installs new reader and closes the old one. Files opened from the old
// reader must not be used afterwards.
func (b *bundleFS) swap(fsys fs.FS, closer io.Closer) error {
	b.mu.Lock()
	old := b.closer
	b.fsys, b.closer = fsys, closer
	b.mu.Unlock()
	if old == nil {
		return nil
	}
	return old.Close()
}

func (b *bundleFS) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}

// Open locates the longest existing prefix of src and opens it as schema
// source. Anything left of src after a zip bundle is treated as a directory
// inside the bundle.
func Open(src string) (*Source, error) {
	src = filepath.Clean(src)

	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		head = strings.TrimSuffix(head, string(filepath.Separator))
		if len(head) == 0 {
			break
		}

		fi, err := os.Stat(head)
		if err != nil {
			// does not exist, probably path in archive
			continue
		}

		if fi.IsDir() {
			if len(tail) != 0 {
				return nil, fmt.Errorf("schema source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			return &Source{FS: os.DirFS(head), Kind: KindDir, Path: head}, nil
		}

		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		ok, err := IsArchive(head)
		if err != nil {
			return nil, fmt.Errorf("unable to check archive type: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("schema source is neither directory nor zip archive (%s)", head)
		}
		inner := filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator)))
		return openZip(head, inner)
	}
	return nil, fmt.Errorf("schema source was not found (%s)", src)
}

func openZip(name, inner string) (*Source, error) {
	fsys, closer, err := openBundle(name, inner)
	if err != nil {
		return nil, err
	}
	b := &bundleFS{fsys: fsys, closer: closer}
	return &Source{FS: b, Kind: KindZip, Path: name, Inner: path.Clean("/" + inner)[1:], bundle: b}, nil
}

// openBundle opens zip archive and checks its entries. When inner is not
// empty resulting file system is rooted at that directory.
func openBundle(name, inner string) (fs.FS, io.Closer, error) {
	r, err := zip.OpenReader(name)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			if r != nil {
				r.Close()
			}
			return nil, nil, fmt.Errorf("zip archive %q: unsafe path (absolute or contains path traversal): %w", name, err)
		}
		return nil, nil, err
	}
	for _, f := range r.File {
		if !isSafePath(f.Name) {
			r.Close()
			return nil, nil, fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", f.Name)
		}
	}
	if len(inner) == 0 {
		return r, r, nil
	}

	inner = path.Clean(inner)
	if !fs.ValidPath(inner) {
		r.Close()
		return nil, nil, fmt.Errorf("invalid path inside archive %q", inner)
	}
	fi, err := fs.Stat(r, inner)
	if err != nil || !fi.IsDir() {
		r.Close()
		return nil, nil, fmt.Errorf("directory %q was not found in archive (%s)", inner, name)
	}
	sub, err := fs.Sub(r, inner)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return sub, r, nil
}

// IsArchive checks file content for zip signature.
func IsArchive(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// filetype needs 262 bytes at most
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// isSafePath returns false for paths that could escape the archive root:
// absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
