package compose

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// DefaultMarker is the name of the file which makes a directory an extension
// root.
const DefaultMarker = "extension.json"

// Extension is an overlay of the base schema tree. Dir is relative to schema
// home and mirrors the home layout.
type Extension struct {
	Name    string `json:"name" yaml:"name"`
	UID     int64  `json:"uid,omitempty" yaml:"uid,omitempty"`
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Dir     string `json:"path" yaml:"path"`
}

// stamp returns copy of the fragment with every attribute tagged with the
// extension name.
func (e Extension) stamp(f Fragment) Fragment {
	out := f.Clone()
	attrs := out.Attributes()
	for _, v := range attrs {
		if attr, ok := v.(map[string]any); ok {
			attr[KeyExtension] = e.Name
		}
	}
	return out
}

// Discover finds extension roots under search paths. Search paths are slash
// separated and relative to home, doublestar patterns are accepted. A path
// which is not itself an extension root is searched recursively. Paths which
// are not directories are logged and skipped. Result is deduplicated and
// keeps discovery order.
func Discover(home fs.FS, searchPaths []string, marker string, log *zap.Logger) ([]Extension, error) {
	if len(marker) == 0 {
		marker = DefaultMarker
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		found []Extension
		seen  = make(map[string]struct{})
	)

	add := func(ext Extension) {
		if _, ok := seen[ext.Dir]; ok {
			return
		}
		seen[ext.Dir] = struct{}{}
		found = append(found, ext)
	}

	for _, sp := range searchPaths {
		dirs, err := expandSearchPath(home, sp)
		if err != nil {
			log.Warn("Ignoring extension path", zap.String("path", sp), zap.Error(newError(AmbiguousExtensionPath, sp, err)))
			continue
		}
		for _, dir := range dirs {
			if !isDir(home, dir) {
				log.Warn("Ignoring extension path, not a directory", zap.String("path", dir))
				continue
			}
			if err := findRoots(home, dir, marker, add); err != nil {
				return nil, err
			}
		}
	}
	return found, nil
}

func expandSearchPath(home fs.FS, sp string) ([]string, error) {
	clean := path.Clean(strings.TrimPrefix(strings.TrimSpace(sp), "./"))
	if path.IsAbs(clean) || !fs.ValidPath(clean) {
		return nil, errors.New("path must be relative to schema home and must not leave it")
	}
	if !strings.ContainsAny(clean, "*?[{") {
		return []string{clean}, nil
	}
	matches, err := doublestar.Glob(home, clean)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	sort.Sort(natural.StringSlice(matches))
	return matches, nil
}

func findRoots(home fs.FS, dir, marker string, add func(Extension)) error {
	if mp := path.Join(dir, marker); isRegular(home, mp) {
		ext, err := readDescriptor(home, dir, mp)
		if err != nil {
			return err
		}
		add(ext)
		return nil
	}

	entries, err := fs.ReadDir(home, dir)
	if err != nil {
		return newError(FilesystemAccess, dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].Name(), entries[j].Name())
	})
	for _, e := range entries {
		if name := path.Join(dir, e.Name()); isDir(home, name) {
			if err := findRoots(home, name, marker, add); err != nil {
				return err
			}
		}
	}
	return nil
}

func readDescriptor(home fs.FS, dir, name string) (Extension, error) {
	f, err := readFragment(home, name)
	if err != nil {
		return Extension{}, err
	}

	ext := Extension{Dir: dir}
	ext.Name, _ = f["name"].(string)
	if len(ext.Name) == 0 {
		ext.Name = path.Base(dir)
	}
	ext.Caption, _ = f[KeyCaption].(string)
	ext.Version, _ = f["version"].(string)
	if n, ok := f[KeyUID].(json.Number); ok {
		if ext.UID, err = n.Int64(); err != nil {
			return Extension{}, newError(MalformedInput, name, fmt.Errorf("%q must be an integer: %w", KeyUID, err))
		}
	}
	return ext, nil
}
