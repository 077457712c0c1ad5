package export

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"schemac/config"
	"schemac/schema"
)

// DefaultExt is appended to generated names without database extension.
const DefaultExt = ".sqlite"

var knownExts = []string{".sqlite", ".sqlite3", ".db"}

// NameValues are available to output name template.
type NameValues struct {
	Source     string
	Version    string
	Major      uint64
	Minor      uint64
	Patch      uint64
	Extensions []string
	Session    string
}

func newNameValues(snap *schema.Snapshot, source string) NameValues {
	v := NameValues{
		Source:  source,
		Version: snap.Version.Version,
		Session: snap.Session.String(),
	}
	if sv := snap.Version.Semver(); sv != nil {
		v.Major, v.Minor, v.Patch = sv.Major(), sv.Minor(), sv.Patch()
	}
	for _, e := range snap.Extensions {
		v.Extensions = append(v.Extensions, e.Name)
	}
	return v
}

// OutputName expands name template for the snapshot. Result is a file name
// without directory, characters not allowed in file names are removed.
func OutputName(tmpl string, snap *schema.Snapshot, source string) (string, error) {
	if len(strings.TrimSpace(tmpl)) == 0 {
		return "", errors.New("output name template is empty")
	}
	t, err := template.New("output_name").Funcs(sprig.FuncMap()).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("unable to parse output name template: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, newNameValues(snap, source)); err != nil {
		return "", fmt.Errorf("unable to expand output name template: %w", err)
	}

	name := config.CleanFileName(strings.TrimSpace(buf.String()))
	// versions have dots, so any extension is not good enough
	if !slices.Contains(knownExts, strings.ToLower(filepath.Ext(name))) {
		name += DefaultExt
	}
	return name, nil
}
