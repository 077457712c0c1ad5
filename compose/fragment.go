package compose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"regexp"
)

// Well known fragment keys.
const (
	KeyType       = "type"
	KeyAttributes = "attributes"
	KeyInclude    = "$include"
	KeyExtension  = "extension"
	KeyUID        = "uid"
	KeyCategory   = "category"
	KeyCaption    = "caption"
)

// Fragment is one parsed schema file: class, object, category set,
// dictionary or included attribute group. Numbers are kept as json.Number.
type Fragment map[string]any

// Type returns declared type name, empty if absent or not a string.
func (f Fragment) Type() string {
	s, _ := f[KeyType].(string)
	return s
}

// Attributes returns attribute map, nil if fragment has none.
func (f Fragment) Attributes() map[string]any {
	m, _ := f[KeyAttributes].(map[string]any)
	return m
}

// Extension returns name of extension which contributed the fragment.
func (f Fragment) Extension() string {
	s, _ := f[KeyExtension].(string)
	return s
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseIdentifier validates type name coming from schema file before it is
// used as a map key.
func ParseIdentifier(s string) (string, error) {
	if !identRe.MatchString(s) {
		return "", fmt.Errorf("invalid identifier %q", s)
	}
	return s, nil
}

// readFragment reads and decodes JSON object from the file.
func readFragment(fsys fs.FS, name string) (Fragment, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, newError(FilesystemAccess, name, err)
	}
	f, err := decodeFragment(data)
	if err != nil {
		return nil, newError(MalformedInput, name, err)
	}
	return f, nil
}

func decodeFragment(data []byte) (Fragment, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value must be an object, got %T", v)
	}
	return Fragment(m), nil
}
