package schema

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"schemac/compose"
	"schemac/utils/debug"
)

// Snapshot is a fully resolved schema published by Repo. Snapshots are
// never modified after publication and may be shared between goroutines,
// callers must not modify returned maps.
type Snapshot struct {
	Session    uuid.UUID
	Built      time.Time
	Home       string
	Extensions []compose.Extension

	Version    compose.Version
	Categories compose.Fragment
	Dictionary compose.Fragment
	Objects    map[string]compose.Fragment
	Classes    map[string]compose.Fragment
}

// Class returns resolved event class by its type name.
func (s *Snapshot) Class(id string) (compose.Fragment, bool) {
	f, ok := s.Classes[id]
	return f, ok
}

// ClassByUID returns event class with the given uid. When more than one
// class declares the same uid the one with the smallest name wins.
func (s *Snapshot) ClassByUID(uid int64) (compose.Fragment, bool) {
	for _, id := range debug.SortedKeys(s.Classes) {
		if n, ok := UID(s.Classes[id]); ok && n == uid {
			return s.Classes[id], true
		}
	}
	return nil, false
}

// Object returns resolved object by its type name.
func (s *Snapshot) Object(id string) (compose.Fragment, bool) {
	f, ok := s.Objects[id]
	return f, ok
}

// Category returns category definition by its name.
func (s *Snapshot) Category(id string) (map[string]any, bool) {
	c, ok := s.Categories.Attributes()[id].(map[string]any)
	return c, ok
}

// UID returns integer "uid" of the fragment.
func UID(f map[string]any) (int64, bool) {
	switch v := f[compose.KeyUID].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// String dumps snapshot as indented tree in natural order of names.
func (s *Snapshot) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "schema %s", s.Version.Version)
	tw.TextBlock(1, "session", s.Session.String())
	tw.TextBlock(1, "home", s.Home)
	tw.TextBlock(1, "built", s.Built.Format(time.RFC3339))

	tw.Line(1, "extensions: %d", len(s.Extensions))
	for _, e := range s.Extensions {
		tw.Line(2, "%s uid=%d version=%q path=%q", e.Name, e.UID, e.Version, e.Dir)
	}

	tw.Value(1, "categories", map[string]any(s.Categories))
	tw.Value(1, "dictionary", map[string]any(s.Dictionary))

	tw.Line(1, "objects: %d", len(s.Objects))
	for _, id := range debug.SortedKeys(s.Objects) {
		tw.Value(2, id, map[string]any(s.Objects[id]))
	}
	tw.Line(1, "classes: %d", len(s.Classes))
	for _, id := range debug.SortedKeys(s.Classes) {
		tw.Value(2, id, map[string]any(s.Classes[id]))
	}
	return tw.String()
}
