package schema

import (
	"schemac/compose"
)

// extensionSet is a filter by extension name. Nil set lets everything
// through, empty set keeps only base schema.
type extensionSet map[string]struct{}

func newExtensionSet(names []string) extensionSet {
	if names == nil {
		return nil
	}
	set := make(extensionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s extensionSet) allows(m map[string]any) bool {
	if s == nil {
		return true
	}
	name, _ := m[compose.KeyExtension].(string)
	if len(name) == 0 {
		return true
	}
	_, ok := s[name]
	return ok
}

// fragment returns f with attributes contributed by filtered out extensions
// removed. When nothing is removed f itself is returned.
func (s extensionSet) fragment(f compose.Fragment) compose.Fragment {
	if s == nil || f == nil {
		return f
	}
	attrs := f.Attributes()
	drop := false
	for _, v := range attrs {
		if a, ok := v.(map[string]any); ok && !s.allows(a) {
			drop = true
			break
		}
	}
	if !drop {
		return f
	}

	kept := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if a, ok := v.(map[string]any); ok && !s.allows(a) {
			continue
		}
		kept[k] = v
	}
	out := make(compose.Fragment, len(f))
	for k, v := range f {
		out[k] = v
	}
	out[compose.KeyAttributes] = kept
	return out
}

// types filters a map of objects or classes: types added by filtered out
// extensions are removed, remaining types lose attributes of those
// extensions.
func (s extensionSet) types(m map[string]compose.Fragment) map[string]compose.Fragment {
	if s == nil {
		return m
	}
	out := make(map[string]compose.Fragment, len(m))
	for id, f := range m {
		if !s.allows(f) {
			continue
		}
		out[id] = s.fragment(f)
	}
	return out
}

// Filter returns view of the snapshot limited to base schema and listed
// extensions. Nil exts returns s itself. Unfiltered parts are shared with s
// and must not be modified.
func (s *Snapshot) Filter(exts []string) *Snapshot {
	set := newExtensionSet(exts)
	if set == nil {
		return s
	}
	out := *s
	out.Extensions = nil
	for _, e := range s.Extensions {
		if _, ok := set[e.Name]; ok {
			out.Extensions = append(out.Extensions, e)
		}
	}
	out.Categories = set.fragment(s.Categories)
	out.Dictionary = set.fragment(s.Dictionary)
	out.Objects = set.types(s.Objects)
	out.Classes = set.types(s.Classes)
	return &out
}
