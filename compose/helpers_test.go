package compose

import (
	"encoding/json"
	"io/fs"
	"slices"
	"sync"
	"testing"
	"testing/fstest"
)

// countingFS counts file reads per name.
type countingFS struct {
	fstest.MapFS
	mu    sync.Mutex
	reads map[string]int
}

func newCountingFS(m fstest.MapFS) *countingFS {
	return &countingFS{MapFS: m, reads: make(map[string]int)}
}

func (c *countingFS) ReadFile(name string) ([]byte, error) {
	c.mu.Lock()
	c.reads[name]++
	c.mu.Unlock()
	return c.MapFS.ReadFile(name)
}

func (c *countingFS) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[name]
}

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

// baseTree is a small but complete schema home.
func baseTree() fstest.MapFS {
	return fstest.MapFS{
		"version.json":    file(`{"version": "1.2.0"}`),
		"categories.json": file(`{"caption": "Categories", "attributes": {"system": {"uid": 1, "caption": "System"}}}`),
		"dictionary.json": file(`{"caption": "Dictionary", "attributes": {"name": {"type": "string_t"}, "time": {"type": "timestamp_t"}}}`),

		"includes/occurrence.json": file(`{"caption": "Occurrence", "attributes": {"time": {"requirement": "required"}, "count": {"requirement": "optional"}}}`),
		"includes/x.json":          file(`{"attributes": {"foo": 1}}`),
		"includes/y.json":          file(`{"attributes": {"foo": 2}}`),
		"enums/activity.json":      file(`{"enum": {"0": {"caption": "Unknown"}, "1": {"caption": "Create"}}, "caption": "Activity"}`),

		"events/base_event.json": file(`{"type": "base_event", "uid": 0, "attributes": {"$include": "includes/occurrence.json", "message": {"requirement": "optional"}}}`),
		"events/system/file_activity.json": file(`{
			"type": "file_activity", "uid": 1001, "category": "system",
			"attributes": {
				"$include": ["includes/occurrence.json"],
				"activity_id": {"$include": "enums/activity.json", "requirement": "required"},
				"count": {"requirement": "recommended"}
			}}`),
		"events/README.md": file(`not a schema file`),

		"objects/user.json":   file(`{"type": "user", "attributes": {"name": {"requirement": "required"}}}`),
		"objects/device.json": file(`{"type": "device", "attributes": {"name": {"requirement": "optional"}}}`),
	}
}

// withAcme adds "acme" extension overlaying the base tree.
func withAcme(m fstest.MapFS) fstest.MapFS {
	m["extensions/acme/extension.json"] = file(`{"name": "acme", "uid": 999, "caption": "ACME", "version": "0.1.0"}`)
	m["extensions/acme/categories.json"] = file(`{"attributes": {"widgets": {"uid": 99, "caption": "Widgets"}}}`)
	m["extensions/acme/objects/user.json"] = file(`{"type": "user", "attributes": {"badge": {"requirement": "optional"}}}`)
	m["extensions/acme/events/widget_activity.json"] = file(`{"type": "widget_activity", "uid": 1, "attributes": {"$include": "includes/local.json", "widget": {"requirement": "required"}}}`)
	m["extensions/acme/includes/local.json"] = file(`{"attributes": {"serial": {"requirement": "optional"}}}`)
	return m
}

func acme() Extension {
	return Extension{Name: "acme", UID: 999, Dir: "extensions/acme"}
}

func newComposer(t *testing.T, home fs.FS, opts ...Option) *Composer {
	t.Helper()
	c, err := New(home, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func attr(t *testing.T, f Fragment, name string) map[string]any {
	t.Helper()
	a, ok := f.Attributes()[name].(map[string]any)
	if !ok {
		t.Fatalf("attribute %q not found in %v", name, f.Attributes())
	}
	return a
}

func num(s string) json.Number {
	return json.Number(s)
}

// withShadowing adds a shared trait with a nested enum include, an acme copy
// of that enum and users of the trait on both sides.
func withShadowing(m fstest.MapFS) fstest.MapFS {
	m["traits/status.json"] = file(`{"attributes": {"status": {"$include": "enums/status.json", "requirement": "optional"}}}`)
	m["enums/status.json"] = file(`{"caption": "base"}`)
	m["events/status_change.json"] = file(`{"type": "status_change", "uid": 2001, "attributes": {"$include": "traits/status.json"}}`)
	m["extensions/acme/enums/status.json"] = file(`{"caption": "acme"}`)
	m["extensions/acme/objects/gadget.json"] = file(`{"type": "gadget", "attributes": {"$include": "traits/status.json", "mode": {"$include": "enums/status.json"}}}`)
	return m
}

// readAll resolves every section, in the given section order.
func readAll(t *testing.T, c *Composer, exts []Extension, reversed bool) map[string]any {
	t.Helper()
	readers := []struct {
		name string
		read func() (any, error)
	}{
		{"version", func() (any, error) { v, err := c.ReadVersion(); return v.Version, err }},
		{"categories", func() (any, error) { return c.ReadCategories(exts) }},
		{"dictionary", func() (any, error) { return c.ReadDictionary(exts) }},
		{"objects", func() (any, error) { return c.ReadObjects(exts) }},
		{"classes", func() (any, error) { return c.ReadClasses(exts) }},
	}
	if reversed {
		slices.Reverse(readers)
	}
	out := make(map[string]any, len(readers))
	for _, r := range readers {
		v, err := r.read()
		if err != nil {
			t.Fatalf("reading %s: %v", r.name, err)
		}
		out[r.name] = v
	}
	return out
}
