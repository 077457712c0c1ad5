package render

import (
	"bytes"
	"encoding/json"
	"maps"
	"reflect"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/zap/zaptest"
	yaml "gopkg.in/yaml.v3"

	"schemac/common"
	"schemac/compose"
	"schemac/schema"
)

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

func testRepo(t *testing.T) *schema.Repo {
	t.Helper()
	home := fstest.MapFS{
		"version.json":    file(`{"version": "1.1.0"}`),
		"categories.json": file(`{"attributes": {"system": {"uid": 1}}}`),
		"dictionary.json": file(`{"attributes": {"name": {"type": "string_t"}}}`),

		"events/login.json": file(`{"type": "login", "uid": 3002, "attributes": {"user": {"requirement": "required"}}}`),
		"objects/user.json": file(`{"type": "user", "attributes": {"name": {}}}`),

		"extensions/acme/extension.json":   file(`{"name": "acme", "uid": 7}`),
		"extensions/acme/objects/user.json": file(`{"type": "user", "attributes": {"badge": {}}}`),
	}
	r, err := schema.New(home, schema.WithLogger(zaptest.NewLogger(t)), schema.WithExtensions("extensions"))
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestSelect(t *testing.T) {
	r := testRepo(t)

	tests := []struct {
		name string
		sel  Selection
		want []string
	}{
		{"all", Selection{Section: common.SectionAll}, []string{"categories", "classes", "dictionary", "objects", "version"}},
		{"version", Selection{Section: common.SectionVersion}, []string{"version"}},
		{"categories", Selection{Section: common.SectionCategories}, []string{"attributes"}},
		{"objects", Selection{Section: common.SectionObjects}, []string{"user"}},
		{"classes", Selection{Section: common.SectionClasses}, []string{"login"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Select(r, tt.sel)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			var buf bytes.Buffer
			if err := Write(&buf, doc, common.OutputFmtJSON, 0); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			var m map[string]json.RawMessage
			if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
				t.Fatalf("output is not an object: %v\n%s", err, buf.String())
			}
			if got := slices.Sorted(maps.Keys(m)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("keys = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Select(r, Selection{Section: common.Section(42)}); err == nil {
		t.Error("Select() with unknown section: expected error")
	}
}

func TestSelect_Only(t *testing.T) {
	r := testRepo(t)

	all, err := Select(r, Selection{Section: common.SectionObjects})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := all.(map[string]compose.Fragment)["user"].Attributes()["badge"]; !ok {
		t.Error("badge attribute from acme extension is missing")
	}

	base, err := Select(r, Selection{Section: common.SectionObjects, Only: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := base.(map[string]compose.Fragment)["user"].Attributes()["badge"]; ok {
		t.Error("badge attribute is present when only base schema is requested")
	}
}

func TestWrite_JSON(t *testing.T) {
	doc := map[string]any{"b": json.Number("3"), "a": "<x>"}

	var buf bytes.Buffer
	if err := Write(&buf, doc, common.OutputFmtJSON, 2); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"a\": \"<x>\",\n  \"b\": 3\n}\n"
	if buf.String() != want {
		t.Errorf("Write() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := Write(&buf, doc, common.OutputFmtJSON, 0); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "{\"a\":\"<x>\",\"b\":3}\n" {
		t.Errorf("compact Write() = %q", got)
	}
}

func TestWrite_YAML(t *testing.T) {
	doc := map[string]compose.Fragment{
		"user": {"type": "user", "uid": json.Number("12"), "score": json.Number("0.5"), "attributes": map[string]any{
			"name": map[string]any{"extension": "acme"},
		}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, doc, common.OutputFmtYAML, 4); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, `"12"`) || strings.Contains(out, `'12'`) {
		t.Errorf("numbers must not be quoted:\n%s", out)
	}
	if !strings.Contains(out, "\n    uid: 12\n") {
		t.Errorf("unexpected indentation:\n%s", out)
	}

	var back map[string]map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if back["user"]["uid"] != 12 || back["user"]["score"] != 0.5 {
		t.Errorf("round trip = %v", back)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, map[string]any{}, common.OutputFmt(9), 0); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestPlain(t *testing.T) {
	in := compose.Fragment{"list": []any{json.Number("1"), json.Number("1e400"), "s"}}
	got := plain(in).(map[string]any)
	list := got["list"].([]any)
	if list[0] != int64(1) {
		t.Errorf("list[0] = %#v", list[0])
	}
	// out of float range, kept as text
	if list[1] != "1e400" {
		t.Errorf("list[1] = %#v", list[1])
	}
	if list[2] != "s" {
		t.Errorf("list[2] = %#v", list[2])
	}
}
