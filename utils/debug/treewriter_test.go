package debug

import (
	"strings"
	"testing"
)

func TestNewTreeWriter(t *testing.T) {
	tw := NewTreeWriter()
	if tw == nil {
		t.Fatal("NewTreeWriter() returned nil")
	}
	if tw.w == nil {
		t.Error("TreeWriter builder is nil")
	}
}

func TestTreeWriter_String(t *testing.T) {
	tw := NewTreeWriter()
	if tw.String() != "" {
		t.Error("Expected empty string from new TreeWriter")
	}

	tw.w.WriteString("test content")
	if tw.String() != "test content" {
		t.Errorf("String() = %q, want %q", tw.String(), "test content")
	}
}

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{
			name:   "no depth",
			depth:  0,
			format: "test",
			args:   nil,
			want:   "test\n",
		},
		{
			name:   "depth 1",
			depth:  1,
			format: "indented",
			args:   nil,
			want:   "  indented\n",
		},
		{
			name:   "depth 2",
			depth:  2,
			format: "double indent",
			args:   nil,
			want:   "    double indent\n",
		},
		{
			name:   "with formatting",
			depth:  1,
			format: "value: %d",
			args:   []any{42},
			want:   "  value: 42\n",
		},
		{
			name:   "multiple args",
			depth:  0,
			format: "%s = %d",
			args:   []any{"count", 5},
			want:   "count = 5\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			got := tw.String()
			if got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{
			name:  "no depth empty value",
			depth: 0,
			label: "field",
			value: "",
			want:  "field: \n",
		},
		{
			name:  "no depth with value",
			depth: 0,
			label: "text",
			value: "hello world",
			want:  "text: \"hello world\"\n",
		},
		{
			name:  "depth 1 with value",
			depth: 1,
			label: "content",
			value: "test",
			want:  "  content: \"test\"\n",
		},
		{
			name:  "depth 2 with value",
			depth: 2,
			label: "nested",
			value: "data",
			want:  "    nested: \"data\"\n",
		},
		{
			name:  "value with quotes",
			depth: 0,
			label: "quoted",
			value: "he said \"hello\"",
			want:  "quoted: \"he said \\\"hello\\\"\"\n",
		},
		{
			name:  "value with newline",
			depth: 0,
			label: "multiline",
			value: "line1\nline2",
			want:  "multiline: \"line1\\nline2\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.TextBlock(tt.depth, tt.label, tt.value)
			got := tw.String()
			if got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "simple text",
			input: "hello",
			want:  `"hello"`,
		},
		{
			name:  "with spaces",
			input: "hello world",
			want:  `"hello world"`,
		},
		{
			name:  "with quotes",
			input: `say "hi"`,
			want:  `"say \"hi\""`,
		},
		{
			name:  "with newline",
			input: "line1\nline2",
			want:  `"line1\nline2"`,
		},
		{
			name:  "with tab",
			input: "col1\tcol2",
			want:  `"col1\tcol2"`,
		},
		{
			name:  "with backslash",
			input: `path\to\file`,
			want:  `"path\\to\\file"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeText(tt.input)
			if got != tt.want {
				t.Errorf("encodeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_MultipleOperations(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "classes")
	tw.Line(1, "file_activity")
	tw.TextBlock(2, "caption", "File Activity")
	tw.Line(1, "base_event")
	tw.TextBlock(1, "extension", "acme")

	got := tw.String()
	want := "classes\n  file_activity\n    caption: \"File Activity\"\n  base_event\n  extension: \"acme\"\n"

	if got != want {
		t.Errorf("Multiple operations:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestTreeWriter_Value(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		value any
		want  string
	}{
		{name: "string", value: "text", want: "v: \"text\"\n"},
		{name: "number", depth: 1, value: 42, want: "  v: 42\n"},
		{name: "bool", value: true, want: "v: true\n"},
		{name: "null", value: nil, want: "v: null\n"},
		{name: "empty object", value: map[string]any{}, want: "v: {}\n"},
		{name: "empty list", value: []any{}, want: "v: []\n"},
		{
			name:  "object in natural order",
			value: map[string]any{"a10": 1, "a2": 2, "b": map[string]any{"c": "x"}},
			want:  "v:\n  a2: 2\n  a10: 1\n  b:\n    c: \"x\"\n",
		},
		{
			name:  "list",
			value: []any{"x", map[string]any{"k": 1}},
			want:  "v:\n  [0]: \"x\"\n  [1]:\n    k: 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Value(tt.depth, "v", tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("Value() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]int{"item10": 0, "item2": 0, "alpha": 0})
	want := []string{"alpha", "item2", "item10"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("SortedKeys() = %v, want %v", got, want)
	}
}

func TestTreeWriter_SchemaDump(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "schema %s", "1.2.0")
	tw.Line(1, "objects")
	tw.Value(2, "user", map[string]any{"caption": "User", "attributes": map[string]any{"name": map[string]any{"requirement": "required"}}})
	tw.TextBlock(1, "note", "done")

	result := tw.String()
	for _, line := range []string{
		"schema 1.2.0\n",
		"  objects\n",
		"    user:\n",
		"      attributes:\n",
		"          requirement: \"required\"\n",
		"      caption: \"User\"\n",
		"  note: \"done\"\n",
	} {
		if !strings.Contains(result, line) {
			t.Errorf("dump is missing %q:\n%s", line, result)
		}
	}
}
