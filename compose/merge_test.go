package compose

import (
	"reflect"
	"testing"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name    string
		base    map[string]any
		overlay map[string]any
		want    map[string]any
	}{
		{
			name:    "right biased",
			base:    map[string]any{"a": 1, "b": 2},
			overlay: map[string]any{"b": 3, "c": 4},
			want:    map[string]any{"a": 1, "b": 3, "c": 4},
		},
		{
			name:    "nested objects merged",
			base:    map[string]any{"attr": map[string]any{"caption": "A", "type": "string_t"}},
			overlay: map[string]any{"attr": map[string]any{"caption": "B"}},
			want:    map[string]any{"attr": map[string]any{"caption": "B", "type": "string_t"}},
		},
		{
			name:    "object replaced by scalar",
			base:    map[string]any{"a": map[string]any{"x": 1}},
			overlay: map[string]any{"a": "flat"},
			want:    map[string]any{"a": "flat"},
		},
		{
			name:    "lists replaced",
			base:    map[string]any{"l": []any{1, 2}},
			overlay: map[string]any{"l": []any{3}},
			want:    map[string]any{"l": []any{3}},
		},
		{
			name:    "nil inputs",
			base:    nil,
			overlay: nil,
			want:    map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeepMerge(tt.base, tt.overlay); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DeepMerge() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeepMerge_DoesNotModifyInputs(t *testing.T) {
	base := map[string]any{"attr": map[string]any{"caption": "A"}, "list": []any{map[string]any{"k": 1}}}
	overlay := map[string]any{"attr": map[string]any{"type": "int_t"}}

	got := DeepMerge(base, overlay)
	got["attr"].(map[string]any)["caption"] = "changed"
	got["list"].([]any)[0].(map[string]any)["k"] = 2

	if base["attr"].(map[string]any)["caption"] != "A" {
		t.Error("base was modified through result")
	}
	if _, ok := base["attr"].(map[string]any)["type"]; ok {
		t.Error("overlay leaked into base")
	}
	if base["list"].([]any)[0].(map[string]any)["k"] != 1 {
		t.Error("base list was modified through result")
	}
}

func TestFragment_Clone(t *testing.T) {
	var nilFragment Fragment
	if nilFragment.Clone() != nil {
		t.Error("Clone() of nil fragment is not nil")
	}

	f := Fragment{"type": "user", "attributes": map[string]any{"name": map[string]any{"caption": "Name"}}}
	c := f.Clone()
	c.Attributes()["name"].(map[string]any)["caption"] = "Other"
	if f.Attributes()["name"].(map[string]any)["caption"] != "Name" {
		t.Error("Clone() shares nested maps")
	}
}
