// Package debug has helpers producing human readable dumps of resolved
// schema data.
package debug

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
)

// TreeWriter accumulates indented lines, two spaces per level.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// Value writes decoded JSON value under label. Object keys are written in
// natural order, so dumps of equal values are identical.
func (tw TreeWriter) Value(depth int, label string, v any) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			tw.Line(depth, "%s: {}", label)
			return
		}
		tw.Line(depth, "%s:", label)
		for _, k := range SortedKeys(t) {
			tw.Value(depth+1, k, t[k])
		}
	case []any:
		if len(t) == 0 {
			tw.Line(depth, "%s: []", label)
			return
		}
		tw.Line(depth, "%s:", label)
		for i, e := range t {
			tw.Value(depth+1, "["+strconv.Itoa(i)+"]", e)
		}
	case string:
		tw.indent(depth)
		tw.w.WriteString(label)
		tw.w.WriteString(": ")
		tw.w.WriteString(strconv.Quote(t))
		tw.w.WriteByte('\n')
	case nil:
		tw.Line(depth, "%s: null", label)
	default:
		tw.Line(depth, "%s: %v", label, t)
	}
}

// SortedKeys returns keys of the map in natural order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))
	return keys
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
