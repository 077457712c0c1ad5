package compose

import (
	"maps"
)

// DeepMerge merges overlay onto base and returns new map. On key collision
// overlay wins, unless both values are objects, in which case they are merged
// recursively. Neither input is modified and the result shares no maps with
// them, so cached fragments may be used as either side.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range overlay {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = DeepMerge(bm, om)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

// Clone returns deep copy of the fragment.
func (f Fragment) Clone() Fragment {
	if f == nil {
		return nil
	}
	return cloneMap(f)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Fragment:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		// strings, json.Number, bools and nil are immutable
		return v
	}
}

// without returns shallow copy of m without key.
func without(m map[string]any, key string) map[string]any {
	out := maps.Clone(m)
	delete(out, key)
	return out
}
