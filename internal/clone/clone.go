// Package clone deep-copies decoded form data.
package clone

import "reflect"

// Value returns a deep copy of v. map[string]any and []any containers are
// copied recursively; other values are shared (strings and numbers are
// immutable, and form data is expected to hold only those). Reference
// cycles are preserved as cycles in the copy instead of recursing forever.
func Value(v any) any {
	return cloneValue(v, map[ref]any{})
}

// Map is Value for the common root shape. A nil map yields an empty map.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Value(m).(map[string]any)
}

// ref identifies a container. Slices of different lengths can share a
// backing array, so the length is part of the identity.
type ref struct {
	ptr   uintptr
	n     int
	slice bool
}

func cloneValue(v any, seen map[ref]any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		id := ref{ptr: reflect.ValueOf(t).Pointer()}
		if c, ok := seen[id]; ok {
			return c
		}
		out := make(map[string]any, len(t))
		seen[id] = out
		for k, val := range t {
			out[k] = cloneValue(val, seen)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		if len(t) == 0 {
			return []any{}
		}
		id := ref{ptr: reflect.ValueOf(t).Pointer(), n: len(t), slice: true}
		if c, ok := seen[id]; ok {
			return c
		}
		out := make([]any, len(t))
		seen[id] = out
		for i, val := range t {
			out[i] = cloneValue(val, seen)
		}
		return out
	default:
		return v
	}
}
