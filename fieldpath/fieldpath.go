// Package fieldpath resolves dot-notation paths over decoded form data:
// nested map[string]any values and []any sequences.
//
// A path is a non-empty list of segments joined by '.'. A segment made only
// of ASCII digits addresses a sequence index ("user.addresses.0.city").
// Bracket notation ("items[0]") is not part of the grammar and is rejected
// with ErrBracketNotation rather than coerced.
package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyPath       = errors.New("fieldpath: empty path")
	ErrEmptySegment    = errors.New("fieldpath: empty segment")
	ErrBracketNotation = errors.New("fieldpath: bracket notation is not supported, use dot notation (items.0)")
	ErrNotContainer    = errors.New("fieldpath: intermediate value is not a map or sequence")
	ErrNegativeIndex   = errors.New("fieldpath: negative index")
	ErrIndexTooLarge   = errors.New("fieldpath: index too large")
)

// maxIndex bounds sequence growth from a single Set.
const maxIndex = 1 << 20

// Validate checks path syntax.
func Validate(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsAny(path, "[]") {
		return fmt.Errorf("%w: %q", ErrBracketNotation, path)
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return fmt.Errorf("%w: %q", ErrEmptySegment, path)
		}
	}
	return nil
}

// Split validates path and returns its segments.
func Split(path string) ([]string, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	return strings.Split(path, "."), nil
}

// Join joins segments with '.', skipping empty ones.
func Join(segs ...string) string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ".")
}

// Parent returns the path without its last segment ("" for a single segment).
func Parent(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}

// IsIndex reports whether seg addresses a sequence index.
func IsIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return true
}

// Within reports whether p equals base or lies below it.
func Within(p, base string) bool {
	return p == base || strings.HasPrefix(p, base+".")
}

// Related reports whether one of a or b is within the other.
func Related(a, b string) bool { return Within(a, b) || Within(b, a) }

// FromPointer converts a JSON Pointer issue path ("/items/0/name") into a
// dot path ("items.0.name"). The root pointer maps to "".
func FromPointer(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
	}
	return strings.Join(parts, ".")
}

// ToPointer converts a dot path into a JSON Pointer.
func ToPointer(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, ".")
	for i, s := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
	}
	return "/" + strings.Join(parts, "/")
}

// Get resolves path in root. It never panics: a missing intermediate, an
// index out of range, or an invalid path yields (nil, false).
func Get(root any, path string) (any, bool) {
	segs, err := Split(path)
	if err != nil {
		return nil, false
	}
	cur := root
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !IsIndex(seg) {
				return nil, false
			}
			i, err := strconv.Atoi(seg)
			if err != nil || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes v at path, creating intermediate maps, or sequences when the
// next segment is an index. Sequences are extended with nil gaps. root is
// mutated in place.
func Set(root map[string]any, path string, v any) error {
	segs, err := Split(path)
	if err != nil {
		return err
	}
	if root == nil {
		return fmt.Errorf("%w: nil root", ErrNotContainer)
	}
	_, err = setIn(root, segs, v)
	return err
}

// setIn writes into container c and returns the (possibly reallocated)
// container so the caller can store grown sequences back into the parent.
func setIn(c any, segs []string, v any) (any, error) {
	seg := segs[0]
	last := len(segs) == 1
	switch t := c.(type) {
	case map[string]any:
		if last {
			t[seg] = v
			return t, nil
		}
		child, err := setIn(containerFor(t[seg], segs[1]), segs[1:], v)
		if err != nil {
			return nil, err
		}
		t[seg] = child
		return t, nil
	case []any:
		if !IsIndex(seg) {
			if len(seg) > 1 && seg[0] == '-' && IsIndex(seg[1:]) {
				return nil, fmt.Errorf("%w: %q", ErrNegativeIndex, seg)
			}
			return nil, fmt.Errorf("%w: segment %q on a sequence", ErrNotContainer, seg)
		}
		i, err := strconv.Atoi(seg)
		if err != nil || i > maxIndex {
			return nil, fmt.Errorf("%w: %q (max %d)", ErrIndexTooLarge, seg, maxIndex)
		}
		for len(t) <= i {
			t = append(t, nil)
		}
		if last {
			t[i] = v
			return t, nil
		}
		child, err := setIn(containerFor(t[i], segs[1]), segs[1:], v)
		if err != nil {
			return nil, err
		}
		t[i] = child
		return t, nil
	default:
		return nil, ErrNotContainer
	}
}

// containerFor returns existing when it is a container, otherwise a new
// container shaped for the next segment.
func containerFor(existing any, next string) any {
	switch existing.(type) {
	case map[string]any, []any:
		return existing
	}
	if IsIndex(next) {
		return []any{}
	}
	return map[string]any{}
}

// Unset removes the leaf at path. Map keys are deleted; sequence slots are
// set to nil so sibling indices do not shift. Parents are never collapsed.
// It reports whether anything was removed.
func Unset(root map[string]any, path string) bool {
	segs, err := Split(path)
	if err != nil {
		return false
	}
	parent := any(root)
	if len(segs) > 1 {
		p, ok := Get(root, strings.Join(segs[:len(segs)-1], "."))
		if !ok {
			return false
		}
		parent = p
	}
	leaf := segs[len(segs)-1]
	switch c := parent.(type) {
	case map[string]any:
		if _, ok := c[leaf]; !ok {
			return false
		}
		delete(c, leaf)
		return true
	case []any:
		if !IsIndex(leaf) {
			return false
		}
		i, err := strconv.Atoi(leaf)
		if err != nil || i >= len(c) {
			return false
		}
		c[i] = nil
		return true
	}
	return false
}
