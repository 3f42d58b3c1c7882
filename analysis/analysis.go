// Package analysis decides whether a single form field can be validated with
// its own sub-schema, and extracts that sub-schema.
//
// A field can be validated in isolation when no refinement on an ancestor
// (an object- or array-level Refine/SuperRefine) could read it together with
// its siblings. Schemas are expected to be immutable once built, so results
// are cached per (schema identity, path).
package analysis

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/fieldpath"
)

// Reason explains why partial validation is not possible.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonInvalidPath  Reason = "invalid-path"
	ReasonHasEffects   Reason = "has-effects"
	ReasonUnwrapFailed Reason = "unwrap-failed"
	ReasonRootEffects  Reason = "root-effects"
)

// Result is the outcome of AnalyzeSchemaPath.
type Result struct {
	CanPartialValidate bool
	Reason             Reason
	// AvailableFields lists the keys of the deepest object reached when the
	// path does not exist, to help callers report typos.
	AvailableFields []string
}

// SubSchema is the minimal schema needed to validate one field.
type SubSchema struct {
	Schema formskema.Schema
	// HasEffects reports refinements attached to the field itself. They only
	// see the field's value, so they do not prevent partial validation.
	HasEffects bool
}

type cacheKey struct {
	schema formskema.Schema
	path   string
}

type entry struct {
	result Result
	sub    *SubSchema
}

// Analyzer caches analysis results. The zero value is not usable; use New.
type Analyzer struct {
	mu      sync.RWMutex
	entries map[cacheKey]entry
	roots   map[formskema.Schema]bool
}

// New returns an empty Analyzer.
func New() *Analyzer {
	return &Analyzer{entries: map[cacheKey]entry{}, roots: map[formskema.Schema]bool{}}
}

// defaultAnalyzer backs the package-level functions. Its entries live for
// the life of the process; callers analyzing many short-lived schemas
// should hold their own Analyzer.
var defaultAnalyzer = New()

// AnalyzeSchemaPath uses the package-level analyzer.
func AnalyzeSchemaPath(s formskema.Schema, path string) Result {
	return defaultAnalyzer.AnalyzeSchemaPath(s, path)
}

// ExtractSubSchema uses the package-level analyzer.
func ExtractSubSchema(s formskema.Schema, path string) (*SubSchema, bool) {
	return defaultAnalyzer.ExtractSubSchema(s, path)
}

// HasRootEffects uses the package-level analyzer.
func HasRootEffects(s formskema.Schema) bool { return defaultAnalyzer.HasRootEffects(s) }

// AnalyzeSchemaPath reports whether path can be validated in isolation.
func (a *Analyzer) AnalyzeSchemaPath(s formskema.Schema, path string) Result {
	return a.lookup(s, path).result
}

// ExtractSubSchema returns the schema for path, or false when the path does
// not exist in s. Extraction succeeds even when ancestors carry effects;
// callers decide with AnalyzeSchemaPath whether the result may be used alone.
func (a *Analyzer) ExtractSubSchema(s formskema.Schema, path string) (*SubSchema, bool) {
	e := a.lookup(s, path)
	return e.sub, e.sub != nil
}

// HasRootEffects reports whether the top-level schema carries refinements.
// Such a refinement may read any field, so every field must be validated
// with the full schema.
func (a *Analyzer) HasRootEffects(s formskema.Schema) bool {
	if s == nil {
		return false
	}
	if !hashable(s) {
		return rootEffects(s)
	}
	a.mu.RLock()
	v, ok := a.roots[s]
	a.mu.RUnlock()
	if ok {
		return v
	}
	v = rootEffects(s)
	a.mu.Lock()
	a.roots[s] = v
	a.mu.Unlock()
	return v
}

// Len returns the number of cached path entries.
func (a *Analyzer) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func (a *Analyzer) lookup(s formskema.Schema, path string) entry {
	if s == nil {
		return entry{result: Result{Reason: ReasonInvalidPath}}
	}
	if !hashable(s) {
		return analyze(s, path)
	}
	k := cacheKey{schema: s, path: path}
	a.mu.RLock()
	e, ok := a.entries[k]
	a.mu.RUnlock()
	if ok {
		return e
	}
	e = analyze(s, path)
	a.mu.Lock()
	a.entries[k] = e
	a.mu.Unlock()
	return e
}

// hashable reports whether s can be used as a map key without panicking.
// Pointer-backed schemas compare by identity.
func hashable(s formskema.Schema) bool {
	return reflect.TypeOf(s).Comparable()
}

func rootEffects(s formskema.Schema) bool {
	for {
		if formskema.HasEffects(s) {
			return true
		}
		w, ok := s.(formskema.Wrapper)
		if !ok {
			return false
		}
		s = w.Unwrap()
		if s == nil {
			return false
		}
	}
}

// analyze walks s along path.
func analyze(root formskema.Schema, path string) entry {
	segs, err := fieldpath.Split(path)
	if err != nil {
		return entry{result: Result{Reason: ReasonInvalidPath}}
	}
	ancestorEffects := false
	cur := root
	for _, seg := range segs {
		node, effects, ok := unwrapWithEffects(cur)
		if !ok {
			return entry{result: Result{Reason: ReasonUnwrapFailed}}
		}
		if effects {
			ancestorEffects = true
		}
		switch n := node.(type) {
		case formskema.ObjectShape:
			child, ok := n.Shape()[seg]
			if !ok {
				return entry{result: Result{Reason: ReasonInvalidPath, AvailableFields: sortedKeys(n.Shape())}}
			}
			cur = child
		case formskema.ElementSchema:
			if !fieldpath.IsIndex(seg) {
				return entry{result: Result{Reason: ReasonInvalidPath}}
			}
			cur = n.Element()
		default:
			return entry{result: Result{Reason: ReasonInvalidPath}}
		}
		if cur == nil {
			return entry{result: Result{Reason: ReasonUnwrapFailed}}
		}
	}
	_, ownEffects, ok := unwrapWithEffects(cur)
	if !ok {
		return entry{result: Result{Reason: ReasonUnwrapFailed}}
	}
	sub := &SubSchema{Schema: cur, HasEffects: ownEffects}
	if ancestorEffects {
		return entry{result: Result{Reason: ReasonHasEffects}, sub: sub}
	}
	return entry{result: Result{CanPartialValidate: true}, sub: sub}
}

// unwrapWithEffects strips wrappers and reports whether any layer, wrapper
// or unwrapped node, carries effects.
func unwrapWithEffects(s formskema.Schema) (formskema.Schema, bool, bool) {
	const maxDepth = 32
	effects := false
	for i := 0; i < maxDepth; i++ {
		if s == nil {
			return nil, effects, false
		}
		if formskema.HasEffects(s) {
			effects = true
		}
		w, ok := s.(formskema.Wrapper)
		if !ok {
			return s, effects, true
		}
		s = w.Unwrap()
	}
	return nil, effects, false
}

func sortedKeys(m map[string]formskema.Schema) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Describe renders a Result for log messages.
func (r Result) Describe() string {
	if r.CanPartialValidate {
		return "partial"
	}
	var b strings.Builder
	b.WriteString("full: ")
	b.WriteString(string(r.Reason))
	if len(r.AvailableFields) > 0 {
		b.WriteString(" (available: ")
		b.WriteString(strings.Join(r.AvailableFields, ", "))
		b.WriteString(")")
	}
	return b.String()
}
