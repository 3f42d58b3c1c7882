// Package rules provides cross-field refinements for object schemas. A Rule
// has the signature of dsl.SuperRefineFunc, so it plugs into
// ObjectBuilder.SuperRefine directly:
//
//	g.Object().
//	    Field("password", g.String()).
//	    Field("confirm", g.String()).
//	    SuperRefine(rules.Matches("confirm", "password"))
//
// Paths are dot paths relative to the refined object ("items.0.sku").
// Because a rule can read any field, a schema carrying one is always
// validated as a whole by the form engine.
package rules

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/i18n"
)

// Op defines simple comparison operators for If(...).Then(...)
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Rule inspects the parsed object and reports issues under root.
type Rule = func(ctx context.Context, v map[string]any, root formskema.PathRef) formskema.Issues

// Conditional composes conditional execution of rules.
type Conditional struct {
	path string
	op   Op
	want any
	all  []Conditional // composite AND
	any  []Conditional // composite OR
}

// If builds a conditional that evaluates a path against a value using an operator.
func If(path string, op Op, want any) Conditional {
	return Conditional{path: path, op: op, want: want}
}

// IfAll builds a conditional that requires all conditions to hold.
func IfAll(conds ...Conditional) Conditional { return Conditional{all: conds} }

// IfAny builds a conditional that requires any condition to hold.
func IfAny(conds ...Conditional) Conditional { return Conditional{any: conds} }

// And combines the receiver with additional conditions using logical AND.
func (c Conditional) And(others ...Conditional) Conditional {
	return IfAll(append([]Conditional{c}, others...)...)
}

// Or combines the receiver with additional conditions using logical OR.
func (c Conditional) Or(others ...Conditional) Conditional {
	return IfAny(append([]Conditional{c}, others...)...)
}

// Then attaches rules to run when the condition is satisfied.
func (c Conditional) Then(rules ...Rule) Rule {
	return func(ctx context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
		if !c.eval(v) {
			return nil
		}
		return And(rules...)(ctx, v, root)
	}
}

func (c Conditional) eval(v map[string]any) bool {
	if len(c.all) > 0 {
		for _, it := range c.all {
			if !it.eval(v) {
				return false
			}
		}
		return true
	}
	if len(c.any) > 0 {
		for _, it := range c.any {
			if it.eval(v) {
				return true
			}
		}
		return false
	}
	cur, ok := fieldpath.Get(v, c.path)
	if !ok {
		return false
	}
	return compare(cur, c.op, c.want)
}

// Required reports a missing, nil or empty-string value at path.
func Required(path string) Rule {
	return func(_ context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
		cur, ok := fieldpath.Get(v, path)
		if ok && cur != nil && cur != "" {
			return nil
		}
		return formskema.Issues{refAt(root, path).Issue(formskema.CodeRequired, i18n.T(formskema.CodeRequired, nil))}
	}
}

// Matches requires the value at path to equal the value at other. The issue
// is reported on path.
func Matches(path, other string) Rule {
	return func(_ context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
		a, _ := fieldpath.Get(v, path)
		b, _ := fieldpath.Get(v, other)
		if compare(a, Eq, b) {
			return nil
		}
		msg := i18n.T(formskema.CodeMismatch, map[string]string{"other": other})
		return formskema.Issues{refAt(root, path).Issue(formskema.CodeMismatch, msg, "other", other)}
	}
}

// AtLeastOne ensures the collection at collectionPath has at least 1 element.
func AtLeastOne(collectionPath string) Rule {
	return func(_ context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
		val, ok := fieldpath.Get(v, collectionPath)
		if !ok {
			return nil
		}
		if s, isSlice := val.([]any); isSlice && len(s) == 0 {
			return formskema.Issues{refAt(root, collectionPath).Issue(formskema.CodeTooShort, "at least 1 item is required", "min", 1)}
		}
		return nil
	}
}

// UniqueBy ensures elements in a collection have unique key values.
// keyPath is relative to each element ("sku"). Keys are compared by their
// printed form, so keep the key a single type.
func UniqueBy(collectionPath, keyPath string) Rule {
	return func(_ context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
		val, ok := fieldpath.Get(v, collectionPath)
		if !ok {
			return nil
		}
		elems, isSlice := val.([]any)
		if !isSlice {
			return nil
		}
		seen := map[string]int{}
		var out formskema.Issues
		for i, elem := range elems {
			kv, ok := fieldpath.Get(elem, keyPath)
			if !ok {
				continue
			}
			key := fmt.Sprint(kv)
			if j, dup := seen[key]; dup {
				ref := refAt(refAt(root, collectionPath).Index(i), keyPath)
				out = append(out, ref.Issue(formskema.CodeUniqueness, i18n.T(formskema.CodeUniqueness, nil), "first", j, "dup", i, "key", key))
			} else {
				seen[key] = i
			}
		}
		return out
	}
}

// And executes all rules and concatenates their issues.
func And(rules ...Rule) Rule {
	return func(ctx context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
		var out formskema.Issues
		for _, r := range rules {
			if r == nil {
				continue
			}
			out = append(out, r(ctx, v, root)...)
		}
		return out
	}
}

// Or succeeds if any rule returns no issues. When all fail, the branch with
// the fewest issues is returned.
func Or(rules ...Rule) Rule {
	return func(ctx context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
		var best formskema.Issues
		bestSet := false
		for _, r := range rules {
			if r == nil {
				continue
			}
			iss := r(ctx, v, root)
			if len(iss) == 0 {
				return nil
			}
			if !bestSet || len(iss) < len(best) {
				best = iss
				bestSet = true
			}
		}
		return best
	}
}

func refAt(root formskema.PathRef, path string) formskema.PathRef {
	segs, err := fieldpath.Split(path)
	if err != nil {
		return root
	}
	ref := root
	for _, s := range segs {
		if fieldpath.IsIndex(s) {
			i, _ := strconv.Atoi(s)
			ref = ref.Index(i)
		} else {
			ref = ref.Field(s)
		}
	}
	return ref
}

// compare treats every numeric kind as a number, so a decoded JSON float64
// compares equal to an int literal.
func compare(cur any, op Op, want any) bool {
	a, aNum := toFloat64(cur)
	b, bNum := toFloat64(want)
	if aNum && bNum {
		switch op {
		case Eq:
			return a == b
		case Ne:
			return a != b
		case Lt:
			return a < b
		case Le:
			return a <= b
		case Gt:
			return a > b
		case Ge:
			return a >= b
		}
		return false
	}
	switch op {
	case Eq:
		return reflect.DeepEqual(cur, want)
	case Ne:
		return !reflect.DeepEqual(cur, want)
	}
	return false
}

func toFloat64(x any) (float64, bool) {
	if x == nil {
		return 0, false
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
