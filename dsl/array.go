package dsl

import (
	"context"
	"reflect"
	"strconv"

	formskema "github.com/reoring/formskema"
	js "github.com/reoring/formskema/jsonschema"
)

// ArraySchema validates []any values element by element.
type ArraySchema struct {
	elem    formskema.Schema
	minLen  int
	maxLen  int
	minMsg  string
	maxMsg  string
	refines []arrRefine
}

type arrRefine struct {
	name string
	fn   func(context.Context, []any) error
}

var (
	_ formskema.ElementSchema = (*ArraySchema)(nil)
	_ formskema.Effectful     = (*ArraySchema)(nil)
)

// Array returns an array schema with the given element schema.
func Array(elem formskema.Schema) *ArraySchema {
	return &ArraySchema{elem: elem, minLen: -1, maxLen: -1}
}

func (a *ArraySchema) clone() *ArraySchema {
	c := *a
	c.refines = append([]arrRefine(nil), a.refines...)
	return &c
}

// Min sets the minimum length.
func (a *ArraySchema) Min(n int, msg ...string) *ArraySchema {
	c := a.clone()
	c.minLen = n
	c.minMsg = messageOr(msg, formskema.CodeTooShort, map[string]string{"min": strconv.Itoa(n)})
	return c
}

// Max sets the maximum length.
func (a *ArraySchema) Max(n int, msg ...string) *ArraySchema {
	c := a.clone()
	c.maxLen = n
	c.maxMsg = messageOr(msg, formskema.CodeTooLong, map[string]string{"max": strconv.Itoa(n)})
	return c
}

// Refine adds an array-level refinement (for example uniqueness across items).
func (a *ArraySchema) Refine(name string, fn func(context.Context, []any) error) *ArraySchema {
	if fn == nil {
		return a
	}
	c := a.clone()
	c.refines = append(c.refines, arrRefine{name: name, fn: fn})
	return c
}

// Element returns the element schema.
func (a *ArraySchema) Element() formskema.Schema { return a.elem }

// HasEffects reports whether array-level refinements are attached.
func (a *ArraySchema) HasEffects() bool { return len(a.refines) > 0 }

func (a *ArraySchema) Parse(ctx context.Context, v any) (any, error) {
	if v == nil {
		return nil, requiredIssue()
	}
	src, ok := asAnySlice(v)
	if !ok {
		return nil, invalidType("array")
	}
	res := make([]any, len(src))
	var iss formskema.Issues
	for i := range src {
		ev, err := a.elem.Parse(ctx, src[i])
		if err != nil {
			iss = formskema.AppendIssues(iss, formskema.Rebase("/"+strconv.Itoa(i), formskema.IssuesFromErr("/", err))...)
			continue
		}
		res[i] = ev
	}
	if a.minLen >= 0 && len(src) < a.minLen {
		iss = formskema.AppendIssues(iss, formskema.Issue{Path: "/", Code: formskema.CodeTooShort, Message: a.minMsg, Params: map[string]any{"min": a.minLen, "got": len(src)}})
	}
	if a.maxLen >= 0 && len(src) > a.maxLen {
		iss = formskema.AppendIssues(iss, formskema.Issue{Path: "/", Code: formskema.CodeTooLong, Message: a.maxMsg, Params: map[string]any{"max": a.maxLen, "got": len(src)}})
	}
	if len(iss) > 0 {
		return nil, iss
	}
	for _, r := range a.refines {
		if err := r.fn(ctx, res); err != nil {
			iss = formskema.AppendIssues(iss, refineIssues("/", r.name, err)...)
		}
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return res, nil
}

func (a *ArraySchema) JSONSchema() (*js.Schema, error) {
	es, err := a.elem.JSONSchema()
	if err != nil {
		return nil, err
	}
	s := &js.Schema{Type: "array", Items: es}
	if a.minLen >= 0 {
		s.MinItems = js.IntPtr(a.minLen)
	}
	if a.maxLen >= 0 {
		s.MaxItems = js.IntPtr(a.maxLen)
	}
	return s, nil
}

// asAnySlice accepts []any directly and converts other slice kinds.
func asAnySlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
