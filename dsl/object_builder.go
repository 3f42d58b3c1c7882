package dsl

import (
	"context"
	"fmt"
	"sort"

	formskema "github.com/reoring/formskema"
)

// UnknownPolicy controls how keys not declared on an object are handled.
type UnknownPolicy int

const (
	UnknownStrip       UnknownPolicy = iota // Drop unknown keys (default; forms carry UI-only state).
	UnknownStrict                           // Reject unknown keys with an issue.
	UnknownPassthrough                      // Keep unknown keys as-is.
)

// ObjectBuilder declares an object schema.
type ObjectBuilder struct {
	fields        map[string]formskema.Schema
	unknownPolicy UnknownPolicy
	refines       []objRefine
}

// FieldStep configures the field that was just added.
type FieldStep struct {
	b    *ObjectBuilder
	name string
}

// Object creates a new object builder.
func Object() *ObjectBuilder {
	return &ObjectBuilder{fields: map[string]formskema.Schema{}}
}

// Field registers a field schema.
func (b *ObjectBuilder) Field(name string, s formskema.Schema) *FieldStep {
	b.fields[name] = s
	return &FieldStep{b: b, name: name}
}

// Optional wraps the current field so a missing value is accepted.
func (f *FieldStep) Optional() *ObjectBuilder {
	f.b.fields[f.name] = Optional(f.b.fields[f.name])
	return f.b
}

// Default wraps the current field so a missing value is replaced by v.
func (f *FieldStep) Default(v any) *ObjectBuilder {
	f.b.fields[f.name] = Default(f.b.fields[f.name], v)
	return f.b
}

func (f *FieldStep) Field(name string, s formskema.Schema) *FieldStep { return f.b.Field(name, s) }
func (f *FieldStep) UnknownStrict() *ObjectBuilder                    { return f.b.UnknownStrict() }
func (f *FieldStep) UnknownPassthrough() *ObjectBuilder               { return f.b.UnknownPassthrough() }
func (f *FieldStep) Refine(name string, fn func(context.Context, map[string]any) error) *ObjectBuilder {
	return f.b.Refine(name, fn)
}
func (f *FieldStep) SuperRefine(fn SuperRefineFunc) *ObjectBuilder { return f.b.SuperRefine(fn) }
func (f *FieldStep) Build() (*ObjectSchema, error)                 { return f.b.Build() }
func (f *FieldStep) MustBuild() *ObjectSchema                      { return f.b.MustBuild() }

// UnknownStrict rejects undeclared keys.
func (b *ObjectBuilder) UnknownStrict() *ObjectBuilder {
	b.unknownPolicy = UnknownStrict
	return b
}

// UnknownStrip drops undeclared keys.
func (b *ObjectBuilder) UnknownStrip() *ObjectBuilder {
	b.unknownPolicy = UnknownStrip
	return b
}

// UnknownPassthrough keeps undeclared keys in the parsed output.
func (b *ObjectBuilder) UnknownPassthrough() *ObjectBuilder {
	b.unknownPolicy = UnknownPassthrough
	return b
}

// Refine adds an object-level refinement. It runs after all fields parsed
// successfully. Returning Issues targets specific fields; any other error
// becomes a custom issue on the object itself.
func (b *ObjectBuilder) Refine(name string, fn func(context.Context, map[string]any) error) *ObjectBuilder {
	if fn == nil {
		return b
	}
	b.refines = append(b.refines, objRefine{name: name, fn: fn})
	return b
}

// SuperRefineFunc reports any number of issues. root points at the object
// being refined; use root.Field(name) to target a field.
type SuperRefineFunc func(ctx context.Context, v map[string]any, root formskema.PathRef) formskema.Issues

// SuperRefine adds an object-level refinement that reports issues directly.
func (b *ObjectBuilder) SuperRefine(fn SuperRefineFunc) *ObjectBuilder {
	if fn == nil {
		return b
	}
	return b.Refine("superRefine", func(ctx context.Context, v map[string]any) error {
		if iss := fn(ctx, v, formskema.Root()); len(iss) > 0 {
			return iss
		}
		return nil
	})
}

// Build validates the builder and returns the schema.
func (b *ObjectBuilder) Build() (*ObjectSchema, error) {
	kfs := make([]string, 0, len(b.fields))
	for k, s := range b.fields {
		if s == nil {
			return nil, fmt.Errorf("dsl: field %q: %w", k, formskema.ErrNilSchema)
		}
		kfs = append(kfs, k)
	}
	sort.Strings(kfs)
	fields := make(map[string]formskema.Schema, len(b.fields))
	for k, s := range b.fields {
		fields[k] = s
	}
	return &ObjectSchema{
		fields:        fields,
		unknownPolicy: b.unknownPolicy,
		refines:       append([]objRefine(nil), b.refines...),
		sortedKeys:    kfs,
	}, nil
}

// MustBuild is like Build but panics on error.
func (b *ObjectBuilder) MustBuild() *ObjectSchema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
