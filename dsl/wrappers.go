package dsl

import (
	"context"

	formskema "github.com/reoring/formskema"
	js "github.com/reoring/formskema/jsonschema"
)

// OptionalSchema accepts nil (a missing value) in addition to the inner schema.
type OptionalSchema struct{ inner formskema.Schema }

// NullableSchema accepts nil in addition to the inner schema. It differs from
// OptionalSchema only in its JSON Schema projection (null is a valid value).
type NullableSchema struct{ inner formskema.Schema }

// DefaultSchema substitutes a default for nil before parsing.
type DefaultSchema struct {
	inner formskema.Schema
	value any
}

var (
	_ formskema.Wrapper = (*OptionalSchema)(nil)
	_ formskema.Wrapper = (*NullableSchema)(nil)
	_ formskema.Wrapper = (*DefaultSchema)(nil)
)

// Optional wraps s so that nil is accepted.
func Optional(s formskema.Schema) *OptionalSchema { return &OptionalSchema{inner: s} }

// Nullable wraps s so that nil is accepted.
func Nullable(s formskema.Schema) *NullableSchema { return &NullableSchema{inner: s} }

// Default wraps s so that nil is replaced by v.
func Default(s formskema.Schema, v any) *DefaultSchema { return &DefaultSchema{inner: s, value: v} }

func (o *OptionalSchema) Unwrap() formskema.Schema { return o.inner }
func (n *NullableSchema) Unwrap() formskema.Schema { return n.inner }
func (d *DefaultSchema) Unwrap() formskema.Schema  { return d.inner }

func (o *OptionalSchema) Parse(ctx context.Context, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return o.inner.Parse(ctx, v)
}

func (n *NullableSchema) Parse(ctx context.Context, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return n.inner.Parse(ctx, v)
}

func (d *DefaultSchema) Parse(ctx context.Context, v any) (any, error) {
	if v == nil {
		v = d.value
	}
	return d.inner.Parse(ctx, v)
}

func (o *OptionalSchema) JSONSchema() (*js.Schema, error) { return o.inner.JSONSchema() }

func (n *NullableSchema) JSONSchema() (*js.Schema, error) {
	s, err := n.inner.JSONSchema()
	if err != nil {
		return nil, err
	}
	return &js.Schema{AnyOf: []*js.Schema{s, {Type: "null"}}}, nil
}

func (d *DefaultSchema) JSONSchema() (*js.Schema, error) {
	s, err := d.inner.JSONSchema()
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = &js.Schema{}
	}
	cp := *s
	cp.Default = d.value
	return &cp, nil
}
