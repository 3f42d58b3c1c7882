package formskema

import (
	"context"
	"errors"
	"fmt"

	js "github.com/reoring/formskema/jsonschema"
)

// Schema is the validation capability the form core depends on. Parse
// validates an untyped value (primitives, map[string]any, []any) and returns
// the normalized value. Validation failures are reported as Issues; any
// other error means the schema itself misbehaved.
type Schema interface {
	Parse(ctx context.Context, v any) (any, error)
	// JSONSchema projects the schema into a JSON Schema representation.
	JSONSchema() (*js.Schema, error)
}

// ObjectShape is implemented by object schemas so analyzers can descend
// into their fields.
type ObjectShape interface {
	Schema
	Shape() map[string]Schema
}

// ElementSchema is implemented by array schemas.
type ElementSchema interface {
	Schema
	Element() Schema
}

// Wrapper is implemented by optional/nullable/default wrappers. Unwrap
// returns the wrapped schema.
type Wrapper interface {
	Schema
	Unwrap() Schema
}

// Effectful is implemented by schemas that can carry refinements. A
// refinement on an object or array may read any value below it, so a field
// under such a node cannot be validated on its own.
type Effectful interface {
	HasEffects() bool
}

// ErrNilSchema is returned by helpers that require a schema.
var ErrNilSchema = errors.New("formskema: schema is nil")

// HasEffects reports whether s carries refinements at its own level.
func HasEffects(s Schema) bool {
	if e, ok := s.(Effectful); ok {
		return e.HasEffects()
	}
	return false
}

// Unwrap strips optional/nullable/default wrappers. It stops after maxDepth
// hops and reports false when the chain does not terminate.
func Unwrap(s Schema) (Schema, bool) {
	const maxDepth = 32
	for i := 0; i < maxDepth; i++ {
		w, ok := s.(Wrapper)
		if !ok {
			return s, s != nil
		}
		s = w.Unwrap()
		if s == nil {
			return nil, false
		}
	}
	return nil, false
}

// SafeParse parses v, returning (nil, false) on any error.
func SafeParse(ctx context.Context, s Schema, v any) (any, bool) {
	out, err := s.Parse(ctx, v)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Is reports whether v conforms to s.
func Is(ctx context.Context, s Schema, v any) bool {
	_, ok := SafeParse(ctx, s, v)
	return ok
}

// ParseSafely runs s.Parse and converts a panic inside the schema or one of
// its refinements into an error. Validation failures are returned as Issues
// and unexpected failures as plain errors, so callers can tell the two apart
// with AsIssues.
func ParseSafely(ctx context.Context, s Schema, v any) (out any, err error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("formskema: schema panicked: %v", r)
		}
	}()
	return s.Parse(ctx, v)
}
