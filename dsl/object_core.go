package dsl

import (
	"context"
	"sort"

	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/i18n"
	js "github.com/reoring/formskema/jsonschema"
)

// ObjectSchema validates map[string]any values field by field.
type ObjectSchema struct {
	fields        map[string]formskema.Schema
	unknownPolicy UnknownPolicy
	refines       []objRefine
	sortedKeys    []string
}

type objRefine struct {
	name string
	fn   func(context.Context, map[string]any) error
}

var (
	_ formskema.ObjectShape = (*ObjectSchema)(nil)
	_ formskema.Effectful   = (*ObjectSchema)(nil)
)

// Shape returns the declared fields. The map must not be modified.
func (o *ObjectSchema) Shape() map[string]formskema.Schema { return o.fields }

// Keys returns the declared field names in ascending order.
func (o *ObjectSchema) Keys() []string { return append([]string(nil), o.sortedKeys...) }

// HasEffects reports whether object-level refinements are attached.
func (o *ObjectSchema) HasEffects() bool { return len(o.refines) > 0 }

func (o *ObjectSchema) Parse(ctx context.Context, v any) (any, error) {
	if v == nil {
		return nil, requiredIssue()
	}
	src, ok := v.(map[string]any)
	if !ok {
		return nil, invalidType("object")
	}
	out := make(map[string]any, len(src))
	var iss formskema.Issues
	// known fields in key-sorted order for deterministic issue order
	for _, k := range o.sortedKeys {
		parsed, err := o.fields[k].Parse(ctx, src[k])
		if err != nil {
			iss = formskema.AppendIssues(iss, formskema.Rebase("/"+escapeKey(k), formskema.IssuesFromErr("/", err))...)
			continue
		}
		if _, present := src[k]; present || parsed != nil {
			out[k] = parsed
		}
	}
	iss = append(iss, o.collectUnknown(src, out)...)
	if len(iss) > 0 {
		return nil, iss
	}
	if err := o.refine(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// collectUnknown processes unknown keys according to unknownPolicy.
func (o *ObjectSchema) collectUnknown(src, out map[string]any) formskema.Issues {
	if o.unknownPolicy == UnknownStrip {
		return nil
	}
	uks := make([]string, 0)
	for k := range src {
		if _, known := o.fields[k]; !known {
			uks = append(uks, k)
		}
	}
	sort.Strings(uks)
	var iss formskema.Issues
	for _, k := range uks {
		switch o.unknownPolicy {
		case UnknownStrict:
			iss = formskema.AppendIssues(iss, formskema.Issue{Path: "/" + escapeKey(k), Code: formskema.CodeUnknownKey, Message: i18n.T(formskema.CodeUnknownKey, nil)})
		case UnknownPassthrough:
			out[k] = src[k]
		}
	}
	return iss
}

func (o *ObjectSchema) refine(ctx context.Context, v map[string]any) error {
	var iss formskema.Issues
	for _, r := range o.refines {
		if err := r.fn(ctx, v); err != nil {
			iss = formskema.AppendIssues(iss, refineIssues("/", r.name, err)...)
		}
	}
	if len(iss) > 0 {
		return iss
	}
	return nil
}

func (o *ObjectSchema) JSONSchema() (*js.Schema, error) {
	props := make(map[string]*js.Schema, len(o.fields))
	var req []string
	for _, k := range o.sortedKeys {
		s := o.fields[k]
		ps, err := s.JSONSchema()
		if err != nil {
			return nil, err
		}
		props[k] = ps
		if _, optional := s.(*OptionalSchema); optional {
			continue
		}
		if _, hasDefault := s.(*DefaultSchema); hasDefault {
			continue
		}
		req = append(req, k)
	}
	var additional any
	switch o.unknownPolicy {
	case UnknownStrict:
		additional = false
	default:
		additional = true
	}
	return &js.Schema{Type: "object", Properties: props, Required: req, AdditionalProperties: additional}, nil
}

// escape '~' -> '~0', '/' -> '~1' per RFC6901
func escapeKey(k string) string {
	for i := 0; i < len(k); i++ {
		if k[i] == '~' || k[i] == '/' {
			return formskema.Root().Field(k).Pointer()[1:]
		}
	}
	return k
}
