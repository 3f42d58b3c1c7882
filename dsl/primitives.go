package dsl

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"unicode/utf8"

	formskema "github.com/reoring/formskema"
	js "github.com/reoring/formskema/jsonschema"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type stringRule struct {
	code    string
	message string
	check   func(string) bool
	params  map[string]any
}

// StringSchema validates string values.
type StringSchema struct {
	minLen  int
	maxLen  int
	format  string
	pattern *regexp.Regexp
	rules   []stringRule
	refines []valueRefine
}

var _ formskema.Schema = (*StringSchema)(nil)

// String returns a string schema without rules.
func String() *StringSchema { return &StringSchema{minLen: -1, maxLen: -1} }

func (s *StringSchema) clone() *StringSchema {
	c := *s
	c.rules = append([]stringRule(nil), s.rules...)
	c.refines = append([]valueRefine(nil), s.refines...)
	return &c
}

// Min requires at least n characters (runes).
func (s *StringSchema) Min(n int, msg ...string) *StringSchema {
	c := s.clone()
	c.minLen = n
	c.rules = append(c.rules, stringRule{
		code:    formskema.CodeTooShort,
		message: messageOr(msg, "string_too_short", map[string]string{"min": strconv.Itoa(n)}),
		check:   func(v string) bool { return utf8.RuneCountInString(v) >= n },
		params:  map[string]any{"min": n},
	})
	return c
}

// Max allows at most n characters (runes).
func (s *StringSchema) Max(n int, msg ...string) *StringSchema {
	c := s.clone()
	c.maxLen = n
	c.rules = append(c.rules, stringRule{
		code:    formskema.CodeTooLong,
		message: messageOr(msg, "string_too_long", map[string]string{"max": strconv.Itoa(n)}),
		check:   func(v string) bool { return utf8.RuneCountInString(v) <= n },
		params:  map[string]any{"max": n},
	})
	return c
}

// NonEmpty is Min(1).
func (s *StringSchema) NonEmpty(msg ...string) *StringSchema { return s.Min(1, msg...) }

// Email requires a plausible e-mail address.
func (s *StringSchema) Email(msg ...string) *StringSchema {
	c := s.clone()
	c.format = "email"
	c.rules = append(c.rules, stringRule{
		code:    formskema.CodeInvalidFormat,
		message: messageOr(msg, formskema.CodeInvalidFormat, map[string]string{"format": "email"}),
		check:   emailPattern.MatchString,
		params:  map[string]any{"format": "email"},
	})
	return c
}

// Pattern requires the value to match re.
func (s *StringSchema) Pattern(re *regexp.Regexp, msg ...string) *StringSchema {
	c := s.clone()
	c.pattern = re
	c.rules = append(c.rules, stringRule{
		code:    formskema.CodePattern,
		message: messageOr(msg, formskema.CodePattern, nil),
		check:   re.MatchString,
		params:  map[string]any{"pattern": re.String()},
	})
	return c
}

// Refine adds a refinement over the string value.
func (s *StringSchema) Refine(name string, fn func(context.Context, string) error) *StringSchema {
	if fn == nil {
		return s
	}
	c := s.clone()
	c.refines = append(c.refines, valueRefine{name: name, fn: func(ctx context.Context, v any) error {
		return fn(ctx, v.(string))
	}})
	return c
}

// HasEffects reports whether refinements are attached.
func (s *StringSchema) HasEffects() bool { return len(s.refines) > 0 }

func (s *StringSchema) Parse(ctx context.Context, v any) (any, error) {
	if v == nil {
		return nil, requiredIssue()
	}
	str, ok := v.(string)
	if !ok {
		return nil, invalidType("string")
	}
	var iss formskema.Issues
	for _, r := range s.rules {
		if !r.check(str) {
			iss = formskema.AppendIssues(iss, formskema.Issue{Path: "/", Code: r.code, Message: r.message, Params: r.params})
		}
	}
	if len(iss) > 0 {
		return nil, iss
	}
	if iss := runValueRefines(ctx, s.refines, str); len(iss) > 0 {
		return nil, iss
	}
	return str, nil
}

func (s *StringSchema) JSONSchema() (*js.Schema, error) {
	out := &js.Schema{Type: "string", Format: s.format}
	if s.minLen >= 0 {
		out.MinLength = js.IntPtr(s.minLen)
	}
	if s.maxLen >= 0 {
		out.MaxLength = js.IntPtr(s.maxLen)
	}
	if s.pattern != nil {
		out.Pattern = s.pattern.String()
	}
	return out, nil
}

// NumberSchema validates numeric values: Go integer and float kinds and
// json.Number. Parse returns the value as float64.
type NumberSchema struct {
	min     *float64
	max     *float64
	minMsg  string
	maxMsg  string
	integer bool
	intMsg  string
	refines []valueRefine
}

var _ formskema.Schema = (*NumberSchema)(nil)

// Number returns a number schema without rules.
func Number() *NumberSchema { return &NumberSchema{} }

func (n *NumberSchema) clone() *NumberSchema {
	c := *n
	c.refines = append([]valueRefine(nil), n.refines...)
	return &c
}

// Min sets an inclusive minimum.
func (n *NumberSchema) Min(v float64, msg ...string) *NumberSchema {
	c := n.clone()
	c.min = &v
	c.minMsg = messageOr(msg, formskema.CodeTooSmall, map[string]string{"min": formatFloat(v)})
	return c
}

// Max sets an inclusive maximum.
func (n *NumberSchema) Max(v float64, msg ...string) *NumberSchema {
	c := n.clone()
	c.max = &v
	c.maxMsg = messageOr(msg, formskema.CodeTooBig, map[string]string{"max": formatFloat(v)})
	return c
}

// Int requires an integral value.
func (n *NumberSchema) Int(msg ...string) *NumberSchema {
	c := n.clone()
	c.integer = true
	c.intMsg = messageOr(msg, formskema.CodeNotInteger, nil)
	return c
}

// Refine adds a refinement over the numeric value.
func (n *NumberSchema) Refine(name string, fn func(context.Context, float64) error) *NumberSchema {
	if fn == nil {
		return n
	}
	c := n.clone()
	c.refines = append(c.refines, valueRefine{name: name, fn: func(ctx context.Context, v any) error {
		return fn(ctx, v.(float64))
	}})
	return c
}

// HasEffects reports whether refinements are attached.
func (n *NumberSchema) HasEffects() bool { return len(n.refines) > 0 }

func (n *NumberSchema) Parse(ctx context.Context, v any) (any, error) {
	if v == nil {
		return nil, requiredIssue()
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		return nil, invalidType("number")
	}
	var iss formskema.Issues
	if n.integer && f != math.Trunc(f) {
		iss = formskema.AppendIssues(iss, formskema.Issue{Path: "/", Code: formskema.CodeNotInteger, Message: n.intMsg})
	}
	if n.min != nil && f < *n.min {
		iss = formskema.AppendIssues(iss, formskema.Issue{Path: "/", Code: formskema.CodeTooSmall, Message: n.minMsg, Params: map[string]any{"min": *n.min, "got": f}})
	}
	if n.max != nil && f > *n.max {
		iss = formskema.AppendIssues(iss, formskema.Issue{Path: "/", Code: formskema.CodeTooBig, Message: n.maxMsg, Params: map[string]any{"max": *n.max, "got": f}})
	}
	if len(iss) > 0 {
		return nil, iss
	}
	if iss := runValueRefines(ctx, n.refines, f); len(iss) > 0 {
		return nil, iss
	}
	return f, nil
}

func (n *NumberSchema) JSONSchema() (*js.Schema, error) {
	out := &js.Schema{Type: "number", Minimum: n.min, Maximum: n.max}
	if n.integer {
		out.Type = "integer"
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// BoolSchema validates booleans.
type BoolSchema struct{}

// Bool returns the bool schema.
func Bool() *BoolSchema { return &BoolSchema{} }

func (*BoolSchema) Parse(_ context.Context, v any) (any, error) {
	if v == nil {
		return nil, requiredIssue()
	}
	b, ok := v.(bool)
	if !ok {
		return nil, invalidType("boolean")
	}
	return b, nil
}

func (*BoolSchema) JSONSchema() (*js.Schema, error) { return &js.Schema{Type: "boolean"}, nil }

// AnySchema accepts every value, including nil.
type AnySchema struct{}

// Any returns a schema that accepts anything.
func Any() *AnySchema { return &AnySchema{} }

func (*AnySchema) Parse(_ context.Context, v any) (any, error) { return v, nil }
func (*AnySchema) JSONSchema() (*js.Schema, error)            { return &js.Schema{}, nil }

// EnumSchema accepts one of a fixed set of strings.
type EnumSchema struct {
	values []string
	msg    string
}

// Enum returns a schema accepting exactly the given values.
func Enum(values ...string) *EnumSchema {
	return &EnumSchema{values: append([]string(nil), values...), msg: messageOr(nil, formskema.CodeInvalidEnum, nil)}
}

func (e *EnumSchema) Parse(_ context.Context, v any) (any, error) {
	if v == nil {
		return nil, requiredIssue()
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalidType("string")
	}
	for _, want := range e.values {
		if s == want {
			return s, nil
		}
	}
	return nil, formskema.Issues{{Path: "/", Code: formskema.CodeInvalidEnum, Message: e.msg, Params: map[string]any{"options": fmt.Sprint(e.values)}}}
}

func (e *EnumSchema) JSONSchema() (*js.Schema, error) {
	vals := make([]any, len(e.values))
	for i, v := range e.values {
		vals[i] = v
	}
	return &js.Schema{Type: "string", Enum: vals}, nil
}
