package dsl_test

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	formskema "github.com/reoring/formskema"
	g "github.com/reoring/formskema/dsl"
)

func codes(t *testing.T, err error) []string {
	t.Helper()
	iss, ok := formskema.AsIssues(err)
	if !ok {
		t.Fatalf("expected Issues, got %T: %v", err, err)
	}
	out := make([]string, len(iss))
	for i, it := range iss {
		out[i] = it.Path + " " + it.Code
	}
	return out
}

// TestZodBasics_Primitives covers string, bool, and number parsing.
func TestZodBasics_Primitives(t *testing.T) {
	ctx := context.Background()

	if v, err := g.String().Parse(ctx, "hello"); err != nil || v != "hello" {
		t.Fatalf("string parse ok expected, got v=%v err=%v", v, err)
	}
	if _, err := g.String().Parse(ctx, 1); err == nil {
		t.Fatalf("expected invalid_type for non-string")
	}
	if v, err := g.Bool().Parse(ctx, true); err != nil || v != true {
		t.Fatalf("bool parse ok expected, got v=%v err=%v", v, err)
	}
	if _, err := g.Bool().Parse(ctx, "nope"); err == nil {
		t.Fatalf("expected invalid_type for non-bool")
	}
	for _, in := range []any{1, int64(2), 1.5, float32(2), json.Number("3.25"), uint8(4)} {
		if _, err := g.Number().Parse(ctx, in); err != nil {
			t.Fatalf("number parse of %T expected ok, err=%v", in, err)
		}
	}
	if _, err := g.Number().Parse(ctx, "1.0"); err == nil {
		t.Fatalf("expected invalid_type for string input to number")
	}
}

func TestZodBasics_NilIsRequiredUnlessWrapped(t *testing.T) {
	ctx := context.Background()
	_, err := g.String().Parse(ctx, nil)
	if got := codes(t, err); len(got) != 1 || got[0] != "/ required" {
		t.Fatalf("want required, got %v", got)
	}
	if v, err := g.Optional(g.String()).Parse(ctx, nil); err != nil || v != nil {
		t.Fatalf("optional nil should pass, v=%v err=%v", v, err)
	}
	if v, err := g.Nullable(g.Number()).Parse(ctx, nil); err != nil || v != nil {
		t.Fatalf("nullable nil should pass, v=%v err=%v", v, err)
	}
	if v, err := g.Default(g.String(), "x").Parse(ctx, nil); err != nil || v != "x" {
		t.Fatalf("default should apply, v=%v err=%v", v, err)
	}
}

func TestZodBasics_StringRules(t *testing.T) {
	ctx := context.Background()
	s := g.String().Min(2).Max(4).Email()

	_, err := s.Parse(ctx, "a")
	got := codes(t, err)
	if len(got) != 2 || got[0] != "/ too_short" || got[1] != "/ invalid_format" {
		t.Fatalf("unexpected issues: %v", got)
	}
	if _, err := g.String().Email().Parse(ctx, "a@b.co"); err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
	if _, err := g.String().Pattern(regexp.MustCompile(`^\d+$`)).Parse(ctx, "12a"); err == nil {
		t.Fatalf("pattern should reject")
	}
	_, err = g.String().Min(3, "too short!").Parse(ctx, "ab")
	iss, _ := formskema.AsIssues(err)
	if iss[0].Message != "too short!" {
		t.Fatalf("custom message not used: %q", iss[0].Message)
	}
}

func TestZodBasics_ChainingDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	base := g.String()
	_ = base.Min(5)
	if _, err := base.Parse(ctx, "ab"); err != nil {
		t.Fatalf("base schema was mutated by chaining: %v", err)
	}
}

func TestZodBasics_NumberRules(t *testing.T) {
	ctx := context.Background()
	n := g.Number().Min(1).Max(10).Int()
	if _, err := n.Parse(ctx, 5); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := codes(t, mustErr(n.Parse(ctx, 11.5)))
	if len(got) != 2 || got[0] != "/ not_integer" || got[1] != "/ too_big" {
		t.Fatalf("unexpected issues: %v", got)
	}
}

func TestZodBasics_Enum(t *testing.T) {
	ctx := context.Background()
	e := g.Enum("a", "b")
	if _, err := e.Parse(ctx, "b"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := codes(t, mustErr(e.Parse(ctx, "c"))); got[0] != "/ invalid_enum" {
		t.Fatalf("unexpected issues: %v", got)
	}
}

func TestZodBasics_ObjectNestedPaths(t *testing.T) {
	ctx := context.Background()
	addr := g.Object().Field("city", g.String().Min(1)).MustBuild()
	user := g.Object().
		Field("name", g.String()).
		Field("nickname", g.String()).Optional().
		Field("addresses", g.Array(addr)).
		MustBuild()

	_, err := user.Parse(ctx, map[string]any{
		"addresses": []any{map[string]any{"city": "Tokyo"}, map[string]any{"city": ""}},
	})
	got := codes(t, err)
	if len(got) != 2 || got[0] != "/addresses/1/city too_short" || got[1] != "/name required" {
		t.Fatalf("unexpected issues: %v", got)
	}
}

func TestZodBasics_ObjectUnknownPolicies(t *testing.T) {
	ctx := context.Background()
	in := map[string]any{"a": "x", "extra": 1}

	v, err := g.Object().Field("a", g.String()).MustBuild().Parse(ctx, in)
	if err != nil {
		t.Fatalf("strip should accept: %v", err)
	}
	if _, ok := v.(map[string]any)["extra"]; ok {
		t.Fatalf("strip should drop unknown keys")
	}
	if _, err := g.Object().Field("a", g.String()).UnknownStrict().MustBuild().Parse(ctx, in); err == nil {
		t.Fatalf("strict should reject unknown keys")
	}
	v, _ = g.Object().Field("a", g.String()).UnknownPassthrough().MustBuild().Parse(ctx, in)
	if v.(map[string]any)["extra"] != 1 {
		t.Fatalf("passthrough should keep unknown keys")
	}
}

func TestZodBasics_ArrayLength(t *testing.T) {
	ctx := context.Background()
	tags := g.Array(g.String()).Min(1).Max(2)
	if v, err := tags.Parse(ctx, []any{"dev"}); err != nil || len(v.([]any)) != 1 {
		t.Fatalf("array parse expected ok, v=%v err=%v", v, err)
	}
	if _, err := tags.Parse(ctx, []any{}); err == nil {
		t.Fatalf("expected too_short error for empty array")
	}
	if _, err := tags.Parse(ctx, []string{"a", "b", "c"}); err == nil {
		t.Fatalf("expected too_long error for typed slice")
	}
}

func mustErr(_ any, err error) error { return err }
