package rules_test

import (
	"context"
	"io"
	"testing"

	formskema "github.com/reoring/formskema"
	g "github.com/reoring/formskema/dsl"
	"github.com/reoring/formskema/form"
	"github.com/reoring/formskema/rules"
)

func run(r rules.Rule, v map[string]any) formskema.Issues {
	return r(context.Background(), v, formskema.Root())
}

func TestIfThen(t *testing.T) {
	r := rules.If("status", rules.Eq, "rejected").Then(rules.Required("reason"))

	if iss := run(r, map[string]any{"status": "ok"}); len(iss) != 0 {
		t.Fatalf("condition false, got %v", iss)
	}
	iss := run(r, map[string]any{"status": "rejected", "reason": ""})
	if len(iss) != 1 || iss[0].Path != "/reason" || iss[0].Code != formskema.CodeRequired {
		t.Fatalf("unexpected issues: %+v", iss)
	}
}

func TestConditionalComposition(t *testing.T) {
	adult := rules.If("age", rules.Ge, 18)
	member := rules.If("plan", rules.Ne, "free")
	v := map[string]any{"age": 20.0, "plan": "free"}

	if run(adult.And(member).Then(rules.Required("x")), v) != nil {
		t.Fatal("AND must not hold")
	}
	if len(run(adult.Or(member).Then(rules.Required("x")), v)) != 1 {
		t.Fatal("OR must hold")
	}
	if len(run(rules.IfAll(adult, rules.If("missing", rules.Eq, nil)).Then(rules.Required("x")), v)) != 0 {
		t.Fatal("a missing path never satisfies a predicate")
	}
}

func TestMatches(t *testing.T) {
	r := rules.Matches("confirm", "password")
	if iss := run(r, map[string]any{"password": "a", "confirm": "a"}); len(iss) != 0 {
		t.Fatalf("got %v", iss)
	}
	iss := run(r, map[string]any{"password": "a", "confirm": "b"})
	if len(iss) != 1 || iss[0].Code != formskema.CodeMismatch || iss[0].Message != "must match password" {
		t.Fatalf("unexpected issues: %+v", iss)
	}
}

func TestUniqueByAndAtLeastOne(t *testing.T) {
	v := map[string]any{"items": []any{
		map[string]any{"sku": "a"},
		map[string]any{"sku": "b"},
		map[string]any{"sku": "a"},
	}}
	iss := run(rules.UniqueBy("items", "sku"), v)
	if len(iss) != 1 || iss[0].Path != "/items/2/sku" || iss[0].Params["first"] != 0 {
		t.Fatalf("unexpected issues: %+v", iss)
	}
	if iss := run(rules.AtLeastOne("items"), map[string]any{"items": []any{}}); len(iss) != 1 || iss[0].Path != "/items" {
		t.Fatalf("unexpected issues: %+v", iss)
	}
}

func TestOrPicksSmallestFailure(t *testing.T) {
	r := rules.Or(
		rules.And(rules.Required("a"), rules.Required("b")),
		rules.Required("c"),
	)
	iss := run(r, map[string]any{})
	if len(iss) != 1 || iss[0].Path != "/c" {
		t.Fatalf("unexpected issues: %+v", iss)
	}
	if run(r, map[string]any{"c": 1}) != nil {
		t.Fatal("second branch passes")
	}
}

func TestRulesDriveFormErrors(t *testing.T) {
	s := g.Object().
		Field("password", g.String()).
		Field("confirm", g.String()).
		Field("items", g.Array(g.Object().Field("sku", g.String()).MustBuild())).
		SuperRefine(rules.And(
			rules.Matches("confirm", "password"),
			rules.UniqueBy("items", "sku"),
		)).
		MustBuild()
	f, err := form.New(s, form.Options{
		DefaultValues: map[string]any{
			"password": "a",
			"confirm":  "b",
			"items":    []any{map[string]any{"sku": "x"}, map[string]any{"sku": "x"}},
		},
		Logger: form.NewLogger("error", "text", io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}

	if f.Trigger(context.Background(), "confirm") {
		t.Fatal("expected failure")
	}
	errs := f.Errors()
	if errs["confirm"].Type != formskema.CodeMismatch {
		t.Fatalf("confirm: %+v", errs)
	}
	if _, ok := errs["items.1.sku"]; ok {
		t.Fatal("errors outside the triggered path must not change")
	}

	f.Trigger(context.Background())
	if f.Errors()["items.1.sku"].Type != formskema.CodeUniqueness {
		t.Fatalf("items: %+v", f.Errors())
	}
}
