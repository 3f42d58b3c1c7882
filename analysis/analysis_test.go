package analysis_test

import (
	"context"
	"reflect"
	"testing"

	formskema "github.com/reoring/formskema"
	"github.com/reoring/formskema/analysis"
	g "github.com/reoring/formskema/dsl"
	js "github.com/reoring/formskema/jsonschema"
)

func userSchema() *g.ObjectSchema {
	address := g.Object().
		Field("city", g.String().Min(1)).
		Field("zip", g.String()).Optional().
		MustBuild()
	return g.Object().
		Field("name", g.String().Min(2)).
		Field("nick", g.Optional(g.String().Refine("no-admin", func(context.Context, string) error { return nil }))).
		Field("address", g.Nullable(address)).
		Field("tags", g.Array(g.String())).
		MustBuild()
}

func TestAnalyze_PartialPaths(t *testing.T) {
	s := userSchema()
	a := analysis.New()
	for _, p := range []string{"name", "nick", "address.city", "tags.3"} {
		r := a.AnalyzeSchemaPath(s, p)
		if !r.CanPartialValidate || r.Reason != analysis.ReasonNone {
			t.Errorf("%s: want partial, got %+v", p, r)
		}
	}
}

func TestAnalyze_InvalidPaths(t *testing.T) {
	s := userSchema()
	a := analysis.New()
	r := a.AnalyzeSchemaPath(s, "nmae")
	if r.CanPartialValidate || r.Reason != analysis.ReasonInvalidPath {
		t.Fatalf("want invalid-path, got %+v", r)
	}
	if want := []string{"address", "name", "nick", "tags"}; !reflect.DeepEqual(r.AvailableFields, want) {
		t.Fatalf("available fields: got %v want %v", r.AvailableFields, want)
	}
	for _, p := range []string{"", "tags.x", "name.first", "items[0]", "address..city"} {
		if r := a.AnalyzeSchemaPath(s, p); r.Reason != analysis.ReasonInvalidPath {
			t.Errorf("%q: want invalid-path, got %+v", p, r)
		}
	}
	if _, ok := a.ExtractSubSchema(s, "nmae"); ok {
		t.Fatalf("extraction of an unknown path must fail")
	}
}

func TestAnalyze_AncestorEffects(t *testing.T) {
	pw := g.Object().
		Field("password", g.String()).
		Field("confirm", g.String()).
		Refine("match", func(context.Context, map[string]any) error { return nil }).
		MustBuild()
	s := g.Object().
		Field("credentials", pw).
		Field("list", g.Array(g.String()).Refine("unique", func(context.Context, []any) error { return nil })).
		Field("title", g.String()).
		MustBuild()

	a := analysis.New()
	for _, p := range []string{"credentials.confirm", "list.0"} {
		if r := a.AnalyzeSchemaPath(s, p); r.CanPartialValidate || r.Reason != analysis.ReasonHasEffects {
			t.Errorf("%s: want has-effects, got %+v", p, r)
		}
	}
	// the refined node itself only reads its own value
	if r := a.AnalyzeSchemaPath(s, "credentials"); !r.CanPartialValidate {
		t.Fatalf("credentials: want partial, got %+v", r)
	}
	sub, ok := a.ExtractSubSchema(s, "credentials")
	if !ok || !sub.HasEffects {
		t.Fatalf("credentials sub-schema should report its own effects: %+v", sub)
	}
	if a.HasRootEffects(s) {
		t.Fatalf("root carries no refinement")
	}
}

func TestHasRootEffects(t *testing.T) {
	s := g.Object().
		Field("a", g.String()).
		SuperRefine(func(context.Context, map[string]any, formskema.PathRef) formskema.Issues { return nil }).
		MustBuild()
	if !analysis.HasRootEffects(s) {
		t.Fatalf("refined root must report effects")
	}
	if !analysis.HasRootEffects(g.Optional(s)) {
		t.Fatalf("effects must be seen through wrappers")
	}
	if r := analysis.AnalyzeSchemaPath(s, "a"); r.Reason != analysis.ReasonHasEffects {
		t.Fatalf("child of refined root: got %+v", r)
	}
	if analysis.HasRootEffects(nil) {
		t.Fatalf("nil schema has no effects")
	}
}

func TestExtractSubSchema_UnwrapsAndValidates(t *testing.T) {
	ctx := context.Background()
	s := userSchema()
	sub, ok := analysis.ExtractSubSchema(s, "address.city")
	if !ok {
		t.Fatalf("extract failed")
	}
	if _, err := sub.Schema.Parse(ctx, ""); err == nil {
		t.Fatalf("empty city should fail min(1)")
	}
	if _, err := sub.Schema.Parse(ctx, "Tokyo"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	tag, ok := analysis.ExtractSubSchema(s, "tags.0")
	if !ok {
		t.Fatalf("element extract failed")
	}
	if _, err := tag.Schema.Parse(ctx, 1); err == nil {
		t.Fatalf("number is not a string")
	}
}

func TestAnalyzer_CachesByIdentity(t *testing.T) {
	a := analysis.New()
	s1 := userSchema()
	s2 := userSchema()
	a.AnalyzeSchemaPath(s1, "name")
	a.AnalyzeSchemaPath(s1, "name")
	a.ExtractSubSchema(s1, "name")
	if a.Len() != 1 {
		t.Fatalf("want 1 cached entry, got %d", a.Len())
	}
	a.AnalyzeSchemaPath(s2, "name")
	if a.Len() != 2 {
		t.Fatalf("distinct schema values must not share entries, got %d", a.Len())
	}
	first, _ := a.ExtractSubSchema(s1, "name")
	again, _ := a.ExtractSubSchema(s1, "name")
	if first != again {
		t.Fatalf("cached extraction should return the same sub-schema")
	}
}

type funcSchema struct {
	fn func(any) error
}

func (f funcSchema) Parse(_ context.Context, v any) (any, error) { return v, f.fn(v) }
func (funcSchema) JSONSchema() (*js.Schema, error)               { return &js.Schema{}, nil }

func TestAnalyzer_NonComparableSchemaIsNotCached(t *testing.T) {
	a := analysis.New()
	var s formskema.Schema = funcSchema{fn: func(any) error { return nil }}
	r := a.AnalyzeSchemaPath(s, "x")
	if r.Reason != analysis.ReasonInvalidPath {
		t.Fatalf("leaf schema has no children: %+v", r)
	}
	if a.Len() != 0 {
		t.Fatalf("non-comparable schema must be analyzed uncached")
	}
}
