package dsl_test

import (
	"context"
	"errors"
	"testing"

	gojson "github.com/goccy/go-json"
	formskema "github.com/reoring/formskema"
	g "github.com/reoring/formskema/dsl"
)

func TestObjectBuilder_Refine_PasswordConfirm(t *testing.T) {
	ctx := context.Background()

	s, err := g.Object().
		Field("email", g.String()).
		Field("password", g.String()).
		Field("confirm", g.String()).
		Refine("password==confirm", func(ctx context.Context, v map[string]any) error {
			if v["password"] != v["confirm"] {
				return formskema.Issues{{Path: "/confirm", Code: "custom", Message: "password mismatch"}}
			}
			return nil
		}).
		Build()
	if err != nil {
		t.Fatalf("unexpected build err: %v", err)
	}
	if !s.HasEffects() {
		t.Fatalf("refined object must report effects")
	}

	// ng: mismatch
	_, err = s.Parse(ctx, map[string]any{"email": "a@b", "password": "x", "confirm": "y"})
	if got := codes(t, err); len(got) != 1 || got[0] != "/confirm custom" {
		t.Fatalf("expected refine custom error at /confirm, got %v", got)
	}

	// ok: match
	if _, err := s.Parse(ctx, map[string]any{"email": "a@b", "password": "x", "confirm": "x"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestObjectBuilder_SuperRefine_UsesPathRef(t *testing.T) {
	ctx := context.Background()
	s := g.Object().
		Field("start", g.Number()).
		Field("end", g.Number()).
		SuperRefine(func(_ context.Context, v map[string]any, root formskema.PathRef) formskema.Issues {
			if v["end"].(float64) < v["start"].(float64) {
				return formskema.Issues{root.Field("end").Issue(formskema.CodeCustom, "end before start", "start", v["start"])}
			}
			return nil
		}).
		MustBuild()

	_, err := s.Parse(ctx, map[string]any{"start": 5, "end": 1})
	iss, _ := formskema.AsIssues(err)
	if len(iss) != 1 || iss[0].Path != "/end" || iss[0].Params["start"] != 5.0 {
		t.Fatalf("unexpected issues: %+v", iss)
	}
}

func TestObjectBuilder_Refine_PlainErrorBecomesCustomAtObject(t *testing.T) {
	ctx := context.Background()
	s := g.Object().
		Field("a", g.String()).
		Refine("always", func(context.Context, map[string]any) error { return errors.New("nope") }).
		MustBuild()
	got := codes(t, mustErr(s.Parse(ctx, map[string]any{"a": "x"})))
	if len(got) != 1 || got[0] != "/ custom" {
		t.Fatalf("unexpected issues: %v", got)
	}
}

func TestObjectBuilder_RefineSkippedWhenFieldsFail(t *testing.T) {
	ctx := context.Background()
	called := false
	s := g.Object().
		Field("a", g.String().Min(3)).
		Refine("r", func(context.Context, map[string]any) error { called = true; return nil }).
		MustBuild()
	_, _ = s.Parse(ctx, map[string]any{"a": "x"})
	if called {
		t.Fatalf("refine must not run when a field failed")
	}
}

func TestFieldRefine_IsScopedToValue(t *testing.T) {
	ctx := context.Background()
	s := g.String().Refine("no-admin", func(_ context.Context, v string) error {
		if v == "admin" {
			return errors.New("reserved name")
		}
		return nil
	})
	if !s.HasEffects() {
		t.Fatalf("refined string must report effects")
	}
	iss, _ := formskema.AsIssues(mustErr(s.Parse(ctx, "admin")))
	if len(iss) != 1 || iss[0].Message != "reserved name" || iss[0].Rule != "no-admin" {
		t.Fatalf("unexpected issues: %+v", iss)
	}
}

func TestJSONSchema_Export(t *testing.T) {
	s := g.Object().
		Field("email", g.String().Email()).
		Field("age", g.Number().Min(0).Int()).Optional().
		Field("role", g.Enum("admin", "user")).Default("user").
		Field("tags", g.Array(g.String()).Max(3)).
		UnknownStrict().
		MustBuild()
	sch, err := s.JSONSchema()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, err := gojson.Marshal(sch)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"object","properties":{"age":{"type":"integer","minimum":0},"email":{"type":"string","format":"email"},"role":{"type":"string","default":"user","enum":["admin","user"]},"tags":{"type":"array","items":{"type":"string"},"maxItems":3}},"required":["email","tags"],"additionalProperties":false}`
	if string(b) != want {
		t.Fatalf("json schema mismatch\n got: %s\nwant: %s", b, want)
	}
}
