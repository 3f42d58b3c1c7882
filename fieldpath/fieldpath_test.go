package fieldpath_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/reoring/formskema/fieldpath"
)

func TestGet_NestedMapsAndSequences(t *testing.T) {
	root := map[string]any{
		"user": map[string]any{
			"addresses": []any{
				map[string]any{"city": "Tokyo"},
				map[string]any{"city": "Osaka"},
			},
		},
	}
	if v, ok := fieldpath.Get(root, "user.addresses.1.city"); !ok || v != "Osaka" {
		t.Fatalf("got %v, %v", v, ok)
	}
	for _, p := range []string{"user.missing.x", "user.addresses.9.city", "user.addresses.x", "user.addresses.0.city.deeper", ""} {
		if v, ok := fieldpath.Get(root, p); ok || v != nil {
			t.Fatalf("Get(%q) should miss, got %v", p, v)
		}
	}
}

func TestSet_CreatesIntermediates(t *testing.T) {
	root := map[string]any{}
	if err := fieldpath.Set(root, "a.b.2.c", "x"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := map[string]any{"a": map[string]any{"b": []any{nil, nil, map[string]any{"c": "x"}}}}
	if !reflect.DeepEqual(root, want) {
		t.Fatalf("got %#v", root)
	}
	// extend an existing sequence in place of its parent slot
	if err := fieldpath.Set(root, "a.b.4", 1); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if seq := root["a"].(map[string]any)["b"].([]any); len(seq) != 5 || seq[3] != nil || seq[4] != 1 {
		t.Fatalf("sequence not extended with gaps: %#v", seq)
	}
}

func TestSet_ReplacesScalarIntermediate(t *testing.T) {
	root := map[string]any{"a": "scalar"}
	if err := fieldpath.Set(root, "a.b", 1); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if v, _ := fieldpath.Get(root, "a.b"); v != 1 {
		t.Fatalf("got %v", v)
	}
}

func TestSet_NonIndexOnSequenceFails(t *testing.T) {
	root := map[string]any{"items": []any{1}}
	if err := fieldpath.Set(root, "items.name", 1); !errors.Is(err, fieldpath.ErrNotContainer) {
		t.Fatalf("want ErrNotContainer, got %v", err)
	}
}

func TestSet_IndexErrors(t *testing.T) {
	cases := []struct {
		path string
		want error
	}{
		{"items.-1", fieldpath.ErrNegativeIndex},
		{"items.1048577", fieldpath.ErrIndexTooLarge},
		{"items.99999999999999999999", fieldpath.ErrIndexTooLarge},
	}
	for _, tc := range cases {
		root := map[string]any{"items": []any{"a"}}
		err := fieldpath.Set(root, tc.path, "b")
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.path, tc.want, err)
		}
		if tc.want == fieldpath.ErrIndexTooLarge && errors.Is(err, fieldpath.ErrNegativeIndex) {
			t.Fatalf("%s: large index reported as negative", tc.path)
		}
	}
}

func TestBracketNotationIsRejected(t *testing.T) {
	root := map[string]any{"items": []any{"a"}}
	if err := fieldpath.Validate("items[0]"); !errors.Is(err, fieldpath.ErrBracketNotation) {
		t.Fatalf("want ErrBracketNotation, got %v", err)
	}
	if _, ok := fieldpath.Get(root, "items[0]"); ok {
		t.Fatalf("bracket path must not resolve")
	}
	if err := fieldpath.Set(root, "items[0]", "b"); !errors.Is(err, fieldpath.ErrBracketNotation) {
		t.Fatalf("want ErrBracketNotation, got %v", err)
	}
	if root["items"].([]any)[0] != "a" {
		t.Fatalf("rejected Set must not mutate")
	}
}

func TestUnset_DoesNotCollapseParents(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1}, "list": []any{1, 2, 3}}
	if !fieldpath.Unset(root, "a.b") {
		t.Fatalf("expected removal")
	}
	if m, ok := root["a"].(map[string]any); !ok || len(m) != 0 {
		t.Fatalf("parent should remain as empty map, got %#v", root["a"])
	}
	if !fieldpath.Unset(root, "list.1") {
		t.Fatalf("expected removal")
	}
	if !reflect.DeepEqual(root["list"], []any{1, nil, 3}) {
		t.Fatalf("sequence slot should be nil, got %#v", root["list"])
	}
	if fieldpath.Unset(root, "nope.x") {
		t.Fatalf("missing path should report false")
	}
}

func TestRoundTrip(t *testing.T) {
	paths := []string{"a", "a.b", "a.0", "x.1.y.2", "deep.er.than.you.0.think"}
	values := []any{"s", 1, 2.5, true, nil, map[string]any{"k": "v"}, []any{1}}
	for _, p := range paths {
		for _, v := range values {
			root := map[string]any{}
			if err := fieldpath.Set(root, p, v); err != nil {
				t.Fatalf("Set(%q): %v", p, err)
			}
			got, ok := fieldpath.Get(root, p)
			if !ok || !reflect.DeepEqual(got, v) {
				t.Fatalf("round trip %q: got %#v want %#v", p, got, v)
			}
		}
	}
}

func TestPointerConversion(t *testing.T) {
	if got := fieldpath.FromPointer("/items/0/name"); got != "items.0.name" {
		t.Fatalf("got %q", got)
	}
	if got := fieldpath.FromPointer("/"); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := fieldpath.ToPointer("a.b~c"); got != "/a/b~0c" {
		t.Fatalf("got %q", got)
	}
	if !fieldpath.Within("items.0.name", "items") || fieldpath.Within("itemsX", "items") {
		t.Fatalf("Within mismatch")
	}
	if fieldpath.Parent("a.b.c") != "a.b" || fieldpath.Parent("a") != "" {
		t.Fatalf("Parent mismatch")
	}
}
