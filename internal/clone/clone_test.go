package clone

import (
	"reflect"
	"testing"
)

func TestValue_BreaksAliasing(t *testing.T) {
	src := map[string]any{
		"user":  map[string]any{"name": "a"},
		"items": []any{map[string]any{"n": 1}, "x"},
	}
	cp := Map(src)
	if !reflect.DeepEqual(cp, src) {
		t.Fatalf("copy differs: %#v", cp)
	}
	cp["user"].(map[string]any)["name"] = "b"
	cp["items"].([]any)[1] = "y"
	if src["user"].(map[string]any)["name"] != "a" || src["items"].([]any)[1] != "x" {
		t.Fatalf("mutating the copy leaked into the source: %#v", src)
	}
}

func TestValue_CyclesTerminate(t *testing.T) {
	src := map[string]any{"name": "root"}
	src["self"] = src
	list := []any{nil}
	list[0] = list
	src["list"] = list

	cp := Map(src)
	self, ok := cp["self"].(map[string]any)
	if !ok {
		t.Fatalf("self missing: %#v", cp["self"])
	}
	if reflect.ValueOf(self).Pointer() != reflect.ValueOf(cp).Pointer() {
		t.Fatalf("cycle should point at the copied root")
	}
	if reflect.ValueOf(self).Pointer() == reflect.ValueOf(src).Pointer() {
		t.Fatalf("cycle must not point back into the source")
	}
}

func TestMap_Nil(t *testing.T) {
	if m := Map(nil); m == nil || len(m) != 0 {
		t.Fatalf("want empty map, got %#v", m)
	}
}
