package jsonpath

import (
	"reflect"
	"testing"
)

func TestCompileRejectsMissingDollar(t *testing.T) {
	if _, err := Compile("foo.bar"); err == nil {
		t.Error("expected error for path without leading '$'")
	}
}

func TestQueryIdentity(t *testing.T) {
	p := MustCompile("$")
	doc := map[string]any{"foo": 1.0}
	got := p.Query(doc)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if !reflect.DeepEqual(got[0], doc) {
		t.Errorf("expected identity match, got %v", got[0])
	}
}

func TestQueryField(t *testing.T) {
	p := MustCompile("$.foo.bar")
	doc := map[string]any{"foo": map[string]any{"bar": "baz"}}
	got := p.Query(doc)
	if len(got) != 1 || got[0] != "baz" {
		t.Fatalf("expected [baz], got %v", got)
	}
}

func TestQueryMissingField(t *testing.T) {
	p := MustCompile("$.missing")
	got := p.Query(map[string]any{"foo": 1.0})
	if len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestQueryIndex(t *testing.T) {
	p := MustCompile("$.items[1]")
	doc := map[string]any{"items": []any{"a", "b", "c"}}
	got := p.Query(doc)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected [b], got %v", got)
	}
}

func TestQueryWildcardArray(t *testing.T) {
	p := MustCompile("$.items[*]")
	doc := map[string]any{"items": []any{"a", "b", "c"}}
	got := p.Query(doc)
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
}

func TestQueryWildcardObject(t *testing.T) {
	p := MustCompile("$.obj.*")
	doc := map[string]any{"obj": map[string]any{"a": 1.0, "b": 2.0}}
	got := p.Query(doc)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestQueryBracketField(t *testing.T) {
	p := MustCompile(`$["foo"]["bar"]`)
	doc := map[string]any{"foo": map[string]any{"bar": "baz"}}
	got := p.Query(doc)
	if len(got) != 1 || got[0] != "baz" {
		t.Fatalf("expected [baz], got %v", got)
	}
}

func TestStringRoundtrip(t *testing.T) {
	p := MustCompile("$.a.b")
	if p.String() != "$.a.b" {
		t.Errorf("expected $.a.b, got %s", p.String())
	}
}
