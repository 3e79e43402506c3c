package qdrant

import (
	"encoding/json"
	"testing"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func TestTranslateBareEquality(t *testing.T) {
	out, err := translateFilterMap(map[string]any{"category": "billing"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	got := mustJSON(t, out.asMap())
	want := `{"must":[{"key":"category","match":{"value":"billing"}}]}`
	if got != want {
		t.Fatalf("want=%s got=%s", want, got)
	}
}

func TestTranslateInOperator(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"intent": map[string]any{"$in": []string{"refund", "cancel"}},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	got := mustJSON(t, out.asMap())
	want := `{"must":[{"key":"intent","match":{"any":["refund","cancel"]}}]}`
	if got != want {
		t.Fatalf("want=%s got=%s", want, got)
	}
}

func TestTranslateRangeOperators(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"timestamp": map[string]any{"$gte": int64(100), "$lt": int64(200)},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	got := mustJSON(t, out.asMap())
	want := `{"must":[{"key":"timestamp","range":{"gte":100,"lt":200}}]}`
	if got != want {
		t.Fatalf("want=%s got=%s", want, got)
	}
}

func TestTranslateOrCombinator(t *testing.T) {
	out, err := translateFilterMap(map[string]any{
		"$or": []any{
			map[string]any{"category": "billing"},
			map[string]any{"category": "account"},
		},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	m := out.asMap()
	should, ok := m["should"].([]any)
	if !ok || len(should) != 2 {
		t.Fatalf("should: got=%v", m["should"])
	}
}

func TestTranslateRejectsUnknownOperator(t *testing.T) {
	_, err := translateFilterMap(map[string]any{
		"category": map[string]any{"$regex": ".*"},
	})
	if err == nil {
		t.Fatalf("want error for unknown operator")
	}
}
