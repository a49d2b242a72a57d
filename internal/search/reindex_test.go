package search

import (
	"strings"
	"testing"
)

func TestContentForVector(t *testing.T) {
	source := map[string]any{
		"title":              "Q3 report",
		"fiscal_year":        2024,
		"keywords":           []any{"revenue", "growth"},
		"content_for_vector": "stale",
		"ml":                 map[string]any{"tokens": map[string]any{}},
		"notes":              nil,
	}
	got := contentForVector(source)

	if strings.Contains(got, "stale") || strings.Contains(got, "Ml") {
		t.Fatalf("vector fields leaked into content: %q", got)
	}
	for _, want := range []string{"Title: Q3 report", "Fiscal Year: 2024", "Keywords: revenue, growth"} {
		if !strings.Contains(got, want) {
			t.Fatalf("content missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Notes") {
		t.Fatalf("nil field rendered: %q", got)
	}
}
