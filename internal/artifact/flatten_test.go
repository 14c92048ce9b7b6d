package artifact

import "testing"

func TestFlatten_NestedObjects(t *testing.T) {
	in := map[string]any{
		"job": map[string]any{
			"title": "Engineer",
			"meta": map[string]any{
				"id": float64(42),
			},
		},
	}
	got := Flatten(in)
	if got["job.title"] != "Engineer" {
		t.Fatalf("job.title = %q", got["job.title"])
	}
	if got["job.meta.id"] != "42" {
		t.Fatalf("job.meta.id = %q", got["job.meta.id"])
	}
}

func TestFlatten_ScalarArrayJoined(t *testing.T) {
	in := map[string]any{
		"skills": []any{"Go", "SQL", "Docker"},
	}
	got := Flatten(in)
	if got["skills"] != "Go; SQL; Docker" {
		t.Fatalf("skills = %q", got["skills"])
	}
}

func TestFlatten_ObjectArrayIndexed(t *testing.T) {
	in := map[string]any{
		"locations": []any{
			map[string]any{"city": "Austin"},
			map[string]any{"city": "Denver"},
		},
	}
	got := Flatten(in)
	if got["locations.0.city"] != "Austin" {
		t.Fatalf("locations.0.city = %q", got["locations.0.city"])
	}
	if got["locations.1.city"] != "Denver" {
		t.Fatalf("locations.1.city = %q", got["locations.1.city"])
	}
}

func TestFlatten_MixedArrayRecursesByIndex(t *testing.T) {
	in := map[string]any{
		"mixed": []any{"plain", map[string]any{"k": "v"}},
	}
	got := Flatten(in)
	if got["mixed.0"] != "plain" {
		t.Fatalf("mixed.0 = %q", got["mixed.0"])
	}
	if got["mixed.1.k"] != "v" {
		t.Fatalf("mixed.1.k = %q", got["mixed.1.k"])
	}
}

func TestFlatten_ScalarFormatting(t *testing.T) {
	in := map[string]any{
		"active": true,
		"score":  1.5,
		"count":  float64(3),
		"gone":   nil,
	}
	got := Flatten(in)
	if got["active"] != "true" {
		t.Fatalf("active = %q", got["active"])
	}
	if got["score"] != "1.5" {
		t.Fatalf("score = %q", got["score"])
	}
	if got["count"] != "3" {
		t.Fatalf("count = %q", got["count"])
	}
	if got["gone"] != "" {
		t.Fatalf("gone = %q", got["gone"])
	}
}
