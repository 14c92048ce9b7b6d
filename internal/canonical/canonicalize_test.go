package canonical

import (
	"strings"
	"testing"
	"time"
)

var testAnchor = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

func TestCanonicalize_NumericSalaryWins(t *testing.T) {
	raw := Raw{
		PositionTitle: "Engineer",
		DetailURL:     "https://example.com/job/1",
		SalaryRaw:     "$1/hr",
		SalaryMin:     f64(90000),
		SalaryMax:     f64(120000),
	}
	rec := Canonicalize("Acme", raw, testAnchor)
	if *rec.SalaryMin != 90000 || *rec.SalaryMax != 120000 {
		t.Fatalf("numeric bounds overridden: %v %v", *rec.SalaryMin, *rec.SalaryMax)
	}
}

func TestCanonicalize_SalaryTextFillsGap(t *testing.T) {
	raw := Raw{
		PositionTitle: "Engineer",
		DetailURL:     "https://example.com/job/1",
		SalaryRaw:     "$50/hr - $60/hr",
	}
	rec := Canonicalize("Acme", raw, testAnchor)
	if rec.SalaryMin == nil || *rec.SalaryMin != 50*2080 {
		t.Fatalf("salary min = %v", rec.SalaryMin)
	}
	if rec.SalaryMax == nil || *rec.SalaryMax != 60*2080 {
		t.Fatalf("salary max = %v", rec.SalaryMax)
	}
}

func TestCanonicalize_LocationMergeNeverOverrides(t *testing.T) {
	raw := Raw{
		PositionTitle: "Engineer",
		DetailURL:     "https://example.com/job/1",
		RawLocation:   "Denver, CO, USA",
		City:          "Boulder",
	}
	rec := Canonicalize("Acme", raw, testAnchor)
	if rec.City != "Boulder" {
		t.Fatalf("explicit city overridden: %q", rec.City)
	}
	if rec.State != "CO" {
		t.Fatalf("state not filled from raw location: %q", rec.State)
	}
	if rec.Country != "USA" {
		t.Fatalf("country not filled: %q", rec.Country)
	}
}

func TestCanonicalize_EnrichmentFillsOnlyEmpty(t *testing.T) {
	desc := "<p>Intro</p><p>Required Skills</p><ul><li>Go</li><li>Postgres</li></ul><p>Benefits</p><p>401k</p>"
	raw := Raw{
		PositionTitle:  "Engineer",
		DetailURL:      "https://example.com/job/1",
		Description:    desc,
		RequiredSkills: "Explicit skills",
	}
	rec := Canonicalize("Acme", raw, testAnchor)
	if rec.RequiredSkills != "Explicit skills" {
		t.Fatalf("explicit skills overridden: %q", rec.RequiredSkills)
	}

	raw.RequiredSkills = ""
	rec = Canonicalize("Acme", raw, testAnchor)
	if !strings.Contains(rec.RequiredSkills, "Go") {
		t.Fatalf("skills not mined from description: %q", rec.RequiredSkills)
	}
	if strings.Contains(rec.RequiredSkills, "401k") {
		t.Fatalf("section did not stop at next heading: %q", rec.RequiredSkills)
	}
}

func TestValidate(t *testing.T) {
	good := Record{
		Vendor:        "Acme",
		PositionTitle: "Engineer",
		DetailURL:     "https://example.com/job/1",
		PostDate:      "2026-03-01",
	}
	if defects := Validate(good); len(defects) != 0 {
		t.Fatalf("unexpected defects: %v", defects)
	}

	bad := Record{
		DetailURL: "not-a-url",
		PostDate:  "March 1",
		SalaryMin: f64(200000),
		SalaryMax: f64(100000),
	}
	defects := Validate(bad)
	want := map[string]bool{
		"missing_required:Vendor":         false,
		"missing_required:Position Title": false,
		"bad_detail_url":                  false,
		"bad_post_date_format":            false,
		"salary_min_gt_max":               false,
	}
	for _, d := range defects {
		if _, ok := want[d]; ok {
			want[d] = true
		}
	}
	for code, seen := range want {
		if !seen {
			t.Errorf("missing defect %s (got %v)", code, defects)
		}
	}
}

func TestExtractEducationAndSkills_NoHeadings(t *testing.T) {
	e := ExtractEducationAndSkills("Just a plain description with no sections.")
	if e.RequiredEducation != "" || e.RequiredSkills != "" {
		t.Fatalf("expected empty enrichment, got %+v", e)
	}
}

func TestBulletsToList(t *testing.T) {
	items := BulletsToList("- Go\n- SQL\n• Docker")
	if len(items) != 3 {
		t.Fatalf("items = %v", items)
	}
	if items[0] != "Go" || items[2] != "Docker" {
		t.Fatalf("items = %v", items)
	}
}

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	rec := Canonicalize("Acme", Raw{
		PositionTitle: "Engineer",
		DetailURL:     "https://example.com/job/1",
	}, testAnchor)

	var buf strings.Builder
	if err := WriteCSV(&buf, []Record{rec}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Vendor,Position Title,Detail URL") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Acme,Engineer,https://example.com/job/1") {
		t.Fatalf("row = %q", lines[1])
	}
}
