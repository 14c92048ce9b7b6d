package canonical

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/job/1?src=li#top", "https://example.com/job/1"},
		{"http://example.com/job", "http://example.com/job"},
		{"/job/relative", ""},
		{"ftp://example.com/job", ""},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeURL(c.in); got != c.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	anchor := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want string
	}{
		{"2026-02-01", "2026-02-01"},
		{"2026-02-01T08:30:00Z", "2026-02-01"},
		{"2026/2/1", "2026-02-01"},
		{"3/4/2026", "2026-03-04"},
		{"3 days ago", "2026-03-12"},
		{"1 day ago", "2026-03-14"},
		{"yesterday", "2026-03-14"},
		{"Yesterday", "2026-03-14"},
		{"soonish", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := ParseDate(c.in, anchor); got != c.want {
			t.Errorf("ParseDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseSalary_Annualization(t *testing.T) {
	cases := []struct {
		in      string
		min     float64
		max     float64
		wantNil bool
	}{
		{"$50/hr - $80/hr", 50 * 2080, 80 * 2080, false},
		{"$500/day", 500 * 260, 500 * 260, false},
		{"$10,000/month", 120000, 120000, false},
		{"$120000 - $150000", 120000, 150000, false},
		{"competitive", 0, 0, true},
	}
	for _, c := range cases {
		lo, hi := ParseSalary(c.in)
		if c.wantNil {
			if lo != nil || hi != nil {
				t.Errorf("ParseSalary(%q) expected nil bounds", c.in)
			}
			continue
		}
		if lo == nil || hi == nil {
			t.Fatalf("ParseSalary(%q) returned nil", c.in)
		}
		if *lo != c.min || *hi != c.max {
			t.Errorf("ParseSalary(%q) = (%v, %v), want (%v, %v)", c.in, *lo, *hi, c.min, c.max)
		}
	}
}

func TestParseClearanceLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"TS/SCI with FS Poly required", "TS/SCI w/ FS Poly"},
		{"active TS/SCI w/ CI Poly", "TS/SCI w/ CI Poly"},
		{"TS/SCI", "TS/SCI"},
		{"Top Secret", "TS"},
		{"Secret clearance", "Secret"},
		{"Public Trust", "PublicTrust"},
		{"no clearance needed", "None"},
		{"", ""},
	}
	for _, c := range cases {
		if got := ParseClearanceLevel(c.in); got != c.want {
			t.Errorf("ParseClearanceLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseRemoteStatus_HybridBeforeRemote(t *testing.T) {
	if got := ParseRemoteStatus("Remote or hybrid options"); got != "Hybrid" {
		t.Fatalf("got %q, want Hybrid", got)
	}
	if got := ParseRemoteStatus("fully remote"); got != "Remote" {
		t.Fatalf("got %q, want Remote", got)
	}
	if got := ParseRemoteStatus("on-site in Austin"); got != "Onsite" {
		t.Fatalf("got %q, want Onsite", got)
	}
	if got := ParseRemoteStatus("whatever"); got != "Unspecified" {
		t.Fatalf("got %q, want Unspecified", got)
	}
}

func TestParseFullTimeStatus(t *testing.T) {
	cases := map[string]string{
		"FULL_TIME":       "Full-time",
		"Part time":       "Part-time",
		"Contract (1099)": "Contract",
		"Internship":      "Intern",
		"Temporary":       "Temporary",
		"other":           "Unspecified",
	}
	for in, want := range cases {
		if got := ParseFullTimeStatus(in); got != want {
			t.Errorf("ParseFullTimeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitLocation(t *testing.T) {
	loc := SplitLocation("Austin")
	if loc.City != "Austin" || loc.State != "" {
		t.Fatalf("one part: %+v", loc)
	}

	loc = SplitLocation("Austin, TX")
	if loc.City != "Austin" || loc.State != "TX" {
		t.Fatalf("two parts: %+v", loc)
	}

	loc = SplitLocation("Austin, TX, USA 78701")
	if loc.City != "Austin" || loc.State != "TX" || loc.Country != "USA" || loc.PostalCode != "78701" {
		t.Fatalf("three parts: %+v", loc)
	}
}

func TestSanitizeDescription(t *testing.T) {
	in := `<div><script>track()</script><p>Build   things</p><ul><li>Go</li><li>SQL</li></ul></div>`
	got := SanitizeDescription(in)
	if got == "" {
		t.Fatal("empty output")
	}
	if strings.Contains(got, "track()") {
		t.Fatal("script content survived")
	}
	if !strings.Contains(got, "Build things") {
		t.Fatalf("whitespace not collapsed: %q", got)
	}
	if !strings.Contains(got, "Go") {
		t.Fatalf("list item lost: %q", got)
	}
}
