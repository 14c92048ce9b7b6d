package canonical

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeURL strips query and fragment and requires scheme + host.
// Anything else (relative, scheme-less, unparseable) becomes "".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

var (
	ymdRe      = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	mdyRe      = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	daysAgoRe  = regexp.MustCompile(`(?i)^(\d+)\s*(?:day|days|d)\s*ago$`)
	moneyRe    = regexp.MustCompile(`(?i)(\$?\d+(?:\.\d+)?)(?:\s*/\s*(hour|hr|day|mo|month|yr|year))?`)
	numberRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	zipRe      = regexp.MustCompile(`\d{5}(?:-\d{4})?`)
	topSecret  = regexp.MustCompile(`\btop\s*secret\b`)
	spaceRunRe = regexp.MustCompile(`[ \t]+`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// ParseDate coerces a post date to YYYY-MM-DD. Accepts ISO timestamps,
// Y/M/D and M/D/YYYY forms, and relative forms ("3 days ago", "yesterday")
// anchored to anchor. Unrecognized input yields "".
func ParseDate(s string, anchor time.Time) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	head := strings.Fields(strings.ReplaceAll(strings.ReplaceAll(s, "Z", ""), "T", " "))
	if len(head) > 0 {
		if t, err := time.Parse("2006-01-02", head[0]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := ymdRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if validYMD(y, mo, d) {
			return fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
		}
		return ""
	}
	if m := mdyRe.FindStringSubmatch(s); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if validYMD(y, mo, d) {
			return fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
		}
		return ""
	}
	if anchor.IsZero() {
		anchor = time.Now().UTC()
	}
	if m := daysAgoRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return anchor.AddDate(0, 0, -n).Format("2006-01-02")
	}
	if strings.EqualFold(s, "yesterday") {
		return anchor.AddDate(0, 0, -1).Format("2006-01-02")
	}
	return ""
}

func validYMD(y, mo, d int) bool {
	return y >= 1 && mo >= 1 && mo <= 12 && d >= 1 && d <= 31
}

// ParseMoneySpan pulls a (min, max, unit) out of free text like
// "$50/hr - $80/hr". Unit is "" when no values parse, "unknown" when values
// parse but no unit is stated alongside them.
func ParseMoneySpan(s string) (float64, float64, string, bool) {
	t := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if t == "" {
		return 0, 0, "", false
	}
	matches := moneyRe.FindAllStringSubmatch(t, -1)
	vals := make([]float64, 0, len(matches))
	unit := ""
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.TrimPrefix(m[1], "$"), 64)
		if err != nil {
			continue
		}
		vals = append(vals, v)
		if m[2] != "" {
			unit = strings.ToLower(m[2])
		}
	}
	if len(vals) == 0 {
		if n := numberRe.FindString(t); n != "" {
			v, err := strconv.ParseFloat(n, 64)
			if err == nil {
				return v, v, "unknown", true
			}
		}
		return 0, 0, "", false
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if unit == "" {
		unit = "yr"
	}
	return lo, hi, unit, true
}

// Annualize converts a salary span to USD/yr using fixed unit multipliers.
func Annualize(min, max float64, unit string) (float64, float64) {
	f := 1.0
	switch strings.ToLower(unit) {
	case "hour", "hr":
		f = 2080
	case "day":
		f = 260
	case "mo", "month":
		f = 12
	}
	return round2(min * f), round2(max * f)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// ParseSalary parses a raw salary span and annualizes it.
func ParseSalary(raw string) (*float64, *float64) {
	lo, hi, unit, ok := ParseMoneySpan(raw)
	if !ok {
		return nil, nil
	}
	lo, hi = Annualize(lo, hi, unit)
	return &lo, &hi
}

// ParseClearanceLevel maps free text onto the fixed clearance vocabulary.
func ParseClearanceLevel(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	s := strings.ToLower(text)
	switch {
	case strings.Contains(s, "fs poly"):
		return "TS/SCI w/ FS Poly"
	case strings.Contains(s, "ci poly"):
		return "TS/SCI w/ CI Poly"
	case strings.Contains(s, "ts/sci"), strings.Contains(s, "ts sci"), strings.Contains(s, "tsci"):
		return "TS/SCI"
	case topSecret.MatchString(s):
		return "TS"
	case strings.Contains(s, "secret"):
		return "Secret"
	case strings.Contains(s, "public trust"):
		return "PublicTrust"
	case strings.Contains(s, "confidential"):
		return "Confidential"
	}
	return "None"
}

// ParseRemoteStatus maps free text to Remote/Hybrid/Onsite/Unspecified.
func ParseRemoteStatus(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	s := strings.ToLower(text)
	switch {
	case strings.Contains(s, "hybrid"):
		return "Hybrid"
	case strings.Contains(s, "remote"):
		return "Remote"
	case strings.Contains(s, "on-site"), strings.Contains(s, "onsite"):
		return "Onsite"
	}
	return "Unspecified"
}

// ParseFullTimeStatus maps an employment-type string to the fixed set.
func ParseFullTimeStatus(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	s := strings.ToLower(text)
	switch {
	case strings.Contains(s, "full"):
		return "Full-time"
	case strings.Contains(s, "part"):
		return "Part-time"
	case strings.Contains(s, "contract"), strings.Contains(s, "contingent"), strings.Contains(s, "1099"):
		return "Contract"
	case strings.Contains(s, "intern"):
		return "Intern"
	case strings.Contains(s, "temp"):
		return "Temporary"
	}
	return "Unspecified"
}

// Location holds a decomposed "City, State, Country" string.
type Location struct {
	Raw        string
	Country    string
	State      string
	City       string
	PostalCode string
}

// SplitLocation decomposes a raw location string. Callers merge the result
// into a record only where explicit structured fields are absent.
func SplitLocation(raw string) Location {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}
	}
	loc := Location{Raw: raw}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch {
	case len(parts) == 1:
		loc.City = parts[0]
	case len(parts) == 2:
		loc.City, loc.State = parts[0], parts[1]
	default:
		loc.City, loc.State = parts[0], parts[1]
		rest := strings.Join(parts[2:], ",")
		loc.PostalCode = zipRe.FindString(rest)
		country := rest
		if loc.PostalCode != "" {
			country = strings.Replace(country, loc.PostalCode, "", 1)
		}
		loc.Country = strings.Trim(country, " ,")
	}
	return loc
}

// SanitizeDescription reduces posting markup to plain text: scripts and
// styles dropped, <br> and list items become line breaks, whitespace
// collapsed, paragraph boundaries kept as newlines.
func SanitizeDescription(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	s := strings.NewReplacer("</br>", "<br>", "<br/>", "<br>", "<br />", "<br>").Replace(raw)
	s = strings.ReplaceAll(s, "<br>", "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err == nil {
		doc.Find("script,style").Remove()
		doc.Find("li").Each(func(_ int, sel *goquery.Selection) {
			sel.SetText(strings.TrimSpace(sel.Text()) + "\n")
		})
		doc.Find("p,div,ul,ol,h1,h2,h3,h4,h5,h6,tr").Each(func(_ int, sel *goquery.Selection) {
			sel.AppendHtml("\n")
		})
		if body := doc.Find("body"); body.Length() > 0 {
			s = body.Text()
		} else {
			s = doc.Text()
		}
	}

	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
