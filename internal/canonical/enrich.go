package canonical

import (
	"regexp"
	"strings"
)

// Heading synonyms recognized when mining education/skills sections out of a
// sanitized description. Kept as data so new site vocabularies extend the
// tables without touching the pipeline.
var (
	requiredEducationHeadings = []string{
		"Required Education",
		"Basic Qualifications",
		"Minimum Qualifications",
		"Required Qualifications",
		"Required Education, Experience, & Skills",
	}
	preferredEducationHeadings = []string{
		"Preferred Education",
		"Preferred Qualifications",
		"Desired Qualifications",
		"Preferred Education, Experience, & Skills",
	}
	requiredSkillsHeadings = []string{
		"Required Skills",
		"Required Experience",
		"What You Will Need",
		"Must Have",
		"Responsibilities",
		"Required Education, Experience, & Skills",
	}
	preferredSkillsHeadings = []string{
		"Preferred Skills",
		"Nice to Have",
		"Desired Skills",
		"Preferred Education, Experience, & Skills",
	}
	stopHeadings = []string{
		"Responsibilities",
		"Duties",
		"Benefits",
		"Pay",
		"Pay Information",
		"Salary",
		"Equal Opportunity",
		"EEO",
		"About Us",
		"Travel",
		"Relocation",
	}
)

var (
	stopHeadingRe = buildStopHeadingRe()
	bulletSplitRe = regexp.MustCompile(`(?m)^\s*[-*\x{2022}]\s+|[\n;]+`)
	wsRunRe       = regexp.MustCompile(`\s+`)
)

func buildStopHeadingRe() *regexp.Regexp {
	quoted := make([]string, len(stopHeadings))
	for i, h := range stopHeadings {
		quoted[i] = regexp.QuoteMeta(h)
	}
	return regexp.MustCompile(`(?im)^\s*(` + strings.Join(quoted, "|") + `)\s*:?\s*$`)
}

// Enrichment carries the best-effort fields mined from description text.
type Enrichment struct {
	RequiredEducation  string
	PreferredEducation string
	RequiredSkills     string
	PreferredSkills    string
}

// ExtractEducationAndSkills scans a sanitized description for known heading
// synonyms and returns the text under each. No match means an empty field,
// never an error.
func ExtractEducationAndSkills(description string) Enrichment {
	return Enrichment{
		RequiredEducation:  section(description, requiredEducationHeadings),
		PreferredEducation: section(description, preferredEducationHeadings),
		RequiredSkills:     joinBullets(section(description, requiredSkillsHeadings)),
		PreferredSkills:    joinBullets(section(description, preferredSkillsHeadings)),
	}
}

func section(text string, starts []string) string {
	s := strings.ReplaceAll(text, "\r", "\n")
	for _, start := range starts {
		re, err := regexp.Compile(`(?im)^\s*` + regexp.QuoteMeta(start) + `\s*:?\s*$`)
		if err != nil {
			continue
		}
		m := re.FindStringIndex(s)
		if m == nil {
			continue
		}
		tail := s[m[1]:]
		if stop := stopHeadingRe.FindStringIndex(tail); stop != nil {
			tail = tail[:stop[0]]
		}
		return strings.TrimSpace(tail)
	}
	return ""
}

// joinBullets splits bullet-like lines into items and rejoins them one per
// line; free text passes through untouched.
func joinBullets(text string) string {
	items := BulletsToList(text)
	if len(items) == 0 {
		return text
	}
	return strings.Join(items, "\n")
}

// BulletsToList splits bullet or line-item text into trimmed entries.
func BulletsToList(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := bulletSplitRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = wsRunRe.ReplaceAllString(p, " ")
		p = strings.Trim(p, " \t•-*;")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
