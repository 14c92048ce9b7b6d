package canonical

import (
	"regexp"
	"strings"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate reports defect codes for a record. It never fails; an empty slice
// means the record is valid. Callers decide whether defects mean drop,
// quarantine, or store-with-warning.
func Validate(rec Record) []string {
	var defects []string

	required := []struct {
		col string
		val string
	}{
		{"Vendor", rec.Vendor},
		{"Position Title", rec.PositionTitle},
		{"Detail URL", rec.DetailURL},
	}
	for _, f := range required {
		if strings.TrimSpace(f.val) == "" {
			defects = append(defects, "missing_required:"+f.col)
		}
	}

	if rec.DetailURL != "" &&
		!strings.HasPrefix(rec.DetailURL, "http://") &&
		!strings.HasPrefix(rec.DetailURL, "https://") {
		defects = append(defects, "bad_detail_url")
	}

	if rec.PostDate != "" && !isoDateRe.MatchString(rec.PostDate) {
		defects = append(defects, "bad_post_date_format")
	}

	if rec.SalaryMin != nil && rec.SalaryMax != nil && *rec.SalaryMin > *rec.SalaryMax {
		defects = append(defects, "salary_min_gt_max")
	}

	return defects
}
