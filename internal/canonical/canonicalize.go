package canonical

import "time"

// Canonicalize coerces an adapter's raw record onto the canonical schema:
// URL/date/salary/location normalization, description sanitization, then
// best-effort education/skills enrichment for fields the source left empty.
// Deterministic for a fixed anchor time.
func Canonicalize(vendor string, raw Raw, anchor time.Time) Record {
	rec := Record{
		Vendor:        vendor,
		PositionTitle: raw.PositionTitle,
		DetailURL:     NormalizeURL(raw.DetailURL),
		PostingID:     raw.PostingID,
		PostDate:      ParseDate(raw.PostDate, anchor),

		USPersonRequired: raw.USPersonRequired,
		ClearancePossess: raw.ClearancePossess,
		ClearanceObtain:  raw.ClearanceObtain,
		Relocation:       raw.Relocation,

		SalaryRaw: raw.SalaryRaw,
		SalaryMin: raw.SalaryMin,
		SalaryMax: raw.SalaryMax,

		RemoteStatus:     raw.RemoteStatus,
		FullTimeStatus:   raw.FullTimeStatus,
		HoursPerWeek:     raw.HoursPerWeek,
		TravelPercentage: raw.TravelPercentage,

		JobCategory:    raw.JobCategory,
		BusinessSector: raw.BusinessSector,
		BusinessArea:   raw.BusinessArea,
		Industry:       raw.Industry,
		Shift:          raw.Shift,
		CareerLevel:    raw.CareerLevel,

		RequiredEducation:  raw.RequiredEducation,
		PreferredEducation: raw.PreferredEducation,
		RequiredSkills:     raw.RequiredSkills,
		PreferredSkills:    raw.PreferredSkills,

		RawLocation: raw.RawLocation,
		Country:     raw.Country,
		State:       raw.State,
		City:        raw.City,
		PostalCode:  raw.PostalCode,
		Latitude:    raw.Latitude,
		Longitude:   raw.Longitude,

		Extra: raw.Extra,
	}

	// Source-supplied numeric bounds win; text parsing only fills gaps.
	if rec.SalaryMin == nil && rec.SalaryMax == nil && rec.SalaryRaw != "" {
		rec.SalaryMin, rec.SalaryMax = ParseSalary(rec.SalaryRaw)
	}

	loc := SplitLocation(rec.RawLocation)
	if rec.Country == "" {
		rec.Country = loc.Country
	}
	if rec.State == "" {
		rec.State = loc.State
	}
	if rec.City == "" {
		rec.City = loc.City
	}
	if rec.PostalCode == "" {
		rec.PostalCode = loc.PostalCode
	}

	rec.Description = SanitizeDescription(raw.Description)

	if rec.RequiredEducation == "" || rec.PreferredEducation == "" ||
		rec.RequiredSkills == "" || rec.PreferredSkills == "" {
		enrich := ExtractEducationAndSkills(rec.Description)
		if rec.RequiredEducation == "" {
			rec.RequiredEducation = enrich.RequiredEducation
		}
		if rec.PreferredEducation == "" {
			rec.PreferredEducation = enrich.PreferredEducation
		}
		if rec.RequiredSkills == "" {
			rec.RequiredSkills = enrich.RequiredSkills
		}
		if rec.PreferredSkills == "" {
			rec.PreferredSkills = enrich.PreferredSkills
		}
	}

	return rec
}
