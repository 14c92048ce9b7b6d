package canonical

import "strconv"

// Raw is an adapter's output: canonical field names only, values possibly
// empty. Anything a source emits that has no canonical home goes in Extra.
type Raw struct {
	PostingID     string
	PositionTitle string
	DetailURL     string
	Description   string
	PostDate      string

	USPersonRequired string
	ClearancePossess string
	ClearanceObtain  string
	Relocation       string

	SalaryRaw string
	SalaryMin *float64
	SalaryMax *float64

	RemoteStatus     string
	FullTimeStatus   string
	HoursPerWeek     string
	TravelPercentage string

	JobCategory    string
	BusinessSector string
	BusinessArea   string
	Industry       string
	Shift          string
	CareerLevel    string

	RequiredEducation  string
	PreferredEducation string
	RequiredSkills     string
	PreferredSkills    string

	RawLocation string
	Country     string
	State       string
	City        string
	PostalCode  string
	Latitude    *float64
	Longitude   *float64

	Extra map[string]string
}

// Record is one job posting on the fixed cross-source schema. Every Record
// carries exactly the canonical columns (possibly empty); unknown source
// fields live only in Extra and are serialized to a side column at write
// time.
type Record struct {
	Vendor        string
	PositionTitle string
	DetailURL     string
	Description   string
	PostDate      string
	PostingID     string

	USPersonRequired string
	ClearancePossess string
	ClearanceObtain  string
	Relocation       string

	SalaryRaw string
	SalaryMin *float64
	SalaryMax *float64
	Bonus     float64

	RemoteStatus     string
	FullTimeStatus   string
	HoursPerWeek     string
	TravelPercentage string

	JobCategory    string
	BusinessSector string
	BusinessArea   string
	Industry       string
	Shift          string
	CareerLevel    string

	RequiredEducation  string
	PreferredEducation string
	RequiredSkills     string
	PreferredSkills    string

	RawLocation string
	Country     string
	State       string
	City        string
	PostalCode  string
	Latitude    *float64
	Longitude   *float64

	Extra map[string]string
}

// Columns is the stable export/storage order of the canonical schema.
func Columns() []string {
	return []string{
		"Vendor",
		"Position Title",
		"Detail URL",
		"Description",
		"Post Date",
		"Posting ID",
		"US Person Required",
		"Clearance Level Must Possess",
		"Clearance Level Must Obtain",
		"Relocation Available",
		"Salary Raw",
		"Salary Min (USD/yr)",
		"Salary Max (USD/yr)",
		"Bonus",
		"Remote Status",
		"Full Time Status",
		"Hours Per Week",
		"Travel Percentage",
		"Job Category",
		"Business Sector",
		"Business Area",
		"Industry",
		"Shift",
		"Required Education",
		"Preferred Education",
		"Career Level",
		"Required Skills",
		"Preferred Skills",
		"Raw Location",
		"Country",
		"State",
		"City",
		"Postal Code",
		"Latitude",
		"Longitude",
	}
}

// Row renders the record's values in Columns() order.
func (r Record) Row() []string {
	return []string{
		r.Vendor,
		r.PositionTitle,
		r.DetailURL,
		r.Description,
		r.PostDate,
		r.PostingID,
		r.USPersonRequired,
		r.ClearancePossess,
		r.ClearanceObtain,
		r.Relocation,
		r.SalaryRaw,
		floatString(r.SalaryMin),
		floatString(r.SalaryMax),
		strconv.FormatFloat(r.Bonus, 'f', -1, 64),
		r.RemoteStatus,
		r.FullTimeStatus,
		r.HoursPerWeek,
		r.TravelPercentage,
		r.JobCategory,
		r.BusinessSector,
		r.BusinessArea,
		r.Industry,
		r.Shift,
		r.RequiredEducation,
		r.PreferredEducation,
		r.CareerLevel,
		r.RequiredSkills,
		r.PreferredSkills,
		r.RawLocation,
		r.Country,
		r.State,
		r.City,
		r.PostalCode,
		floatString(r.Latitude),
		floatString(r.Longitude),
	}
}

func floatString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
