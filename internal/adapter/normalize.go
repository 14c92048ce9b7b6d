package adapter

import (
	"strconv"
	"strings"

	"jobharvest/internal/artifact"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
)

// bundleRaw maps a detail-page artifact bundle onto canonical fields with the
// fixed precedence: vendor blob, then JSON-LD, then page meta, then whatever
// the listing already knew. Missing artifacts just leave fields empty.
func bundleRaw(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	blob := bundle.VendorBlob
	ld := bundle.JSONLD
	meta := bundle.Meta

	raw := canonical.Raw{
		DetailURL: ref.DetailURL,
		PositionTitle: firstNonEmpty(
			pick(blob, "title", "jobTitle", "name"),
			pick(ld, "title"),
			pick(meta, "og:title", "h1", "title"),
			ref.Title,
		),
		Description: firstNonEmpty(
			pick(blob, "description", "jobDescription", "externalDescription"),
			pick(ld, "description"),
			pick(meta, "og:description", "description"),
		),
		PostDate: firstNonEmpty(
			pick(blob, "postedDate", "dateCreated", "datePosted", "publishDate"),
			pick(ld, "datePosted"),
		),
		PostingID: firstNonEmpty(
			pick(blob, "jobId", "jobSeqNo", "reqId", "requisitionId", "id"),
			pick(ld, "identifier.value", "identifier"),
			ref.PostingID,
		),
		JobCategory: firstNonEmpty(
			pick(blob, "category", "jobCategory"),
			pick(ld, "occupationalCategory"),
		),
		Industry: pick(ld, "industry"),
		FullTimeStatus: firstNonEmpty(
			pick(blob, "employmentType", "type", "timeType"),
			pick(ld, "employmentType"),
		),
		RawLocation: firstNonEmpty(
			pick(blob, "location", "cityStateCountry", "displayLocation"),
			composedAddress(ld),
		),
		City: firstNonEmpty(
			pick(blob, "city"),
			pick(ld, "jobLocation.address.addressLocality"),
		),
		State: firstNonEmpty(
			pick(blob, "state", "region"),
			pick(ld, "jobLocation.address.addressRegion"),
		),
		Country: firstNonEmpty(
			pick(blob, "country"),
			pick(ld, "jobLocation.address.addressCountry", "jobLocation.address.addressCountry.name"),
		),
		PostalCode: firstNonEmpty(
			pick(blob, "postalCode", "zipCode"),
			pick(ld, "jobLocation.address.postalCode"),
		),
		Latitude: parseFloatPtr(firstNonEmpty(
			pick(blob, "latitude"),
			pick(ld, "jobLocation.geo.latitude"),
		)),
		Longitude: parseFloatPtr(firstNonEmpty(
			pick(blob, "longitude"),
			pick(ld, "jobLocation.geo.longitude"),
		)),
		Shift:       pick(blob, "shift", "workShift"),
		CareerLevel: pick(blob, "careerLevel", "jobLevel", "level"),
		TravelPercentage: firstNonEmpty(
			pick(blob, "travel", "travelPercentage"),
			pick(ld, "travelRequirements"),
		),
		SalaryRaw: firstNonEmpty(
			pick(blob, "salaryRange", "salary", "payRange"),
			pick(ld, "baseSalary.value.value"),
		),
	}

	if min := parseFloatPtr(pick(ld, "baseSalary.value.minValue")); min != nil {
		max := parseFloatPtr(pick(ld, "baseSalary.value.maxValue"))
		if max == nil {
			max = min
		}
		lo, hi := canonical.Annualize(*min, *max, pick(ld, "baseSalary.value.unitText"))
		raw.SalaryMin = &lo
		raw.SalaryMax = &hi
	}

	raw.Extra = map[string]string{}
	for k, v := range ref.Extra {
		raw.Extra[k] = v
	}
	if bundle.CanonicalURL != "" {
		raw.Extra["canonical_url"] = bundle.CanonicalURL
	}
	if v := pick(meta, "gtm_tbcn_location"); v != "" && raw.RawLocation == "" {
		raw.RawLocation = v
	}
	return raw
}

func composedAddress(ld map[string]string) string {
	parts := []string{
		strings.TrimSpace(ld["jobLocation.address.addressLocality"]),
		strings.TrimSpace(ld["jobLocation.address.addressRegion"]),
		strings.TrimSpace(ld["jobLocation.address.addressCountry"]),
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
