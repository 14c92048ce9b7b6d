package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"jobharvest/internal/artifact"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
)

// PagedJSON pages a plain JSON search API whose listing items already carry
// the whole posting. Credentials and host pinning ride in the source's
// headers; the runner skips detail fetches entirely for this variant.
type PagedJSON struct{}

func (a *PagedJSON) Name() string { return "paged_json" }

func (a *PagedJSON) Probe(src config.Source) float64 {
	if strings.TrimSpace(src.Pagination.APIURL) == "" {
		return 0
	}
	if src.Pagination.ResultsPerPage > 0 {
		return 0.7
	}
	return 0.3
}

func (a *PagedJSON) SkipDetailFetch() bool { return true }

func (a *PagedJSON) ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error) {
	pg := src.Pagination
	apiURL := strings.TrimSpace(pg.APIURL)
	if apiURL == "" {
		return nil, fmt.Errorf("source %s: no api_url", src.ID)
	}

	pageParam := pg.PageParam
	if pageParam == "" {
		pageParam = "Page"
	}
	perPage := pg.ResultsPerPage
	if perPage <= 0 {
		perPage = 250
	}
	maxPages := pg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var refs []JobRef
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		params := map[string]string{
			pageParam:        strconv.Itoa(page),
			"ResultsPerPage": strconv.Itoa(perPage),
		}
		for k, v := range pg.FixedParams {
			params[k] = v
		}
		body, err := env.Session.GetWithParams(ctx, apiURL, params)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("list:page source=%s page=%d err=%v", src.ID, page, err)
			break
		}

		items, totalPages, err := parseSearchResult(body)
		if err != nil {
			return nil, fmt.Errorf("source %s page %d: %w", src.ID, page, err)
		}

		added := 0
		for _, item := range items {
			flat := artifact.Flatten(item)
			detail := pick(flat, "PositionURI", "ApplyURI.0", "url")
			if detail == "" {
				continue
			}
			refs = append(refs, JobRef{
				DetailURL: detail,
				PostingID: pick(flat, "PositionID", "MatchedObjectId", "id"),
				Title:     pick(flat, "PositionTitle", "title"),
				Extra:     flat,
			})
			added++
		}
		log.Printf("list:page source=%s page=%d found=%d total_pages=%d", src.ID, page, added, totalPages)

		if added == 0 {
			break
		}
		if totalPages > 0 && page >= totalPages {
			break
		}
		if env.Limit > 0 && len(refs) >= env.Limit {
			break
		}
	}

	return dedupeRefs(refs, env.Limit), nil
}

// parseSearchResult handles the SearchResult envelope: items under
// SearchResultItems with the posting in MatchedObjectDescriptor, page count
// advertised alongside.
func parseSearchResult(body []byte) ([]map[string]any, int, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode listing response: %w", err)
	}

	root := doc
	if sr, ok := doc["SearchResult"].(map[string]any); ok {
		root = sr
	}

	totalPages := 0
	if n, ok := intAt(root, "UserArea.NumberOfPages"); ok {
		totalPages = n
	} else if ua, ok := root["UserArea"].(map[string]any); ok {
		if n, ok := intAt(ua, "NumberOfPages"); ok {
			totalPages = n
		}
	}

	var arr []any
	for _, key := range []string{"SearchResultItems", "items", "results"} {
		if v, ok := root[key].([]any); ok {
			arr = v
			break
		}
	}

	items := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if desc, ok := m["MatchedObjectDescriptor"].(map[string]any); ok {
			if id, ok := m["MatchedObjectId"]; ok {
				desc["MatchedObjectId"] = id
			}
			items = append(items, desc)
			continue
		}
		items = append(items, m)
	}
	return items, totalPages, nil
}

var rateIntervalUnits = map[string]string{
	"PA": "year",
	"PH": "hour",
	"PD": "day",
	"PM": "month",
	"PW": "week",
}

func (a *PagedJSON) Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	flat := ref.Extra
	raw := canonical.Raw{
		DetailURL:     ref.DetailURL,
		PostingID:     ref.PostingID,
		PositionTitle: pick(flat, "PositionTitle", "title"),
		Description: firstNonEmpty(
			pick(flat, "UserArea.Details.JobSummary"),
			pick(flat, "QualificationSummary"),
			pick(flat, "description"),
		),
		PostDate:       pick(flat, "PublicationStartDate", "PositionStartDate", "datePosted"),
		RawLocation:    pick(flat, "PositionLocationDisplay", "location"),
		Country:        pick(flat, "PositionLocation.0.CountryCode", "country"),
		State:          pick(flat, "PositionLocation.0.CountrySubDivisionCode"),
		City:           pick(flat, "PositionLocation.0.CityName"),
		Latitude:       parseFloatPtr(pick(flat, "PositionLocation.0.Latitude")),
		Longitude:      parseFloatPtr(pick(flat, "PositionLocation.0.Longitude")),
		FullTimeStatus: pick(flat, "PositionSchedule.0.Name"),
		JobCategory:    pick(flat, "JobCategory.0.Name"),
		BusinessSector: pick(flat, "OrganizationName"),
		BusinessArea:   pick(flat, "DepartmentName"),
		TravelPercentage: pick(flat, "UserArea.Details.Travel",
			"UserArea.Details.TravelCode"),
		RequiredEducation: pick(flat, "UserArea.Details.Education"),
		Relocation:        pick(flat, "UserArea.Details.Relocation"),
		Extra:             map[string]string{},
	}

	if min := parseFloatPtr(pick(flat, "PositionRemuneration.0.MinimumRange")); min != nil {
		max := parseFloatPtr(pick(flat, "PositionRemuneration.0.MaximumRange"))
		if max == nil {
			max = min
		}
		unit := rateIntervalUnits[strings.ToUpper(pick(flat, "PositionRemuneration.0.RateIntervalCode"))]
		lo, hi := canonical.Annualize(*min, *max, unit)
		raw.SalaryMin = &lo
		raw.SalaryMax = &hi
		raw.SalaryRaw = pick(flat, "PositionRemuneration.0.Description")
	}

	for _, key := range []string{"PositionOfferingType.0.Name", "SecurityClearance",
		"UserArea.Details.DrugTestRequired", "UserArea.Details.TeleworkEligible"} {
		if v := pick(flat, key); v != "" {
			raw.Extra[key] = v
		}
	}
	if v := pick(flat, "SecurityClearance", "UserArea.Details.SecurityClearance"); v != "" {
		raw.ClearancePossess = v
	}
	if v := pick(flat, "UserArea.Details.TeleworkEligible"); v != "" {
		raw.RemoteStatus = v
	}
	return raw
}
