package adapter

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"jobharvest/internal/artifact"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
)

// PhenomSearch pages an offset-driven search UI whose listing data is only
// present in the embedded phApp state, never in the markup. Detail URLs come
// from each job's canonical URL field or a configured path template.
type PhenomSearch struct{}

func (a *PhenomSearch) Name() string { return "phenom_search" }

func (a *PhenomSearch) Probe(src config.Source) float64 {
	if strings.TrimSpace(src.SearchURL) == "" {
		return 0
	}
	if strings.Contains(src.SearchURL, "/search-results") || strings.Contains(src.Domain, "phenom") {
		return 0.9
	}
	return 0
}

func (a *PhenomSearch) ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error) {
	pg := src.Pagination
	pageSize := pg.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	maxPages := pg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	offsetParam := pg.OffsetParam
	if offsetParam == "" {
		offsetParam = "from"
	}

	var refs []JobRef
	totalHits := -1

	for page := 0; page < maxPages; page++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		params := map[string]string{offsetParam: strconv.Itoa(page * pageSize)}
		for k, v := range pg.FixedParams {
			params[k] = v
		}
		body, err := env.Session.GetWithParams(ctx, src.SearchURL, params)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			log.Printf("list:page source=%s page=%d err=%v", src.ID, page, err)
			break
		}

		state, err := artifact.ExtractEmbeddedState(string(body))
		if err != nil {
			return nil, fmt.Errorf("source %s page %d: %w", src.ID, page, err)
		}
		if state == nil {
			if page == 0 {
				return nil, fmt.Errorf("source %s: no embedded state on search page", src.ID)
			}
			break
		}

		jobs, hits := searchStateJobs(state)
		if hits >= 0 {
			totalHits = hits
		}
		added := 0
		for _, job := range jobs {
			if ref, ok := a.refFromListing(src, job); ok {
				refs = append(refs, ref)
				added++
			}
		}
		log.Printf("list:page source=%s page=%d found=%d total_hits=%d", src.ID, page, added, totalHits)

		if added == 0 {
			break
		}
		if totalHits >= 0 && (page+1)*pageSize >= totalHits {
			break
		}
		if env.Limit > 0 && len(refs) >= env.Limit {
			break
		}
	}

	return dedupeRefs(refs, env.Limit), nil
}

func (a *PhenomSearch) refFromListing(src config.Source, job map[string]any) (JobRef, bool) {
	flat := artifact.Flatten(job)
	detail := pick(flat, "canonicalPositionUrl", "applyUrl", "url")
	if detail == "" {
		detail = detailFromTemplate(src, flat)
	}
	detail = absoluteURL(src.CareersHome, detail)
	if detail == "" {
		return JobRef{}, false
	}
	return JobRef{
		DetailURL: detail,
		PostingID: pick(flat, "jobId", "jobSeqNo", "reqId"),
		Title:     pick(flat, "title", "name"),
		Extra:     flat,
	}, true
}

func (a *PhenomSearch) Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	raw := bundleRaw(src, ref, bundle)
	// The listing blob is a fallback when the detail page carried nothing.
	if raw.PositionTitle == "" {
		raw.PositionTitle = pick(ref.Extra, "title", "name")
	}
	if raw.RawLocation == "" {
		raw.RawLocation = pick(ref.Extra, "location", "cityStateCountry")
	}
	if raw.PostDate == "" {
		raw.PostDate = pick(ref.Extra, "postedDate", "dateCreated")
	}
	if raw.JobCategory == "" {
		raw.JobCategory = pick(ref.Extra, "category")
	}
	return raw
}

// searchStateJobs walks the known shapes of an embedded search payload and
// returns the jobs array plus the advertised total (or -1 when absent).
func searchStateJobs(state map[string]any) ([]map[string]any, int) {
	roots := []string{"eagerLoadRefineSearch", "refineSearch", "searchResults"}
	for _, root := range roots {
		node, ok := state[root].(map[string]any)
		if !ok {
			continue
		}
		hits := -1
		if h, ok := intAt(node, "totalHits"); ok {
			hits = h
		}
		holder := node
		if data, ok := node["data"].(map[string]any); ok {
			holder = data
			if hits < 0 {
				if h, ok := intAt(data, "totalHits"); ok {
					hits = h
				}
			}
		}
		arr, ok := holder["jobs"].([]any)
		if !ok {
			continue
		}
		jobs := make([]map[string]any, 0, len(arr))
		for _, it := range arr {
			if m, ok := it.(map[string]any); ok {
				jobs = append(jobs, m)
			}
		}
		return jobs, hits
	}
	return nil, -1
}

func intAt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

func detailFromTemplate(src config.Source, flat map[string]string) string {
	tpl := strings.TrimSpace(src.Pagination.DetailPathTemplate)
	if tpl == "" {
		return ""
	}
	out := tpl
	for _, key := range []string{"jobId", "jobSeqNo", "reqId", "title"} {
		if v := strings.TrimSpace(flat[key]); v != "" {
			out = strings.ReplaceAll(out, "{"+key+"}", v)
		}
	}
	if strings.Contains(out, "{") {
		return ""
	}
	return out
}

// PhenomSitemap discovers the same platform through its sitemap instead of
// the search UI. Listing knows nothing beyond URLs; everything else comes
// from the detail page's embedded state.
type PhenomSitemap struct{}

func (a *PhenomSitemap) Name() string { return "phenom_sitemap" }

func (a *PhenomSitemap) Probe(src config.Source) float64 {
	if src.SitemapURL == "" && src.SitemapIndexURL == "" {
		return 0
	}
	if strings.Contains(src.Domain, "phenom") {
		return 0.9
	}
	return 0
}

func (a *PhenomSitemap) ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error) {
	sitemap := SitemapJobs{}
	return sitemap.ListJobs(ctx, env, src)
}

func (a *PhenomSitemap) Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	return bundleRaw(src, ref, bundle)
}
