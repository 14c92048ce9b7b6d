package adapter

import (
	"fmt"
	"sort"
	"strings"

	"jobharvest/internal/config"
)

var registry = map[string]Adapter{
	"paged_html":     &PagedHTML{},
	"sitemap_jobs":   &SitemapJobs{},
	"phenom_search":  &PhenomSearch{},
	"phenom_sitemap": &PhenomSitemap{},
	"encoded_api":    &EncodedAPI{},
	"paged_json":     &PagedJSON{},
	"browser_paged":  &BrowserPaged{},
}

// Resolve picks the adapter for a source: by explicit platform name when set,
// otherwise by the highest probe score. Resolution happens once at config
// load so a bad catalog fails before any network work.
func Resolve(src config.Source) (Adapter, error) {
	name := strings.TrimSpace(strings.ToLower(src.Platform))
	if name != "" {
		a, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("source %s: unknown platform %q", src.ID, name)
		}
		return a, nil
	}

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)

	var best Adapter
	bestScore := 0.0
	for _, n := range names {
		a := registry[n]
		if score := a.Probe(src); score > bestScore {
			best, bestScore = a, score
		}
	}
	if best == nil {
		return nil, fmt.Errorf("source %s: no adapter claims it", src.ID)
	}
	return best, nil
}
