package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Source is one declarative target: which adapter drives it, where its entry
// points live, and how to page through it. Loaded from a JSON catalog.
type Source struct {
	ID     string `json:"id"`
	Vendor string `json:"vendor"`
	Domain string `json:"domain"`

	Platform string `json:"platform"`

	CareersHome     string `json:"careers_home"`
	SearchURL       string `json:"search_url"`
	SitemapURL      string `json:"sitemap_url"`
	SitemapIndexURL string `json:"sitemap_index_url"`

	JobURLContains  string   `json:"job_url_contains"`
	AllowedPrefixes []string `json:"allowed_prefixes"`

	Headers         map[string]string `json:"headers"`
	MaxRPS          float64           `json:"max_rps"`
	RequiresBrowser bool              `json:"requires_browser"`
	Disabled        bool              `json:"disabled"`

	Pagination Pagination `json:"pagination"`
}

// Pagination carries per-adapter paging knobs; adapters read the subset they
// understand and fall back to their own defaults.
type Pagination struct {
	PageParam   string `json:"page_param"`
	OffsetParam string `json:"offset_param"`
	StartPage   int    `json:"start_page"`
	PageSize    int    `json:"page_size"`
	MaxPages    int    `json:"max_pages"`

	JobLinkSelector    string            `json:"job_link_selector"`
	PostingIDRegex     string            `json:"posting_id_regex"`
	DetailPathTemplate string            `json:"detail_path_template"`
	FixedParams        map[string]string `json:"fixed_params"`

	APIURL    string            `json:"api_url"`
	WarmupURL string            `json:"warmup_url"`
	Referer   string            `json:"referer"`
	UseFacet  *bool             `json:"use_facet"`
	Params    map[string]string `json:"params"`

	ResultsPerPage int `json:"results_per_page"`
	ListWorkers    int `json:"list_workers"`

	WaitCSS string `json:"wait_css"`
	WaitJS  string `json:"wait_js"`
}

type sourceCatalog struct {
	Sources []Source `json:"sources"`
}

// LoadSources reads the source catalog and rejects entries that cannot be
// run at all (no id, vendor, or entry point). Disabled sources are kept so
// callers can report them.
func LoadSources(path string) ([]Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat sourceCatalog
	if err := json.Unmarshal(b, &cat); err != nil {
		return nil, fmt.Errorf("parse source catalog %s: %w", path, err)
	}
	for i := range cat.Sources {
		s := &cat.Sources[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Vendor = strings.TrimSpace(s.Vendor)
		if s.ID == "" {
			return nil, fmt.Errorf("source catalog %s: entry %d missing id", path, i)
		}
		if s.Vendor == "" {
			return nil, fmt.Errorf("source %s: missing vendor", s.ID)
		}
		if s.EntryPoint() == "" && s.Pagination.APIURL == "" {
			return nil, fmt.Errorf("source %s: no entry point configured", s.ID)
		}
	}
	return cat.Sources, nil
}

// EntryPoint is the first non-empty navigation URL for the source.
func (s Source) EntryPoint() string {
	for _, u := range []string{s.SearchURL, s.SitemapIndexURL, s.SitemapURL, s.CareersHome} {
		if strings.TrimSpace(u) != "" {
			return strings.TrimSpace(u)
		}
	}
	return ""
}
