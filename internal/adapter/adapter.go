package adapter

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"jobharvest/internal/artifact"
	"jobharvest/internal/browser"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
	"jobharvest/internal/fetch"
)

// JobRef is a listing-time handle on one posting. DetailURL is always
// absolute and non-empty; PostingID and Title are best-effort. Extra carries
// any listing payload an adapter wants back at normalize time.
type JobRef struct {
	DetailURL string
	PostingID string
	Title     string
	Extra     map[string]string
}

// Env is what a run lends an adapter: the source's HTTP session, an optional
// shared browser, and the post-dedupe result cap (0 means unlimited).
type Env struct {
	Session *fetch.Session
	Browser *browser.Renderer
	Limit   int
}

// Adapter is one platform strategy. ListJobs does discovery only and never
// fetches detail pages; Normalize is pure and does no I/O.
type Adapter interface {
	Name() string
	Probe(src config.Source) float64
	ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error)
	Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw
}

// DetailSkipper marks adapters whose listing payload already holds the full
// posting, so the runner skips the detail fetch entirely.
type DetailSkipper interface {
	SkipDetailFetch() bool
}

// dedupeRefs drops repeated detail URLs keeping first occurrence, then
// applies the cap. The cap runs after dedupe so limited runs are
// deterministic regardless of how noisy the listing was.
func dedupeRefs(refs []JobRef, limit int) []JobRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]JobRef, 0, len(refs))
	for _, r := range refs {
		u := strings.TrimSpace(r.DetailURL)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		r.DetailURL = u
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// absoluteURL resolves href against base and requires an http(s) result.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := b.ResolveReference(h)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

var (
	trailingIDRe = regexp.MustCompile(`(?i)[/-]([A-Z0-9][A-Z0-9_-]{3,})/?$`)
	queryIDKeys  = []string{"jobid", "job_id", "id", "reqid", "req_id"}
)

// postingIDFromURL recovers an identifier from a detail URL: the source's
// configured regex first, then common query params, then the last path
// segment when it looks like an ID.
func postingIDFromURL(detailURL string, idRe *regexp.Regexp) string {
	if idRe != nil {
		if m := idRe.FindStringSubmatch(detailURL); len(m) > 1 {
			return strings.TrimSpace(m[1])
		} else if len(m) == 1 {
			return strings.TrimSpace(m[0])
		}
	}
	u, err := url.Parse(detailURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, k := range queryIDKeys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	if m := trailingIDRe.FindStringSubmatch(strings.TrimRight(u.Path, "/")); len(m) > 1 {
		seg := m[1]
		if strings.ContainsAny(seg, "0123456789") {
			return seg
		}
	}
	return ""
}

// pick returns the first non-empty value among keys in m.
func pick(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func compilePostingIDRe(pattern string) *regexp.Regexp {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}
