package adapter

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"strings"

	"jobharvest/internal/artifact"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
	"jobharvest/internal/fetch"
)

// maxSitemapChildren caps how many child sitemaps one index traversal reads.
const maxSitemapChildren = 50

type sitemapDoc struct {
	XMLName xml.Name `xml:""`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// parseSitemap reads either a urlset or a sitemapindex. A UTF-8 BOM before
// the declaration is tolerated; some generators emit one.
func parseSitemap(data []byte) (locs []string, isIndex bool, err error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("parse sitemap: %w", err)
	}
	if doc.XMLName.Local == "sitemapindex" || len(doc.Sitemaps) > 0 {
		for _, s := range doc.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				locs = append(locs, loc)
			}
		}
		return locs, true, nil
	}
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, false, nil
}

// SitemapJobs discovers postings from a sitemap or sitemap index, filtered
// down to job detail URLs by substring or allowed prefixes.
type SitemapJobs struct{}

func (a *SitemapJobs) Name() string { return "sitemap_jobs" }

func (a *SitemapJobs) Probe(src config.Source) float64 {
	if src.SitemapURL == "" && src.SitemapIndexURL == "" {
		return 0
	}
	return 0.8
}

func (a *SitemapJobs) ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error) {
	urls, err := collectSitemapURLs(ctx, env.Session, src)
	if err != nil {
		return nil, err
	}
	idRe := compilePostingIDRe(src.Pagination.PostingIDRegex)
	refs := make([]JobRef, 0, len(urls))
	for _, u := range urls {
		if !jobURLAllowed(src, u) {
			continue
		}
		refs = append(refs, JobRef{
			DetailURL: u,
			PostingID: postingIDFromURL(u, idRe),
		})
	}
	log.Printf("list:sitemap source=%s urls=%d jobs=%d", src.ID, len(urls), len(refs))
	return dedupeRefs(refs, env.Limit), nil
}

func (a *SitemapJobs) Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	return bundleRaw(src, ref, bundle)
}

func collectSitemapURLs(ctx context.Context, sess *fetch.Session, src config.Source) ([]string, error) {
	entry := src.SitemapIndexURL
	if strings.TrimSpace(entry) == "" {
		entry = src.SitemapURL
	}
	if strings.TrimSpace(entry) == "" {
		return nil, fmt.Errorf("source %s: no sitemap url", src.ID)
	}

	body, err := sess.Get(ctx, entry)
	if err != nil {
		return nil, err
	}
	locs, isIndex, err := parseSitemap(body)
	if err != nil {
		return nil, err
	}
	if !isIndex {
		return locs, nil
	}

	var urls []string
	children := locs
	if len(children) > maxSitemapChildren {
		children = children[:maxSitemapChildren]
	}
	for _, child := range children {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cb, err := sess.Get(ctx, child)
		if err != nil {
			log.Printf("list:sitemap source=%s child=%s err=%v", src.ID, child, err)
			continue
		}
		childLocs, childIsIndex, err := parseSitemap(cb)
		if err != nil || childIsIndex {
			log.Printf("list:sitemap source=%s child=%s skipped err=%v index=%v", src.ID, child, err, childIsIndex)
			continue
		}
		urls = append(urls, childLocs...)
	}
	return urls, nil
}

func jobURLAllowed(src config.Source, u string) bool {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return false
	}
	if len(src.AllowedPrefixes) > 0 {
		ok := false
		for _, p := range src.AllowedPrefixes {
			if strings.HasPrefix(u, p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if src.JobURLContains != "" && !strings.Contains(u, src.JobURLContains) {
		return false
	}
	return true
}
