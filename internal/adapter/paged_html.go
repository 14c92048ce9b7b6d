package adapter

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"jobharvest/internal/artifact"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
)

const defaultMaxPages = 50

// PagedHTML walks server-rendered search result pages with a page or offset
// query parameter, harvesting detail links by CSS selector or URL substring.
// Paging stops when a page yields nothing new.
type PagedHTML struct{}

func (a *PagedHTML) Name() string { return "paged_html" }

func (a *PagedHTML) Probe(src config.Source) float64 {
	if strings.TrimSpace(src.SearchURL) == "" {
		return 0
	}
	if src.RequiresBrowser {
		return 0
	}
	score := 0.5
	if src.Pagination.JobLinkSelector != "" || src.JobURLContains != "" {
		score = 0.7
	}
	return score
}

func (a *PagedHTML) ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error) {
	base := src.SearchURL
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("source %s: no search_url", src.ID)
	}
	host, err := hostOf(base)
	if err != nil {
		return nil, err
	}

	pg := src.Pagination
	maxPages := pg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	startPage := pg.StartPage
	if startPage <= 0 {
		if pg.OffsetParam != "" {
			startPage = 0
		} else {
			startPage = 1
		}
	}
	pageSize := pg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	idRe := compilePostingIDRe(pg.PostingIDRegex)
	seen := map[string]struct{}{}
	var refs []JobRef

	for page := 0; page < maxPages; page++ {
		pageURL, err := pageURLFor(base, pg, startPage, page, pageSize)
		if err != nil {
			return nil, err
		}
		links, err := a.collectPage(ctx, src, host, pageURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			log.Printf("list:page source=%s page=%d err=%v", src.ID, page, err)
			break
		}

		added := 0
		for _, link := range links {
			abs := absoluteURL(pageURL, link)
			if abs == "" {
				continue
			}
			if _, ok := seen[abs]; ok {
				continue
			}
			seen[abs] = struct{}{}
			refs = append(refs, JobRef{
				DetailURL: abs,
				PostingID: postingIDFromURL(abs, idRe),
			})
			added++
		}
		log.Printf("list:page source=%s page=%d found=%d added=%d", src.ID, page, len(links), added)
		if added == 0 {
			break
		}
		if env.Limit > 0 && len(refs) >= env.Limit {
			break
		}
	}

	return dedupeRefs(refs, env.Limit), nil
}

func (a *PagedHTML) collectPage(ctx context.Context, src config.Source, host, pageURL string) ([]string, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(host),
	)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: politeDelay(src.MaxRPS)})

	selector := src.Pagination.JobLinkSelector
	if strings.TrimSpace(selector) == "" {
		selector = "a"
	}
	needle := src.JobURLContains

	var links []string
	c.OnHTML(selector, func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" {
			return
		}
		if needle != "" && !strings.Contains(href, needle) {
			return
		}
		links = append(links, href)
	})

	var reqErr error
	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})
	c.OnRequest(func(r *colly.Request) {
		for k, v := range src.Headers {
			r.Headers.Set(k, v)
		}
	})

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := c.Visit(pageURL); err != nil {
		return nil, err
	}
	c.Wait()
	if reqErr != nil {
		return nil, reqErr
	}
	return links, nil
}

func (a *PagedHTML) Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	return bundleRaw(src, ref, bundle)
}

func pageURLFor(base string, pg config.Pagination, startPage, page, pageSize int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range pg.FixedParams {
		q.Set(k, v)
	}
	switch {
	case pg.OffsetParam != "":
		q.Set(pg.OffsetParam, strconv.Itoa((startPage+page)*pageSize))
	case pg.PageParam != "":
		q.Set(pg.PageParam, strconv.Itoa(startPage+page))
	default:
		q.Set("page", strconv.Itoa(startPage+page))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func politeDelay(maxRPS float64) time.Duration {
	if maxRPS <= 0 {
		return 400 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / maxRPS)
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	host := u.Host
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h, nil
	}
	return host, nil
}
