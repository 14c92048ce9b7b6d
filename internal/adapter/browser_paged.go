package adapter

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobharvest/internal/artifact"
	"jobharvest/internal/browser"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
)

// BrowserPaged renders JS-only search UIs in headless Chrome and pages them
// the same way PagedHTML pages static ones. Page one sets the page budget
// when the UI advertises a total; a streak of pages adding nothing ends the
// walk early.
type BrowserPaged struct{}

const zeroAddStreakStop = 2

func (a *BrowserPaged) Name() string { return "browser_paged" }

func (a *BrowserPaged) Probe(src config.Source) float64 {
	if !src.RequiresBrowser {
		return 0
	}
	if strings.TrimSpace(src.SearchURL) == "" {
		return 0
	}
	return 0.9
}

func (a *BrowserPaged) ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error) {
	if env.Browser == nil {
		return nil, fmt.Errorf("source %s: requires a browser but none available", src.ID)
	}
	pg := src.Pagination
	maxPages := pg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	startPage := pg.StartPage
	if startPage <= 0 {
		startPage = 1
	}
	pageSize := pg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	wait := browser.WaitSpec{CSS: pg.WaitCSS, JS: pg.WaitJS}
	idRe := compilePostingIDRe(pg.PostingIDRegex)
	seen := map[string]struct{}{}
	var refs []JobRef

	budget := maxPages
	zeroStreak := 0

	for page := 0; page < budget; page++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pageURL, err := pageURLFor(src.SearchURL, pg, startPage, page, pageSize)
		if err != nil {
			return nil, err
		}
		html, err := env.Browser.Render(ctx, pageURL, wait, 30*time.Second)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			log.Printf("list:page source=%s page=%d err=%v", src.ID, page, err)
			break
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("source %s page %d: %w", src.ID, page, err)
		}

		if page == 0 {
			if total := totalPagesFromDoc(doc, pg); total > 0 && total < budget {
				budget = total
			}
			log.Printf("list:plan source=%s pages=%d", src.ID, budget)
		}

		added := 0
		for _, href := range a.pageLinks(src, doc) {
			abs := absoluteURL(pageURL, href)
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
		log.Printf("list:page source=%s page=%d added=%d", src.ID, page, added)

		if added == 0 {
			zeroStreak++
			if zeroStreak >= zeroAddStreakStop {
				break
			}
		} else {
			zeroStreak = 0
		}
		if env.Limit > 0 && len(refs) >= env.Limit {
			break
		}
	}

	return dedupeRefs(refs, env.Limit), nil
}

func (a *BrowserPaged) pageLinks(src config.Source, doc *goquery.Document) []string {
	selector := src.Pagination.JobLinkSelector
	if strings.TrimSpace(selector) == "" {
		selector = "a[href]"
	}
	needle := src.JobURLContains

	var links []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if needle != "" && !strings.Contains(href, needle) {
			return
		}
		links = append(links, href)
	})
	return links
}

// totalPagesFromDoc scans pagination hrefs for the page parameter and takes
// the largest value seen. Zero means the UI told us nothing.
func totalPagesFromDoc(doc *goquery.Document, pg config.Pagination) int {
	param := pg.PageParam
	if param == "" {
		param = "page"
	}
	max := 0
	doc.Find("a[href*='" + param + "=']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if n, err := strconv.Atoi(u.Query().Get(param)); err == nil && n > max {
			max = n
		}
	})
	return max
}

func (a *BrowserPaged) Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	return bundleRaw(src, ref, bundle)
}
