package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"jobharvest/internal/artifact"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
	"jobharvest/internal/fetch"
)

const (
	defaultTokenParam      = "searchCriteria"
	defaultEncodedPageSize = 50
	minEncodedPageSize     = 10
)

// EncodedAPI drives REST endpoints that take a base64url-encoded JSON request
// token. Some deployments reject the page-size facet, some reject large page
// sizes; listing downgrades capabilities one step at a time on HTTP 400
// instead of failing the source.
type EncodedAPI struct{}

func (a *EncodedAPI) Name() string { return "encoded_api" }

func (a *EncodedAPI) Probe(src config.Source) float64 {
	if strings.TrimSpace(src.Pagination.APIURL) == "" {
		return 0
	}
	return 0.6
}

// encodedPlan is the capability state listing runs under, shared by the page
// workers. Downgrades settle under the lock so a 400 seen by several workers
// at once lowers the plan exactly one step.
type encodedPlan struct {
	mu       sync.Mutex
	useFacet bool
	pageSize int
}

// planStep is the settled view of the plan one request runs with.
type planStep struct {
	useFacet bool
	pageSize int
}

func (p *encodedPlan) step() planStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	return planStep{useFacet: p.useFacet, pageSize: p.pageSize}
}

// downgrade lowers the plan one capability below prev. When a sibling worker
// already moved the plan past prev, no step is consumed and the caller simply
// retries on the settled state. Returns false once nothing is left to drop.
func (p *encodedPlan) downgrade(prev planStep, sourceID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.useFacet != prev.useFacet || p.pageSize != prev.pageSize {
		return true
	}
	switch {
	case p.useFacet:
		p.useFacet = false
		log.Printf("list:downgrade source=%s step=drop_facet", sourceID)
	case p.pageSize > minEncodedPageSize:
		p.pageSize = p.pageSize / 2
		if p.pageSize < minEncodedPageSize {
			p.pageSize = minEncodedPageSize
		}
		log.Printf("list:downgrade source=%s step=page_size size=%d", sourceID, p.pageSize)
	default:
		return false
	}
	return true
}

func (a *EncodedAPI) ListJobs(ctx context.Context, env Env, src config.Source) ([]JobRef, error) {
	pg := src.Pagination
	apiURL := strings.TrimSpace(pg.APIURL)
	if apiURL == "" {
		return nil, fmt.Errorf("source %s: no api_url", src.ID)
	}

	if pg.WarmupURL != "" {
		if err := env.Session.Warmup(ctx, pg.WarmupURL, pg.Referer); err != nil {
			log.Printf("list:warmup source=%s err=%v", src.ID, err)
		}
	}

	plan := &encodedPlan{useFacet: true, pageSize: pg.PageSize}
	if pg.UseFacet != nil {
		plan.useFacet = *pg.UseFacet
	}
	if plan.pageSize <= 0 {
		plan.pageSize = defaultEncodedPageSize
	}

	// Page zero runs alone so the initial downgrades settle before workers
	// share the plan.
	first, total, err := a.fetchPage(ctx, env.Session, src, plan, 0)
	if err != nil {
		return nil, err
	}
	settled := plan.step()

	maxPages := pg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	pages := 1
	if total > settled.pageSize {
		pages = (total + settled.pageSize - 1) / settled.pageSize
	}
	if pages > maxPages {
		pages = maxPages
	}
	if env.Limit > 0 {
		want := (env.Limit + settled.pageSize - 1) / settled.pageSize
		if want < pages {
			pages = want
		}
	}
	log.Printf("list:plan source=%s total=%d pages=%d page_size=%d facet=%v",
		src.ID, total, pages, settled.pageSize, settled.useFacet)

	// Remaining pages land in slots indexed by page number, so output order
	// is stable no matter which worker finishes first.
	slots := make([][]JobRef, pages)
	slots[0] = first

	workers := pg.ListWorkers
	if workers <= 0 {
		workers = 3
	}
	pageCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pageCh {
				refs, _, err := a.fetchPage(ctx, env.Session, src, plan, page)
				if err != nil {
					log.Printf("list:page source=%s page=%d err=%v", src.ID, page, err)
					continue
				}
				slots[page] = refs
			}
		}()
	}
	for page := 1; page < pages; page++ {
		select {
		case <-ctx.Done():
			page = pages
		case pageCh <- page:
		}
	}
	close(pageCh)
	wg.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var refs []JobRef
	for _, slot := range slots {
		refs = append(refs, slot...)
	}
	return dedupeRefs(refs, env.Limit), nil
}

// fetchPage runs one page request with the downgrade ladder: on 400 drop the
// page-size facet, then shrink the page size, one retry per step. A page
// fails only after its request is rejected at the minimum capability state.
func (a *EncodedAPI) fetchPage(ctx context.Context, sess *fetch.Session, src config.Source, plan *encodedPlan, page int) ([]JobRef, int, error) {
	for {
		step := plan.step()
		body, err := a.request(ctx, sess, src, step, page)
		if err == nil {
			return a.parsePage(src, body)
		}

		var he *fetch.HTTPError
		if !errors.As(err, &he) || he.Status != 400 {
			return nil, 0, err
		}
		if !plan.downgrade(step, src.ID) {
			return nil, 0, fmt.Errorf("source %s: rejected at minimum capabilities: %w", src.ID, err)
		}
	}
}

func (a *EncodedAPI) request(ctx context.Context, sess *fetch.Session, src config.Source, step planStep, page int) ([]byte, error) {
	pg := src.Pagination
	req := map[string]any{
		"from": page * step.pageSize,
	}
	for k, v := range pg.Params {
		req[k] = v
	}
	if step.useFacet {
		req["size"] = step.pageSize
	}

	params := map[string]string{}
	for k, v := range pg.FixedParams {
		params[k] = v
	}
	tokenParam := pg.PageParam
	if tokenParam == "" {
		tokenParam = defaultTokenParam
	}
	token, err := encodeRequestToken(req)
	if err != nil {
		return nil, err
	}
	params[tokenParam] = token

	return sess.GetWithParams(ctx, pg.APIURL, params)
}

func (a *EncodedAPI) parsePage(src config.Source, body []byte) ([]JobRef, int, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("source %s: decode listing response: %w", src.ID, err)
	}

	total := -1
	for _, key := range []string{"count", "totalCount", "total", "totalHits"} {
		if n, ok := intAt(doc, key); ok {
			total = n
			break
		}
	}

	var arr []any
	for _, key := range []string{"positions", "jobs", "items", "results"} {
		if v, ok := doc[key].([]any); ok {
			arr = v
			break
		}
	}
	if arr == nil {
		if data, ok := doc["data"].(map[string]any); ok {
			if v, ok := data["jobs"].([]any); ok {
				arr = v
			}
		}
	}

	refs := make([]JobRef, 0, len(arr))
	for _, it := range arr {
		job, ok := it.(map[string]any)
		if !ok {
			continue
		}
		flat := artifact.Flatten(job)
		detail := pick(flat, "canonicalPositionUrl", "positionUrl", "url", "applyUrl")
		if detail == "" {
			detail = detailFromTemplate(src, flat)
		}
		detail = absoluteURL(src.CareersHome, detail)
		if detail == "" {
			continue
		}
		refs = append(refs, JobRef{
			DetailURL: detail,
			PostingID: pick(flat, "id", "jobId", "positionId", "displayJobId"),
			Title:     pick(flat, "name", "title"),
			Extra:     flat,
		})
	}
	return refs, total, nil
}

func (a *EncodedAPI) Normalize(src config.Source, ref JobRef, bundle artifact.Bundle) canonical.Raw {
	raw := bundleRaw(src, ref, bundle)
	if raw.PositionTitle == "" {
		raw.PositionTitle = pick(ref.Extra, "name", "title")
	}
	if raw.RawLocation == "" {
		raw.RawLocation = pick(ref.Extra, "location", "locations")
	}
	if raw.PostDate == "" {
		raw.PostDate = pick(ref.Extra, "postedDate", "tCreated", "createdAt")
	}
	if raw.Description == "" {
		raw.Description = pick(ref.Extra, "jobDescription", "description")
	}
	return raw
}

// encodeRequestToken serializes the request object and base64url-encodes it
// without padding, the form these endpoints expect in a query string.
func encodeRequestToken(req map[string]any) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// decodeRequestToken is the inverse, used when replaying captured tokens
// from a source catalog.
func decodeRequestToken(token string) (map[string]any, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var req map[string]any
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, err
	}
	return req, nil
}
