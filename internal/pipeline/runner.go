package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobharvest/internal/adapter"
	"jobharvest/internal/artifact"
	"jobharvest/internal/browser"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
	"jobharvest/internal/fetch"
	"jobharvest/internal/store"
)

// repeatWarnRatio is the fraction of already-stored listings above which a
// run warns that the source may be serving stale pages. High repeat rates
// are normal on rescans, so this warns and never aborts.
const repeatWarnRatio = 0.95

// Runner drives one source end to end: list, skip known postings, fetch and
// normalize the rest concurrently, dedupe, then write. Store and Cache may
// be nil; a nil Store makes every run a dry run.
type Runner struct {
	Store   *store.JobStore
	Cache   *store.SeenCache
	Browser *browser.Renderer

	Workers int
	Limit   int
	DryRun  bool
	Anchor  time.Time
}

// SourceReport is what one source run produced.
type SourceReport struct {
	RunID    string
	SourceID string
	Vendor   string

	Discovered      int
	SkippedExisting int
	Fetched         int
	Parsed          int
	Validated       int
	Defects         int
	HardFailures    int
	Written         int64

	Records []canonical.Record
}

// RunSource executes the full pipeline for one source. Per-posting failures
// are counted and logged; only listing-level failures return an error.
func (r *Runner) RunSource(ctx context.Context, src config.Source) (*SourceReport, error) {
	report := &SourceReport{
		RunID:    uuid.NewString(),
		SourceID: src.ID,
		Vendor:   src.Vendor,
	}
	if src.Disabled {
		log.Printf("run:skip source=%s disabled", src.ID)
		return report, nil
	}

	ad, err := adapter.Resolve(src)
	if err != nil {
		return report, err
	}

	anchor := r.Anchor
	if anchor.IsZero() {
		anchor = time.Now()
	}

	sess := fetch.NewSession(src.Headers, 30*time.Second, src.MaxRPS)
	env := adapter.Env{Session: sess, Browser: r.Browser, Limit: r.Limit}

	log.Printf("run:start source=%s vendor=%s adapter=%s run_id=%s",
		src.ID, src.Vendor, ad.Name(), report.RunID)

	refs, err := ad.ListJobs(ctx, env, src)
	if err != nil {
		return report, fmt.Errorf("list %s: %w", src.ID, err)
	}
	report.Discovered = len(refs)
	if len(refs) == 0 {
		log.Printf("run:empty source=%s no postings discovered", src.ID)
		return report, nil
	}

	refs = r.skipExisting(ctx, src, refs, report)

	skipDetail := false
	if ds, ok := ad.(adapter.DetailSkipper); ok {
		skipDetail = ds.SkipDetailFetch()
	}

	metrics := NewMetrics()
	slots := make([]*canonical.Record, len(refs))

	pool := NewWorkerPool(r.workerCount(), len(refs))
	if src.MaxRPS > 0 {
		rps := int(src.MaxRPS)
		if rps < 1 {
			rps = 1
		}
		// Browser renders bypass the session's politeness gap, so the pool
		// enforces the source rate as well.
		pool.SetRateLimit(rps)
	}
	results := pool.Run(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		pool.Submit(func(ctx context.Context) error {
			rec, err := r.processOne(ctx, ad, src, env, ref, anchor, skipDetail, metrics)
			if err != nil {
				return fmt.Errorf("%s: %w", ref.DetailURL, err)
			}
			slots[i] = rec
			return nil
		})
	}
	pool.Close()
	for res := range results {
		if res.Err != nil {
			metrics.Inc("hard_failures")
			log.Printf("item:error source=%s err=%v", src.ID, res.Err)
		}
	}
	metrics.LogSummary(fmt.Sprintf("run:metrics source=%s", src.ID))
	if ctx.Err() != nil {
		return report, ctx.Err()
	}

	// Slots keep listing order, so the keep-first dedupe below is stable
	// across runs regardless of worker scheduling.
	records := make([]canonical.Record, 0, len(refs))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	records = store.DedupeRecords(records)

	report.Fetched = metrics.Get("fetched")
	report.Parsed = metrics.Get("parsed")
	report.Validated = metrics.Get("validated")
	report.Defects = metrics.Get("defects")
	report.HardFailures = metrics.Get("hard_failures")
	report.Records = records

	if r.DryRun || r.Store == nil {
		log.Printf("run:done source=%s dry_run=true discovered=%d records=%d defects=%d failures=%d",
			src.ID, report.Discovered, len(records), report.Defects, report.HardFailures)
		return report, nil
	}

	written, err := r.Store.Upsert(ctx, records)
	report.Written = written
	if err != nil {
		return report, fmt.Errorf("upsert %s: %w", src.ID, err)
	}
	r.markSeen(ctx, src.Vendor, records)

	log.Printf("run:done source=%s discovered=%d skipped=%d written=%d defects=%d failures=%d",
		src.ID, report.Discovered, report.SkippedExisting, written, report.Defects, report.HardFailures)
	return report, nil
}

func (r *Runner) workerCount() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return 6
}

// skipExisting drops refs already stored for this vendor before any detail
// fetch happens. Sources whose listings expose posting IDs match on dedupe
// keys (cache first, then DB); the rest match on detail URLs.
func (r *Runner) skipExisting(ctx context.Context, src config.Source, refs []adapter.JobRef, report *SourceReport) []adapter.JobRef {
	if r.Store == nil || r.DryRun || len(refs) == 0 {
		return refs
	}

	allKeyed := true
	for _, ref := range refs {
		if strings.TrimSpace(ref.PostingID) == "" {
			allKeyed = false
			break
		}
	}

	var existing map[string]struct{}
	keyOf := func(ref adapter.JobRef) string { return ref.DetailURL }
	if allKeyed {
		keyOf = func(ref adapter.JobRef) string { return ref.PostingID }
		keys := make([]string, len(refs))
		for i, ref := range refs {
			keys[i] = ref.PostingID
		}
		existing = r.Cache.Seen(ctx, src.Vendor, keys)
		if len(existing) == 0 {
			dbKeys, err := r.Store.ExistingKeys(ctx, src.Vendor, keys)
			if err != nil {
				log.Printf("skip:lookup source=%s err=%v", src.ID, err)
				return refs
			}
			existing = dbKeys
		}
	} else {
		urls := make([]string, len(refs))
		for i, ref := range refs {
			urls[i] = ref.DetailURL
		}
		dbURLs, err := r.Store.ExistingURLs(ctx, src.Vendor, urls)
		if err != nil {
			log.Printf("skip:lookup source=%s err=%v", src.ID, err)
			return refs
		}
		existing = dbURLs
	}

	if len(existing) == 0 {
		return refs
	}
	kept := make([]adapter.JobRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := existing[keyOf(ref)]; ok {
			report.SkippedExisting++
			continue
		}
		kept = append(kept, ref)
	}
	if ratio := float64(report.SkippedExisting) / float64(len(refs)); ratio >= repeatWarnRatio {
		log.Printf("run:repeat source=%s ratio=%.2f listing almost entirely already stored", src.ID, ratio)
	}
	return kept
}

func (r *Runner) processOne(ctx context.Context, ad adapter.Adapter, src config.Source, env adapter.Env, ref adapter.JobRef, anchor time.Time, skipDetail bool, metrics *Metrics) (*canonical.Record, error) {
	var bundle artifact.Bundle
	if skipDetail {
		bundle = artifact.Bundle{DetailURL: ref.DetailURL}
	} else {
		var err error
		if src.RequiresBrowser && r.Browser != nil {
			html, rerr := r.Browser.Render(ctx, ref.DetailURL,
				browser.WaitSpec{CSS: src.Pagination.WaitCSS}, 30*time.Second)
			if rerr != nil {
				return nil, rerr
			}
			bundle, err = artifact.Extract(html, ref.DetailURL)
		} else {
			bundle, err = fetch.FetchArtifacts(ctx, env.Session, ref.DetailURL)
		}
		if err != nil {
			if bundleEmpty(bundle) {
				return nil, err
			}
			// Partial bundle: one artifact was corrupt, the rest parsed.
			log.Printf("item:partial url=%s err=%v", ref.DetailURL, err)
		}
		metrics.Inc("fetched")
	}

	raw := ad.Normalize(src, ref, bundle)
	metrics.Inc("parsed")

	rec := canonical.Canonicalize(src.Vendor, raw, anchor)
	defects := canonical.Validate(rec)
	if len(defects) > 0 {
		metrics.Add("defects", len(defects))
		log.Printf("item:defects url=%s codes=%s", ref.DetailURL, strings.Join(defects, ","))
		for _, d := range defects {
			if strings.HasPrefix(d, "missing_required:") || d == "bad_detail_url" {
				return nil, fmt.Errorf("invalid record: %s", strings.Join(defects, ","))
			}
		}
	}
	metrics.Inc("validated")
	return &rec, nil
}

func bundleEmpty(b artifact.Bundle) bool {
	return len(b.VendorBlob) == 0 && len(b.JSONLD) == 0 && len(b.Meta) == 0 &&
		len(b.DataLayer) == 0 && b.HTML == ""
}

func (r *Runner) markSeen(ctx context.Context, vendor string, records []canonical.Record) {
	if r.Cache == nil || len(records) == 0 {
		return
	}
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		if k := store.DedupeKey(rec); k != "" {
			keys = append(keys, k)
		}
	}
	r.Cache.MarkSeen(ctx, vendor, keys)
}
