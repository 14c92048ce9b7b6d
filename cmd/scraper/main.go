package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"jobharvest/internal/app"
	"jobharvest/internal/browser"
	"jobharvest/internal/canonical"
	"jobharvest/internal/config"
	"jobharvest/internal/pipeline"
)

func main() {
	sourcesPath := flag.String("sources", "sources.json", "path to the source catalog")
	only := flag.String("source", "", "run a single source id (default: all enabled)")
	workers := flag.Int("workers", 0, "detail fetch workers per source")
	limit := flag.Int("limit", 0, "cap postings per source after listing dedupe")
	dryRun := flag.Bool("dry-run", false, "run without writing to the database")
	csvPath := flag.String("csv", "", "export canonical records to a CSV file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *workers > 0 {
		cfg.Scrape.Workers = *workers
	}
	if *limit > 0 {
		cfg.Scrape.Limit = *limit
	}

	sources, err := config.LoadSources(*sourcesPath)
	if err != nil {
		log.Fatalf("failed to load sources: %v", err)
	}
	if *only != "" {
		sources = filterSources(sources, *only)
		if len(sources) == 0 {
			log.Fatalf("no source with id %q in %s", *only, *sourcesPath)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &pipeline.Runner{
		Workers: cfg.Scrape.Workers,
		Limit:   cfg.Scrape.Limit,
		DryRun:  *dryRun,
	}

	if !*dryRun {
		if err := cfg.RequireDatabase(); err != nil {
			log.Fatalf("database not configured: %v (use -dry-run to run without one)", err)
		}
		c, err := app.NewContainer(cfg)
		if err != nil {
			log.Fatalf("failed to init container: %v", err)
		}
		defer func() {
			_ = c.Close()
		}()
		runner.Store = c.Store
		runner.Cache = c.Cache
	}

	if needsBrowser(sources) {
		rend, err := browser.NewRenderer(ctx, "")
		if err != nil {
			log.Fatalf("failed to start browser: %v", err)
		}
		defer rend.Close()
		runner.Browser = rend
	}

	var all []canonical.Record
	failures := 0
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		report, err := runner.RunSource(ctx, src)
		if err != nil {
			failures++
			log.Printf("run:failed source=%s err=%v", src.ID, err)
			continue
		}
		all = append(all, report.Records...)
	}

	if *csvPath != "" && len(all) > 0 {
		if err := exportCSV(*csvPath, all); err != nil {
			log.Fatalf("csv export failed: %v", err)
		}
		log.Printf("csv:written path=%s records=%d", *csvPath, len(all))
	}

	if failures > 0 {
		log.Printf("run:summary sources=%d failed=%d", len(sources), failures)
		os.Exit(1)
	}
	log.Printf("run:summary sources=%d failed=0", len(sources))
}

func filterSources(sources []config.Source, id string) []config.Source {
	id = strings.TrimSpace(id)
	var out []config.Source
	for _, s := range sources {
		if s.ID == id {
			out = append(out, s)
		}
	}
	return out
}

func needsBrowser(sources []config.Source) bool {
	for _, s := range sources {
		if s.RequiresBrowser && !s.Disabled {
			return true
		}
	}
	return false
}

func exportCSV(path string, records []canonical.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := canonical.WriteCSV(f, records); err != nil {
		return err
	}
	return f.Sync()
}
