package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solarcrawl/internal/config"
	"solarcrawl/internal/crawler"
)

func main() {
	cfgPath := flag.String("config", "", "path to crawler configuration file (optional)")
	seed := flag.String("seed", "", "seed URL to crawl (overrides config)")
	maxPages := flag.Int("max-pages", 0, "maximum pages to visit")
	maxDepth := flag.Int("max-depth", 0, "maximum link depth from the seed")
	concurrency := flag.Int("concurrency", 0, "concurrent in-flight fetches")
	rateLimit := flag.Duration("rate-limit", 0, "minimum interval between requests")
	timeout := flag.Duration("timeout", 0, "per-request fetch timeout")
	deadline := flag.Duration("deadline", 0, "wall-clock budget for the whole crawl")
	maxRetries := flag.Int("max-retries", -1, "fetch retry attempts")
	respectRobots := flag.Bool("respect-robots", true, "honor robots.txt")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	applyFlags(&cfg, *seed, *maxPages, *maxDepth, *concurrency, *rateLimit, *timeout, *deadline, *maxRetries, *respectRobots)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	engine, err := crawler.NewEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise engine: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := engine.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crawler stopped with error: %v\n", err)
		os.Exit(1)
	}

	// Zero products found is a completed crawl, not a failure.
	fmt.Printf("crawl finished: pages=%d catalog_pages=%d products=%d termination=%s elapsed=%s\n",
		len(report.PagesVisited),
		report.CatalogPagesFound,
		len(report.ProductLinks),
		report.Termination,
		report.Finished.Sub(report.Started).Round(time.Millisecond),
	)
}

func applyFlags(cfg *config.Config, seed string, maxPages, maxDepth, concurrency int,
	rateLimit, timeout, deadline time.Duration, maxRetries int, respectRobots bool) {
	if seed != "" {
		cfg.Crawl.Seed = seed
	}
	if maxPages > 0 {
		cfg.Crawl.MaxPages = maxPages
	}
	if maxDepth > 0 {
		cfg.Crawl.MaxDepth = maxDepth
	}
	if concurrency > 0 {
		cfg.Crawl.Concurrency = concurrency
	}
	if rateLimit > 0 {
		cfg.Crawl.RateLimit = config.DurationFrom(rateLimit)
	}
	if timeout > 0 {
		cfg.Crawl.RequestTimeout = config.DurationFrom(timeout)
	}
	if deadline > 0 {
		cfg.Crawl.Deadline = config.DurationFrom(deadline)
	}
	if maxRetries >= 0 {
		cfg.Crawl.MaxRetries = maxRetries
	}
	cfg.Robots.Respect = respectRobots
}
