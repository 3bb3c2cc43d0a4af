// Package crawler implements the frontier-bounded catalog crawl: it
// discovers a distributor's product pages from a single seed URL under
// depth, page, and politeness constraints.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"solarcrawl/internal/category"
	"solarcrawl/internal/classifier"
	"solarcrawl/internal/config"
	"solarcrawl/internal/extractor"
	"solarcrawl/internal/fetcher"
	"solarcrawl/internal/robots"
	"solarcrawl/internal/storage"
	"solarcrawl/pkg/types"
)

// ProductSink receives extracted products and the final run report.
type ProductSink interface {
	SaveProduct(ctx context.Context, product types.ScrapedProduct, cat types.EquipmentCategory) error
	SaveRun(ctx context.Context, report *types.CrawlReport) error
}

// Engine orchestrates robots checks, pacing, fetching, classification, and
// extraction for one crawl run. Per-URL failures are skipped, never fatal;
// only setup errors abort a crawl.
type Engine struct {
	cfg        config.Config
	fetcher    fetcher.Fetcher
	robots     *robots.Policy
	classifier *classifier.Classifier
	extractor  *extractor.Extractor
	links      *LinkExtractor
	sink       ProductSink

	pacer   *Pacer
	visited *VisitedSet
	logger  *slog.Logger

	maxPages int64
	enqueued atomic.Int64

	deadline    time.Time
	deadlineHit atomic.Bool
	budgetHit   atomic.Bool

	mu           sync.Mutex
	pagesVisited []string
	productLinks []string
	productSeen  map[string]struct{}
	products     []types.ScrapedProduct
	catalogPages int

	pool *workerPool
	wg   sync.WaitGroup

	closers   []func() error
	closeOnce sync.Once
}

// NewEngine builds a crawler engine from configuration.
func NewEngine(cfg config.Config) (*Engine, error) {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Crawl.UserAgent,
		Headers:      cfg.Crawl.Headers,
		Timeout:      cfg.Crawl.RequestTimeout.Duration,
		MaxBodyBytes: cfg.Crawl.MaxBodyBytes,
		ProxyURL:     cfg.Crawl.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("http fetcher: %w", err)
	}

	var renderer fetcher.Renderer
	if cfg.Rendering.Enabled {
		switch strings.ToLower(cfg.Rendering.Engine) {
		case "chromedp", "chrome":
			renderer = fetcher.NewChromedpRenderer(fetcher.RenderOptions{
				Timeout:            cfg.Rendering.Timeout.Duration,
				WaitForSelector:    cfg.Rendering.WaitForSelector,
				UserAgent:          cfg.Crawl.UserAgent,
				MaxBodyBytes:       cfg.Crawl.MaxBodyBytes,
				DisableHeadless:    cfg.Rendering.DisableHeadless,
				ConcurrentSessions: cfg.Rendering.ConcurrentSessions,
			})
		case "none":
			// Explicit opt-out even if the enabled flag is toggled.
		default:
			return nil, fmt.Errorf("unsupported rendering engine %q", cfg.Rendering.Engine)
		}
	}

	backoff := fetcher.BackoffPolicy{
		Base:       cfg.Crawl.RetryBase.Duration,
		Cap:        cfg.Crawl.RetryCap.Duration,
		Multiplier: 2.5,
		MaxRetries: cfg.Crawl.MaxRetries,
	}
	if backoff.Base <= 0 || backoff.Cap <= 0 {
		def := fetcher.DefaultBackoff()
		if backoff.Base <= 0 {
			backoff.Base = def.Base
		}
		if backoff.Cap <= 0 {
			backoff.Cap = def.Cap
		}
	}
	retrying := fetcher.NewRetrier(fetcher.NewComposite(httpFetcher, renderer), backoff, logger)

	var sink ProductSink
	var closers []func() error
	if cfg.DB.Driver != "" && cfg.DB.DSN != "" {
		store, err := storage.NewSQLStore(cfg.DB)
		if err != nil {
			return nil, err
		}
		sink = storage.NewPipeline(store, cfg.Catalog.DistributorID, logger)
		closers = append(closers, store.Close)
	}

	return &Engine{
		cfg:         cfg,
		fetcher:     retrying,
		robots:      robots.NewPolicy(cfg.Robots, httpFetcher.Client()),
		classifier:  classifier.New(),
		extractor:   extractor.New(logger),
		links:       NewLinkExtractor(cfg.Crawl.MaxLinksPage),
		sink:        sink,
		pacer:       NewPacer(cfg.Crawl.RateLimit.Duration),
		visited:     NewVisitedSet(),
		logger:      logger,
		maxPages:    int64(cfg.Crawl.MaxPages),
		productSeen: make(map[string]struct{}),
		closers:     closers,
	}, nil
}

// Run executes the crawl until the frontier drains, the page budget is
// spent, or the deadline passes. It always returns a report on a started
// crawl; zero products is a valid outcome, not an error.
func (e *Engine) Run(ctx context.Context) (*types.CrawlReport, error) {
	seed, err := parseSeed(e.cfg.Crawl.Seed)
	if err != nil {
		return nil, err
	}

	// Workers enqueue from inside jobs, so the queue must hold every target
	// the budget can admit or a full queue would deadlock the pool.
	queueSize := e.cfg.Crawl.QueueSize
	if queueSize < e.cfg.Crawl.MaxPages {
		queueSize = e.cfg.Crawl.MaxPages
	}
	pool, err := newWorkerPool(ctx, e.cfg.Crawl.Concurrency, queueSize)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	defer pool.close()
	defer e.Close()

	started := time.Now()
	if d := e.cfg.Crawl.Deadline.Duration; d > 0 {
		e.deadline = started.Add(d)
	}

	e.enqueue(ctx, types.CrawlTarget{
		URL:    seed,
		Depth:  0,
		Render: e.cfg.Rendering.Enabled,
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		e.logger.Warn("context cancelled, shutting down")
		<-done
		return e.buildReport(seed, started), ctx.Err()
	case <-done:
	}

	report := e.buildReport(seed, started)
	if e.sink != nil {
		if err := e.sink.SaveRun(context.WithoutCancel(ctx), report); err != nil {
			e.logger.Error("save run failed", "error", err)
		}
	}
	return report, nil
}

// Close releases resources owned by the engine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		for _, closer := range e.closers {
			if cerr := closer(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}

func (e *Engine) enqueue(ctx context.Context, target types.CrawlTarget) {
	if target.URL == nil {
		return
	}
	if target.Depth > e.cfg.Crawl.MaxDepth {
		return
	}
	if e.pastDeadline() {
		return
	}
	if !e.visited.MarkIfNew(target.URL) {
		return
	}
	if e.enqueued.Add(1) > e.maxPages {
		e.enqueued.Add(-1)
		e.budgetHit.Store(true)
		return
	}

	target.EnqueuedAt = time.Now()
	e.wg.Add(1)
	if err := e.pool.submit(ctx, func(workerCtx context.Context) {
		defer e.wg.Done()
		e.handleTarget(workerCtx, target)
	}); err != nil {
		e.wg.Done()
		e.enqueued.Add(-1)
		e.logger.Error("enqueue failed", "url", target.URL.String(), "error", err)
	}
}

func (e *Engine) handleTarget(ctx context.Context, target types.CrawlTarget) {
	if ctx.Err() != nil {
		return
	}
	// Deadline drains the frontier: queued targets stop here while
	// in-flight fetches run to completion.
	if e.pastDeadline() {
		return
	}

	targetURL := target.URL.String()

	decision := e.robots.CanCrawl(ctx, target.URL)
	if !decision.Allowed {
		e.logger.Debug("blocked by robots", "url", targetURL)
		e.recordVisit(target.URL)
		return
	}

	if err := e.pacer.Wait(ctx, target.URL.Hostname(), decision.CrawlDelay); err != nil {
		e.logger.Warn("pacing interrupted", "url", targetURL, "error", err)
		return
	}

	page, err := e.fetcher.Fetch(ctx, target)
	if err != nil {
		// A single page failure never aborts the crawl.
		e.logger.Warn("fetch failed, skipping", "url", targetURL, "error", err)
		e.recordVisit(target.URL)
		return
	}
	e.recordVisit(target.URL)

	kind := e.classifier.Classify(page.FinalOrRequestURL(), page.Body)
	e.logger.Debug("classified", "url", targetURL, "kind", kind.String(), "depth", target.Depth)

	switch kind {
	case types.PageCategory:
		e.expandCategory(ctx, target, page)
	case types.PageProduct:
		e.collectProduct(ctx, target, page)
	default:
		// Unknown pages are recorded as visited but expand nothing.
	}
}

func (e *Engine) expandCategory(ctx context.Context, target types.CrawlTarget, page *types.Page) {
	e.mu.Lock()
	e.catalogPages++
	e.mu.Unlock()

	for _, link := range e.links.CatalogLinks(page) {
		e.enqueue(ctx, types.CrawlTarget{
			URL:    link,
			Depth:  target.Depth + 1,
			Parent: target.URL,
			Render: target.Render,
		})
	}
}

func (e *Engine) collectProduct(ctx context.Context, target types.CrawlTarget, page *types.Page) {
	normalized := CanonicalKey(page.FinalOrRequestURL())

	e.mu.Lock()
	_, dup := e.productSeen[normalized]
	if !dup {
		e.productSeen[normalized] = struct{}{}
		e.productLinks = append(e.productLinks, normalized)
	}
	e.mu.Unlock()
	if dup {
		return
	}

	product := e.extractor.Extract(page.FinalOrRequestURL(), page.Body)
	if !product.HasIdentity() {
		// A page that looked like a product but yielded no usable
		// identity must not become a catalog record.
		e.logger.Debug("product rejected: no identity", "url", normalized)
		return
	}

	cat := category.Detect(product)
	e.mu.Lock()
	e.products = append(e.products, product)
	e.mu.Unlock()

	if e.sink != nil {
		if err := e.sink.SaveProduct(ctx, product, cat); err != nil {
			e.logger.Error("persist product failed", "url", normalized, "error", err)
		}
	}
}

// recordVisit appends in fetch completion order, which is what tests and
// operators observe; enqueue order is not meaningful.
func (e *Engine) recordVisit(u *url.URL) {
	e.mu.Lock()
	e.pagesVisited = append(e.pagesVisited, CanonicalKey(u))
	e.mu.Unlock()
}

func (e *Engine) pastDeadline() bool {
	if e.deadline.IsZero() {
		return false
	}
	if time.Now().After(e.deadline) {
		e.deadlineHit.Store(true)
		return true
	}
	return false
}

func (e *Engine) buildReport(seed *url.URL, started time.Time) *types.CrawlReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	termination := types.TerminationFrontierExhausted
	if e.budgetHit.Load() {
		termination = types.TerminationPageBudget
	}
	if e.deadlineHit.Load() {
		termination = types.TerminationDeadline
	}

	return &types.CrawlReport{
		Seed:              seed.String(),
		ProductLinks:      append([]string(nil), e.productLinks...),
		PagesVisited:      append([]string(nil), e.pagesVisited...),
		CatalogPagesFound: e.catalogPages,
		Products:          append([]types.ScrapedProduct(nil), e.products...),
		Termination:       termination,
		Started:           started,
		Finished:          time.Now(),
	}
}

func parseSeed(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", raw, err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("seed %q: unsupported scheme %q", raw, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("seed %q missing host", raw)
	}
	return parsed, nil
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}
