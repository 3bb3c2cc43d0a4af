package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"solarcrawl/internal/config"
)

// Decision is the answer to "may I fetch this URL".
type Decision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// Policy evaluates robots.txt rules with a per-host TTL cache. Etiquette is
// secondary to crawl completion: any failure to fetch or parse robots.txt
// resolves to allow.
type Policy struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	respect   bool

	mu        sync.RWMutex
	cache     map[string]cacheEntry
	overrides map[string]struct{}

	now func() time.Time
}

type cacheEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// NewPolicy constructs a robots policy from configuration.
func NewPolicy(cfg config.RobotsConfig, client *http.Client) *Policy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	overrides := make(map[string]struct{}, len(cfg.Overrides))
	for _, host := range cfg.Overrides {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		overrides[host] = struct{}{}
	}

	return &Policy{
		client:    client,
		userAgent: cfg.UserAgent,
		ttl:       ttl,
		respect:   cfg.Respect,
		cache:     make(map[string]cacheEntry),
		overrides: overrides,
		now:       time.Now,
	}
}

// CanCrawl reports whether the target URL is permitted and any crawl-delay
// the host declares for our user agent. The caller must still honor the
// delay even when the decision fails open.
func (p *Policy) CanCrawl(ctx context.Context, target *url.URL) Decision {
	if target == nil || !target.IsAbs() {
		return Decision{Allowed: false}
	}

	if !p.respect {
		return Decision{Allowed: true}
	}

	host := strings.ToLower(target.Hostname())
	if _, ok := p.overrides[host]; ok {
		return Decision{Allowed: true}
	}

	rules, err := p.rules(ctx, target)
	if err != nil {
		// Fail open: a missing or broken robots.txt never blocks the crawl.
		return Decision{Allowed: true}
	}

	group := rules.FindGroup(p.userAgent)
	if group == nil {
		group = rules.FindGroup("*")
		if group == nil {
			return Decision{Allowed: true}
		}
	}
	return Decision{
		Allowed:    group.Test(robotsPath(target)),
		CrawlDelay: group.CrawlDelay,
	}
}

// robotsPath is the form robots.txt patterns match against: the path plus
// the query string, so directives like "Disallow: /search?" take effect.
func robotsPath(u *url.URL) string {
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

func (p *Policy) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)

	p.mu.RLock()
	entry, ok := p.cache[host]
	if ok && p.now().Sub(entry.fetched) < p.ttl {
		p.mu.RUnlock()
		return entry.rules, nil
	}
	p.mu.RUnlock()

	// A second worker hitting the same uncached host may race us to a
	// duplicate robots.txt fetch; that window is accepted over full
	// request coalescing.
	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("robots returned status %d", resp.StatusCode)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	p.mu.Lock()
	p.cache[host] = cacheEntry{fetched: p.now(), rules: data}
	p.mu.Unlock()

	return data, nil
}

// Purge evicts cached robots rules for a host.
func (p *Policy) Purge(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	p.mu.Lock()
	delete(p.cache, host)
	p.mu.Unlock()
}
