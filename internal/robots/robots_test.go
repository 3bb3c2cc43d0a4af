package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcrawl/internal/config"
)

func policyFor(t *testing.T, srv *httptest.Server, respect bool) *Policy {
	t.Helper()
	return NewPolicy(config.RobotsConfig{
		Respect:   respect,
		UserAgent: "solarcrawl-bot/1.0",
		CacheTTL:  config.DurationFrom(24 * time.Hour),
	}, srv.Client())
}

func serveRobots(t *testing.T, body string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func targetURL(t *testing.T, srv *httptest.Server, path string) *url.URL {
	t.Helper()
	u, err := url.Parse(srv.URL + path)
	require.NoError(t, err)
	return u
}

func TestDisallowBlocks(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /admin\n", nil)
	p := policyFor(t, srv, true)

	decision := p.CanCrawl(context.Background(), targetURL(t, srv, "/admin/settings"))
	assert.False(t, decision.Allowed)

	decision = p.CanCrawl(context.Background(), targetURL(t, srv, "/products/foo"))
	assert.True(t, decision.Allowed)
}

func TestAllowOverridesBroaderDisallow(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /\nAllow: /products/\n", nil)
	p := policyFor(t, srv, true)

	decision := p.CanCrawl(context.Background(), targetURL(t, srv, "/products/foo"))
	assert.True(t, decision.Allowed, "longest-match Allow wins over Disallow: /")

	decision = p.CanCrawl(context.Background(), targetURL(t, srv, "/cart"))
	assert.False(t, decision.Allowed)
}

func TestDisallowMatchesQueryString(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /search?\n", nil)
	p := policyFor(t, srv, true)

	decision := p.CanCrawl(context.Background(), targetURL(t, srv, "/search?q=panels"))
	assert.False(t, decision.Allowed, "query-string directives apply")

	decision = p.CanCrawl(context.Background(), targetURL(t, srv, "/search"))
	assert.True(t, decision.Allowed, "bare path does not match the ? pattern")
}

func TestCrawlDelaySurfaced(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nCrawl-delay: 2\nDisallow: /private\n", nil)
	p := policyFor(t, srv, true)

	decision := p.CanCrawl(context.Background(), targetURL(t, srv, "/products/foo"))
	assert.True(t, decision.Allowed)
	assert.Equal(t, 2*time.Second, decision.CrawlDelay)
}

func TestFailOpenOnMissingRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	p := policyFor(t, srv, true)

	decision := p.CanCrawl(context.Background(), targetURL(t, srv, "/anything"))
	assert.True(t, decision.Allowed, "robots errors never block the crawl")
}

func TestBypassWhenNotRespected(t *testing.T) {
	srv := serveRobots(t, "User-agent: *\nDisallow: /\n", nil)
	p := policyFor(t, srv, false)

	decision := p.CanCrawl(context.Background(), targetURL(t, srv, "/admin"))
	assert.True(t, decision.Allowed)
}

func TestCacheHonorsTTL(t *testing.T) {
	var hits atomic.Int64
	srv := serveRobots(t, "User-agent: *\nDisallow: /admin\n", &hits)
	p := policyFor(t, srv, true)

	now := time.Now()
	p.now = func() time.Time { return now }

	p.CanCrawl(context.Background(), targetURL(t, srv, "/a"))
	p.CanCrawl(context.Background(), targetURL(t, srv, "/b"))
	assert.Equal(t, int64(1), hits.Load(), "second query served from cache")

	// Advance past the 24h TTL: the next query refetches.
	now = now.Add(25 * time.Hour)
	p.CanCrawl(context.Background(), targetURL(t, srv, "/c"))
	assert.Equal(t, int64(2), hits.Load())
}

func TestPurgeEvictsHost(t *testing.T) {
	var hits atomic.Int64
	srv := serveRobots(t, "User-agent: *\nDisallow:\n", &hits)
	p := policyFor(t, srv, true)

	target := targetURL(t, srv, "/x")
	p.CanCrawl(context.Background(), target)
	p.Purge(target.Host)
	p.CanCrawl(context.Background(), target)
	assert.Equal(t, int64(2), hits.Load())
}
