package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxCrawlDelay clamps robots.txt crawl-delay so a hostile or typoed
// directive cannot stall the run.
const maxCrawlDelay = 10 * time.Second

// Pacer serializes request dispatch for the whole crawl run. One shared
// gate paces every worker, which caps the outbound request rate regardless
// of concurrency; response processing still overlaps. On top of that it
// honors per-host robots crawl-delay hints.
type Pacer struct {
	limiter *rate.Limiter

	mu   sync.Mutex
	last map[string]time.Time
}

// NewPacer creates a pacer enforcing a minimum interval between any two
// request dispatches. A zero interval disables the shared gate but
// crawl-delay hints are still honored.
func NewPacer(interval time.Duration) *Pacer {
	p := &Pacer{last: make(map[string]time.Time)}
	if interval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return p
}

// Wait blocks until both the shared gate and the host's crawl-delay allow
// the next dispatch. It returns early only on context cancellation.
func (p *Pacer) Wait(ctx context.Context, host string, crawlDelay time.Duration) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			// rate.Limiter.Wait reports a wait that cannot finish before
			// the context deadline as a plain string error. Callers match
			// on the context sentinels, so translate.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if _, hasDeadline := ctx.Deadline(); hasDeadline {
				return context.DeadlineExceeded
			}
			return err
		}
	}

	if crawlDelay <= 0 || host == "" {
		return nil
	}
	if crawlDelay > maxCrawlDelay {
		crawlDelay = maxCrawlDelay
	}
	host = strings.ToLower(host)

	p.mu.Lock()
	var sleep time.Duration
	if last, ok := p.last[host]; ok {
		if rest := last.Add(crawlDelay).Sub(time.Now()); rest > 0 {
			sleep = rest
		}
	}
	p.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	p.last[host] = time.Now()
	p.mu.Unlock()
	return nil
}
