package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"solarcrawl/internal/classifier"
	"solarcrawl/pkg/types"
)

// trackingParams are query keys stripped during link normalization; they
// fragment the visited set without changing the page served.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"ref":          {},
	"variant":      {},
}

// LinkExtractor discovers frontier candidates on category pages.
type LinkExtractor struct {
	maxLinks int
}

// NewLinkExtractor bounds the number of links harvested per page.
func NewLinkExtractor(maxLinks int) *LinkExtractor {
	if maxLinks <= 0 {
		maxLinks = 200
	}
	return &LinkExtractor{maxLinks: maxLinks}
}

// CatalogLinks returns the page's same-origin links that look like product
// or category URLs, normalized and de-duplicated. Only these shapes expand
// the frontier; nav, account, and cart links never enter it.
func (l *LinkExtractor) CatalogLinks(page *types.Page) []*url.URL {
	if page == nil || len(page.Body) == 0 {
		return nil
	}

	base := page.FinalURL
	if base == nil {
		base = page.URL
	}
	if base == nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	links := make([]*url.URL, 0, l.maxLinks)

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return true
		}

		u, err := base.Parse(href)
		if err != nil {
			return true
		}
		normalizeLink(u)

		if !sameOrigin(base, u) {
			return true
		}
		if !classifier.IsProductPath(u) && !classifier.IsListingPath(u) {
			return true
		}

		key := CanonicalKey(u)
		if _, exists := seen[key]; exists {
			return true
		}
		seen[key] = struct{}{}
		links = append(links, u)
		return len(links) < l.maxLinks
	})

	return links
}

// normalizeLink strips the fragment and tracking query parameters in place.
func normalizeLink(u *url.URL) {
	u.Fragment = ""
	if u.RawQuery == "" {
		return
	}
	values := u.Query()
	for key := range values {
		if _, drop := trackingParams[strings.ToLower(key)]; drop {
			values.Del(key)
		}
	}
	u.RawQuery = values.Encode()
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	scheme := strings.ToLower(b.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
