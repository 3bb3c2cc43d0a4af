// Package classifier decides whether a fetched page is a product detail
// page, a category listing, or neither. The decision is an explicit ordered
// rule list evaluated first-match-wins, so the precedence between URL-shape
// checks and content heuristics stays auditable and testable per rule.
package classifier

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"solarcrawl/internal/extractor"
	"solarcrawl/pkg/types"
)

// reservedProductSlugs are listing names that storefront platforms serve
// under /products/ even though they are not product pages.
var reservedProductSlugs = map[string]struct{}{
	"new":          {},
	"featured":     {},
	"best-sellers": {},
	"clearance":    {},
}

// listingRoots are paths that are always category listings.
var listingRoots = map[string]struct{}{
	"/shop":        {},
	"/products":    {},
	"/catalog":     {},
	"/collections": {},
	"/categories":  {},
}

// listingPrefixes are one-slug path families that are category listings.
var listingPrefixes = []string{
	"/collections/",
	"/pages/",
	"/category/",
	"/categories/",
}

// categoryAnchorThreshold is the number of distinct product-card anchors
// above which a page reads as a listing.
const categoryAnchorThreshold = 3

// Classifier classifies fetched pages.
type Classifier struct {
	rules []rule
}

// rule is one step of the cascade. It returns the page kind and whether it
// matched; an unmatched rule passes evaluation to the next one.
type rule struct {
	name  string
	apply func(pageURL *url.URL, doc *goquery.Document) (types.PageKind, bool)
}

// New builds the default classification cascade. Order matters: the
// specific /products/{slug} shape must run before the generic listing-root
// check, otherwise every product detail URL under /products/ would be
// misread as a listing.
func New() *Classifier {
	return &Classifier{
		rules: []rule{
			{"product-path", productPathRule},
			{"listing-path", listingPathRule},
			{"structured-data", structuredDataRule},
			{"dom-heuristic", domHeuristicRule},
		},
	}
}

// Classify is a pure function of its inputs: the same URL and body always
// produce the same verdict.
func (c *Classifier) Classify(pageURL *url.URL, body []byte) types.PageKind {
	if pageURL == nil {
		return types.PageUnknown
	}

	// Parsed once; the URL-shape rules short-circuit before touching it.
	var doc *goquery.Document
	if len(body) > 0 {
		if parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			doc = parsed
		}
	}

	for _, r := range c.rules {
		if kind, matched := r.apply(pageURL, doc); matched {
			return kind
		}
	}
	return types.PageUnknown
}

// IsProductPath reports whether the URL has the /products/{slug} detail
// shape (excluding reserved listing slugs).
func IsProductPath(u *url.URL) bool {
	kind, matched := productPathRule(u, nil)
	return matched && kind == types.PageProduct
}

// IsListingPath reports whether the URL is one of the known listing shapes.
func IsListingPath(u *url.URL) bool {
	kind, matched := listingPathRule(u, nil)
	return matched && kind == types.PageCategory
}

func productPathRule(pageURL *url.URL, _ *goquery.Document) (types.PageKind, bool) {
	path := normalPath(pageURL)
	for _, prefix := range []string{"/products/", "/item/"} {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		slug := strings.TrimPrefix(path, prefix)
		if slug == "" || strings.Contains(slug, "/") {
			continue
		}
		if _, reserved := reservedProductSlugs[slug]; reserved {
			// Listing slug under /products/: defer to the later rules.
			continue
		}
		return types.PageProduct, true
	}
	return types.PageUnknown, false
}

func listingPathRule(pageURL *url.URL, _ *goquery.Document) (types.PageKind, bool) {
	path := normalPath(pageURL)
	if _, ok := listingRoots[path]; ok {
		return types.PageCategory, true
	}
	for _, prefix := range listingPrefixes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		slug := strings.TrimPrefix(path, prefix)
		if slug != "" && !strings.Contains(slug, "/") {
			return types.PageCategory, true
		}
	}
	if strings.HasPrefix(path, "/products/") {
		slug := strings.TrimPrefix(path, "/products/")
		if _, reserved := reservedProductSlugs[slug]; reserved {
			return types.PageCategory, true
		}
	}
	return types.PageUnknown, false
}

func structuredDataRule(_ *url.URL, doc *goquery.Document) (types.PageKind, bool) {
	if doc == nil {
		return types.PageUnknown, false
	}
	for _, t := range extractor.StructuredTypes(doc) {
		switch t {
		case "product":
			return types.PageProduct, true
		case "itemlist", "collectionpage":
			return types.PageCategory, true
		}
	}
	if og := strings.ToLower(metaContent(doc, `meta[property='og:type']`)); og != "" {
		if strings.Contains(og, "product") {
			return types.PageProduct, true
		}
	}
	return types.PageUnknown, false
}

func domHeuristicRule(_ *url.URL, doc *goquery.Document) (types.PageKind, bool) {
	if doc == nil {
		return types.PageUnknown, false
	}

	cards := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.Contains(href, "/products/") || strings.Contains(href, "/item/") {
			cards[href] = struct{}{}
		}
	})
	if len(cards) > categoryAnchorThreshold {
		return types.PageCategory, true
	}

	if doc.Find("h1").Length() == 1 && hasPriceElement(doc) {
		return types.PageProduct, true
	}
	return types.PageUnknown, false
}

func hasPriceElement(doc *goquery.Document) bool {
	for _, sel := range []string{"[itemprop='price']", ".price", ".product-price", ".money"} {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func normalPath(u *url.URL) string {
	if u == nil {
		return ""
	}
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return strings.ToLower(path)
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}
