// Package extractor pulls structured product data out of classified product
// pages. Every field is resolved through its own ordered cascade of
// strategies, first non-empty result wins, so a page with no parseable price
// still yields its name and description.
package extractor

import (
	"bytes"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"solarcrawl/pkg/types"
)

// Extractor converts a product page into a ScrapedProduct.
type Extractor struct {
	logger *slog.Logger
}

// New constructs an extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// pageContext carries the parsed artefacts every cascade reads from.
type pageContext struct {
	base   *url.URL
	doc    *goquery.Document
	ld     map[string]any
	hasLD  bool
	text   string
	textLC string
}

// fieldRule is one step of a cascade: a human-readable strategy name plus
// the lookup it performs.
type fieldRule struct {
	name string
	get  func(pc *pageContext) string
}

var nameRules = []fieldRule{
	{"h1", func(pc *pageContext) string {
		return strings.TrimSpace(pc.doc.Find("h1").First().Text())
	}},
	{"og:title", func(pc *pageContext) string {
		return metaContent(pc.doc, `meta[property='og:title']`)
	}},
	{"schema-name", func(pc *pageContext) string {
		if !pc.hasLD {
			return ""
		}
		return ldString(pc.ld, "name")
	}},
}

var priceRules = []fieldRule{
	{"schema-offers", func(pc *pageContext) string {
		if !pc.hasLD {
			return ""
		}
		return ldOfferPrice(pc.ld)
	}},
	{"itemprop", func(pc *pageContext) string {
		sel := pc.doc.Find(`[itemprop='price']`).First()
		if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
			return content
		}
		return strings.TrimSpace(sel.Text())
	}},
	{"price-class", func(pc *pageContext) string {
		for _, css := range []string{".price", ".product-price", ".money"} {
			if text := strings.TrimSpace(pc.doc.Find(css).First().Text()); text != "" {
				return text
			}
		}
		return ""
	}},
	{"og:price", func(pc *pageContext) string {
		return metaContent(pc.doc, `meta[property='og:price:amount']`)
	}},
}

var descriptionRules = []fieldRule{
	{"meta-description", func(pc *pageContext) string {
		return metaContent(pc.doc, `meta[name='description']`)
	}},
	{"itemprop", func(pc *pageContext) string {
		return strings.TrimSpace(pc.doc.Find(`[itemprop='description']`).First().Text())
	}},
	{"schema-description", func(pc *pageContext) string {
		if !pc.hasLD {
			return ""
		}
		return ldString(pc.ld, "description")
	}},
}

var imageRules = []fieldRule{
	{"og:image", func(pc *pageContext) string {
		return metaContent(pc.doc, `meta[property='og:image']`)
	}},
	{"itemprop", func(pc *pageContext) string {
		src, _ := pc.doc.Find(`[itemprop='image']`).First().Attr("src")
		return strings.TrimSpace(src)
	}},
	{"schema-image", func(pc *pageContext) string {
		if !pc.hasLD {
			return ""
		}
		return ldString(pc.ld, "image")
	}},
}

var manufacturerRules = []fieldRule{
	{"schema-brand", func(pc *pageContext) string {
		if !pc.hasLD {
			return ""
		}
		return ldString(pc.ld, "brand")
	}},
	{"itemprop", func(pc *pageContext) string {
		return strings.TrimSpace(pc.doc.Find(`[itemprop='brand']`).First().Text())
	}},
}

var modelRules = []fieldRule{
	{"schema-sku", func(pc *pageContext) string {
		if !pc.hasLD {
			return ""
		}
		if sku := ldString(pc.ld, "sku"); sku != "" {
			return sku
		}
		return ldString(pc.ld, "mpn")
	}},
	{"itemprop", func(pc *pageContext) string {
		return strings.TrimSpace(pc.doc.Find(`[itemprop='sku']`).First().Text())
	}},
}

var outOfStockPhrases = []string{
	"out of stock",
	"sold out",
	"currently unavailable",
}

// Extract builds a ScrapedProduct from the page body. Extraction never
// fails: missing fields stay empty and the caller decides whether the
// record carries enough identity to keep.
func (e *Extractor) Extract(pageURL *url.URL, body []byte) types.ScrapedProduct {
	product := types.ScrapedProduct{
		SourceURL: pageURL.String(),
		InStock:   true,
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Debug("product page parse failed", "url", product.SourceURL, "error", err)
		return product
	}

	pc := &pageContext{base: pageURL, doc: doc}
	pc.ld, pc.hasLD = ProductNode(doc)
	pc.text = PageText(body)
	pc.textLC = strings.ToLower(pc.text)

	product.Name = firstMatch(pc, nameRules)
	product.Price = ParsePrice(firstMatch(pc, priceRules))
	product.Description = firstMatch(pc, descriptionRules)
	product.ImageURL = resolveRef(pageURL, firstMatch(pc, imageRules))
	product.Manufacturer = firstMatch(pc, manufacturerRules)
	product.ModelNumber = firstMatch(pc, modelRules)
	product.Specifications = e.specifications(pc)
	product.DataSheetURL = dataSheetLink(pc)
	product.InStock = inStock(pc)

	return product
}

func firstMatch(pc *pageContext, rules []fieldRule) string {
	for _, rule := range rules {
		if value := rule.get(pc); value != "" {
			return value
		}
	}
	return ""
}

var priceCleaner = regexp.MustCompile(`[^0-9.]`)

// ParsePrice cleans a raw price string and parses it as a decimal amount.
// Anything that fails to parse is absent, never zero: "$1,299.00" is
// 1299.00, "" and "Call for price" are nil.
func ParsePrice(raw string) *float64 {
	cleaned := priceCleaner.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// inStock defaults to true: absence of evidence is presence of stock. It
// flips only on an explicit out-of-stock phrase in the page text or a
// schema.org OutOfStock availability.
func inStock(pc *pageContext) bool {
	if pc.hasLD {
		avail := ldAvailability(pc.ld)
		if strings.Contains(avail, "outofstock") || strings.Contains(avail, "soldout") {
			return false
		}
		if strings.Contains(avail, "instock") {
			return true
		}
	}
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(pc.textLC, phrase) {
			return false
		}
	}
	return true
}

// specifications prefers schema.org additionalProperty pairs and falls back
// to harvesting rows from a spec table.
func (e *Extractor) specifications(pc *pageContext) map[string]string {
	if pc.hasLD {
		if props := ldProperties(pc.ld); len(props) > 0 {
			return props
		}
	}

	specs := make(map[string]string)
	pc.doc.Find(`table[class*='spec'] tr, .specifications tr, .product-specs tr`).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		key := strings.TrimSpace(cells.Eq(0).Text())
		value := strings.TrimSpace(cells.Eq(1).Text())
		if key != "" && value != "" {
			specs[key] = value
		}
	})
	if len(specs) == 0 {
		return nil
	}
	return specs
}

// dataSheetLink finds a PDF link labelled as a datasheet or spec sheet.
func dataSheetLink(pc *pageContext) string {
	var found string
	pc.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.Contains(strings.ToLower(href), ".pdf") {
			return true
		}
		label := strings.ToLower(s.Text() + " " + href)
		if strings.Contains(label, "datasheet") || strings.Contains(label, "data sheet") ||
			strings.Contains(label, "spec sheet") || strings.Contains(label, "specification") {
			found = resolveRef(pc.base, href)
			return false
		}
		return true
	})
	return found
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func resolveRef(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	if base == nil {
		return ref
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return resolved.String()
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
