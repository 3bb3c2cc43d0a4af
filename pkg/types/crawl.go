package types

import (
	"net/http"
	"net/url"
	"time"
)

// CrawlTarget models a work item on the crawler frontier. Targets are
// immutable once enqueued.
type CrawlTarget struct {
	URL        *url.URL
	Depth      int
	Parent     *url.URL
	Render     bool
	EnqueuedAt time.Time
}

// Page represents fetched content.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	Body            []byte
	ContentType     string
	StatusCode      int
	Headers         http.Header
	FetchedAt       time.Time
	Rendered        bool
	ResponseLatency time.Duration
}

// FinalOrRequestURL returns the post-redirect URL when known, falling back
// to the requested one.
func (p *Page) FinalOrRequestURL() *url.URL {
	if p == nil {
		return nil
	}
	if p.FinalURL != nil {
		return p.FinalURL
	}
	return p.URL
}

// PageKind is the classifier's verdict for a fetched page.
type PageKind int

const (
	PageUnknown PageKind = iota
	PageProduct
	PageCategory
)

func (k PageKind) String() string {
	switch k {
	case PageProduct:
		return "product"
	case PageCategory:
		return "category"
	default:
		return "unknown"
	}
}

// ScrapedProduct holds the structured data pulled from a product page.
// Every field except SourceURL and InStock is best-effort and may be absent.
type ScrapedProduct struct {
	Name           string
	Price          *float64
	Description    string
	Manufacturer   string
	ModelNumber    string
	Specifications map[string]string
	ImageURL       string
	DataSheetURL   string
	SourceURL      string
	InStock        bool
}

// HasIdentity reports whether the product carries enough data to become a
// catalog record: a name, or a price plus its source URL.
func (p ScrapedProduct) HasIdentity() bool {
	if p.Name != "" {
		return true
	}
	return p.Price != nil && p.SourceURL != ""
}

// TerminationReason records why a crawl stopped.
type TerminationReason string

const (
	TerminationFrontierExhausted TerminationReason = "frontier_exhausted"
	TerminationPageBudget        TerminationReason = "page_budget"
	TerminationDeadline          TerminationReason = "deadline"
)

// CrawlReport aggregates the outcome of one crawl run.
type CrawlReport struct {
	Seed              string
	ProductLinks      []string
	PagesVisited      []string
	CatalogPagesFound int
	Products          []ScrapedProduct
	Termination       TerminationReason
	Started           time.Time
	Finished          time.Time
}

// EquipmentCategory is the closed set of catalog categories a product maps to.
type EquipmentCategory string

const (
	CategorySolarPanel       EquipmentCategory = "solar_panel"
	CategoryBattery          EquipmentCategory = "battery"
	CategoryInverter         EquipmentCategory = "inverter"
	CategoryChargeController EquipmentCategory = "charge_controller"
	CategoryMounting         EquipmentCategory = "mounting"
	CategoryWiring           EquipmentCategory = "wiring"
	CategoryElectrical       EquipmentCategory = "electrical"
	CategoryMonitoring       EquipmentCategory = "monitoring"
	CategoryAccessories      EquipmentCategory = "accessories"
	CategoryOther            EquipmentCategory = "other"
)
