package extractor

import (
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor() *Extractor {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		raw  string
		want *float64
	}{
		{"$1,299.00", ptr(1299.00)},
		{"1299", ptr(1299.0)},
		{"USD 459.99", ptr(459.99)},
		{"", nil},
		{"Call for price", nil},
		{"$0.00", ptr(0.0)},
	}
	for _, tc := range cases {
		got := ParsePrice(tc.raw)
		if tc.want == nil {
			assert.Nil(t, got, "raw=%q", tc.raw)
		} else {
			require.NotNil(t, got, "raw=%q", tc.raw)
			assert.InDelta(t, *tc.want, *got, 0.0001)
		}
	}
}

func ptr(f float64) *float64 { return &f }

func TestExtractFromStructuredData(t *testing.T) {
	body := []byte(`<html><head>
        <script type="application/ld+json">
        {
            "@context": "https://schema.org",
            "@type": "Product",
            "name": "EcoFlow Delta 2",
            "description": "Portable power station with 1024Wh capacity.",
            "image": "https://cdn.example/delta2.jpg",
            "brand": {"@type": "Brand", "name": "EcoFlow"},
            "sku": "EF-D2-1024",
            "additionalProperty": [
                {"@type": "PropertyValue", "name": "Capacity", "value": "1024Wh"},
                {"@type": "PropertyValue", "name": "Weight", "value": "12kg"}
            ],
            "offers": {"@type": "Offer", "price": "999.00", "availability": "https://schema.org/InStock"}
        }
        </script>
    </head><body><h1>EcoFlow Delta 2</h1></body></html>`)

	product := testExtractor().Extract(mustURL(t, "https://shop.example/products/ecoflow-delta-2"), body)

	assert.Equal(t, "EcoFlow Delta 2", product.Name)
	require.NotNil(t, product.Price)
	assert.InDelta(t, 999.00, *product.Price, 0.0001)
	assert.Equal(t, "Portable power station with 1024Wh capacity.", product.Description)
	assert.Equal(t, "https://cdn.example/delta2.jpg", product.ImageURL)
	assert.Equal(t, "EcoFlow", product.Manufacturer)
	assert.Equal(t, "EF-D2-1024", product.ModelNumber)
	assert.Equal(t, "1024Wh", product.Specifications["Capacity"])
	assert.True(t, product.InStock)
	assert.Equal(t, "https://shop.example/products/ecoflow-delta-2", product.SourceURL)
}

func TestExtractCascadeFallbacks(t *testing.T) {
	body := []byte(`<html><head>
        <meta property="og:title" content="Renogy 200Ah Battery">
        <meta name="description" content="Deep cycle AGM battery.">
        <meta property="og:image" content="/img/renogy200.jpg">
    </head><body>
        <span class="product-price">Sale: $389.99</span>
    </body></html>`)

	product := testExtractor().Extract(mustURL(t, "https://shop.example/products/renogy-200ah"), body)

	assert.Equal(t, "Renogy 200Ah Battery", product.Name)
	require.NotNil(t, product.Price)
	assert.InDelta(t, 389.99, *product.Price, 0.0001)
	assert.Equal(t, "Deep cycle AGM battery.", product.Description)
	assert.Equal(t, "https://shop.example/img/renogy200.jpg", product.ImageURL, "relative image resolved against page URL")
}

func TestExtractFieldIndependence(t *testing.T) {
	// No price anywhere: name still extracted, price absent (not zero).
	body := []byte(`<html><body><h1>Mystery Widget</h1></body></html>`)
	product := testExtractor().Extract(mustURL(t, "https://shop.example/products/widget"), body)

	assert.Equal(t, "Mystery Widget", product.Name)
	assert.Nil(t, product.Price)
	assert.True(t, product.HasIdentity())
}

func TestExtractStockStatus(t *testing.T) {
	inStockBody := []byte(`<html><body><h1>Panel</h1><p>Ships in 2 days.</p></body></html>`)
	product := testExtractor().Extract(mustURL(t, "https://shop.example/products/p1"), inStockBody)
	assert.True(t, product.InStock, "absence of evidence is presence of stock")

	soldOutBody := []byte(`<html><body><h1>Panel</h1><button disabled>Sold Out</button></body></html>`)
	product = testExtractor().Extract(mustURL(t, "https://shop.example/products/p2"), soldOutBody)
	assert.False(t, product.InStock)

	ldOutBody := []byte(`<html><head><script type="application/ld+json">
        {"@type":"Product","name":"P","offers":{"availability":"https://schema.org/OutOfStock"}}
    </script></head><body><h1>P</h1></body></html>`)
	product = testExtractor().Extract(mustURL(t, "https://shop.example/products/p3"), ldOutBody)
	assert.False(t, product.InStock)
}

func TestExtractSpecTable(t *testing.T) {
	body := []byte(`<html><body><h1>Inverter</h1>
        <table class="product-specs-table">
            <tr><th>Continuous Power</th><td>3000W</td></tr>
            <tr><th>Surge Power</th><td>6000W</td></tr>
        </table>
    </body></html>`)
	product := testExtractor().Extract(mustURL(t, "https://shop.example/products/inv"), body)

	assert.Equal(t, "3000W", product.Specifications["Continuous Power"])
	assert.Equal(t, "6000W", product.Specifications["Surge Power"])
}

func TestExtractDataSheetLink(t *testing.T) {
	body := []byte(`<html><body><h1>Panel</h1>
        <a href="/docs/warranty.pdf">Warranty</a>
        <a href="/docs/bifacial-400w.pdf">Download Datasheet</a>
    </body></html>`)
	product := testExtractor().Extract(mustURL(t, "https://shop.example/products/panel"), body)
	assert.Equal(t, "https://shop.example/docs/bifacial-400w.pdf", product.DataSheetURL)
}

func TestHasIdentity(t *testing.T) {
	product := testExtractor().Extract(mustURL(t, "https://shop.example/products/empty"), []byte(`<html><body></body></html>`))
	assert.False(t, product.HasIdentity(), "no name, no price: rejected before persistence")
}

func TestPageText(t *testing.T) {
	body := []byte(`<html><head><style>.x{}</style><script>var a=1;</script></head>
        <body><p>Out   of
        stock</p></body></html>`)
	assert.Equal(t, "Out of stock", PageText(body))
}
