package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcrawl/pkg/types"
)

func pageWith(t *testing.T, pageURL, body string) *types.Page {
	t.Helper()
	return &types.Page{URL: parse(t, pageURL), Body: []byte(body)}
}

func TestCatalogLinksKeepsOnlyCatalogShapes(t *testing.T) {
	page := pageWith(t, "https://shop.example/collections/batteries", `<html><body>
        <a href="/products/eg4-ll-v2">EG4 Battery</a>
        <a href="/collections/batteries?page=2">Next</a>
        <a href="/cart">Cart</a>
        <a href="/account/login">Login</a>
        <a href="https://facebook.com/share">Share</a>
        <a href="mailto:sales@shop.example">Email</a>
        <a href="javascript:void(0)">Menu</a>
    </body></html>`)

	links := NewLinkExtractor(0).CatalogLinks(page)

	var got []string
	for _, l := range links {
		got = append(got, l.String())
	}
	assert.ElementsMatch(t, []string{
		"https://shop.example/products/eg4-ll-v2",
		"https://shop.example/collections/batteries?page=2",
	}, got)
}

func TestCatalogLinksStripsNoise(t *testing.T) {
	page := pageWith(t, "https://shop.example/collections/panels", `<html><body>
        <a href="/products/p1?utm_source=feed&utm_campaign=x">P1</a>
        <a href="/products/p2#description">P2</a>
        <a href="/products/p2">P2 again</a>
    </body></html>`)

	links := NewLinkExtractor(0).CatalogLinks(page)
	require.Len(t, links, 2)
	assert.Equal(t, "https://shop.example/products/p1", links[0].String())
	assert.Equal(t, "https://shop.example/products/p2", links[1].String())
}

func TestCatalogLinksSameOriginOnly(t *testing.T) {
	page := pageWith(t, "https://shop.example/collections/all", `<html><body>
        <a href="https://othershop.example/products/p1">Elsewhere</a>
        <a href="//cdn.example/products/p2">CDN</a>
        <a href="/products/p3">Here</a>
    </body></html>`)

	links := NewLinkExtractor(0).CatalogLinks(page)
	require.Len(t, links, 1)
	assert.Equal(t, "https://shop.example/products/p3", links[0].String())
}

func TestCatalogLinksBounded(t *testing.T) {
	body := "<html><body>"
	for i := 0; i < 50; i++ {
		body += `<a href="/products/p` + string(rune('a'+i%26)) + string(rune('a'+i/26)) + `">x</a>`
	}
	body += "</body></html>"

	links := NewLinkExtractor(10).CatalogLinks(pageWith(t, "https://shop.example/products", body))
	assert.LessOrEqual(t, len(links), 10)
}
