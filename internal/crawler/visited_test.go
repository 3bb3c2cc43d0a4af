package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestVisitedSetMarksOnce(t *testing.T) {
	s := NewVisitedSet()

	assert.True(t, s.MarkIfNew(parse(t, "https://shop.example/products/a")))
	assert.False(t, s.MarkIfNew(parse(t, "https://shop.example/products/a")))
	assert.Equal(t, 1, s.Len())
}

func TestVisitedSetNormalizesEquivalentURLs(t *testing.T) {
	s := NewVisitedSet()

	assert.True(t, s.MarkIfNew(parse(t, "https://Shop.Example/products/a")))
	assert.False(t, s.MarkIfNew(parse(t, "https://shop.example/products/a")), "host case is insignificant")
	assert.False(t, s.MarkIfNew(parse(t, "https://shop.example:443/products/a")), "default port is dropped")
	assert.False(t, s.MarkIfNew(parse(t, "https://shop.example/products/a#reviews")), "fragments are ignored")

	assert.True(t, s.MarkIfNew(parse(t, "https://shop.example/products/a?page=2")), "query is significant")
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "https://shop.example/", CanonicalKey(parse(t, "https://shop.example")))
	assert.Equal(t, "http://shop.example:8080/x", CanonicalKey(parse(t, "http://shop.example:8080/x")))
	assert.Equal(t, "", CanonicalKey(nil))
}
