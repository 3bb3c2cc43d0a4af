package extractor

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredTypes returns every schema.org @type declared in the page's
// JSON-LD blocks, lower-cased. Malformed blocks are skipped.
func StructuredTypes(doc *goquery.Document) []string {
	var out []string
	for _, node := range jsonLDNodes(doc) {
		if t := nodeTypes(node); len(t) > 0 {
			out = append(out, t...)
		}
	}
	return out
}

// ProductNode returns the first JSON-LD node whose @type is Product.
func ProductNode(doc *goquery.Document) (map[string]any, bool) {
	for _, node := range jsonLDNodes(doc) {
		for _, t := range nodeTypes(node) {
			if t == "product" {
				return node, true
			}
		}
	}
	return nil, false
}

// jsonLDNodes decodes every ld+json script into flat object nodes,
// unwrapping top-level arrays and @graph containers.
func jsonLDNodes(doc *goquery.Document) []map[string]any {
	var nodes []map[string]any
	doc.Find(`script[type='application/ld+json']`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return
		}
		nodes = append(nodes, flattenLD(decoded)...)
	})
	return nodes
}

func flattenLD(v any) []map[string]any {
	switch node := v.(type) {
	case map[string]any:
		out := []map[string]any{node}
		if graph, ok := node["@graph"]; ok {
			out = append(out, flattenLD(graph)...)
		}
		return out
	case []any:
		var out []map[string]any
		for _, item := range node {
			out = append(out, flattenLD(item)...)
		}
		return out
	default:
		return nil
	}
}

// nodeTypes normalises the @type field, which may be a string or a list.
func nodeTypes(node map[string]any) []string {
	switch t := node["@type"].(type) {
	case string:
		return []string{strings.ToLower(strings.TrimSpace(t))}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, strings.ToLower(strings.TrimSpace(s)))
			}
		}
		return out
	default:
		return nil
	}
}

// ldString reads a string-valued field, tolerating schema.org's habit of
// wrapping values in one-element arrays or {name: ...} objects.
func ldString(node map[string]any, key string) string {
	return anyToString(node[key])
}

func anyToString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		if len(val) > 0 {
			return anyToString(val[0])
		}
	case map[string]any:
		if name, ok := val["name"]; ok {
			return anyToString(name)
		}
		if u, ok := val["url"]; ok {
			return anyToString(u)
		}
	}
	return ""
}

// ldOfferPrice digs through Product.offers, which may be a single Offer,
// an array of offers, or an AggregateOffer with lowPrice.
func ldOfferPrice(node map[string]any) string {
	offers, ok := node["offers"]
	if !ok {
		return ""
	}
	for _, offer := range flattenLD(offers) {
		for _, key := range []string{"price", "lowPrice"} {
			switch p := offer[key].(type) {
			case string:
				if strings.TrimSpace(p) != "" {
					return strings.TrimSpace(p)
				}
			case float64:
				return trimFloat(p)
			}
		}
	}
	return ""
}

// ldAvailability reports the first offers.availability value, lower-cased.
func ldAvailability(node map[string]any) string {
	offers, ok := node["offers"]
	if !ok {
		return ""
	}
	for _, offer := range flattenLD(offers) {
		if avail := anyToString(offer["availability"]); avail != "" {
			return strings.ToLower(avail)
		}
	}
	return ""
}

// ldProperties harvests additionalProperty name/value pairs.
func ldProperties(node map[string]any) map[string]string {
	props, ok := node["additionalProperty"]
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for _, prop := range flattenLD(props) {
		name := anyToString(prop["name"])
		value := anyToString(prop["value"])
		if name != "" && value != "" {
			out[name] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
