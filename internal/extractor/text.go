package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

var skippedTextTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"svg":      {},
}

// PageText renders the visible text of an HTML document with whitespace
// collapsed to single spaces. Script, style, and template content is
// skipped. Used for stock-status matching, where markup position carries no
// meaning.
func PageText(body []byte) string {
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	var b strings.Builder
	appendVisibleText(root, &b)
	return strings.TrimSpace(b.String())
}

func appendVisibleText(node *html.Node, b *strings.Builder) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.ElementNode:
		if _, skip := skippedTextTags[strings.ToLower(node.Data)]; skip {
			return
		}
	case html.TextNode:
		text := normalizeWhitespace(node.Data)
		if text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		appendVisibleText(child, b)
	}
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
