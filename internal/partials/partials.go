// Package partials reads the HTML fragments the backend serves for each UI
// mode. The markup itself is opaque; only its heading is used, as the title
// of the matching terminal screen.
package partials

import (
	"strings"

	"golang.org/x/net/html"
)

// Title returns the text of the first heading (h1-h3) in the fragment, or of
// its <title>, or "" when there is neither or the markup cannot be parsed.
func Title(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var title string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3":
				title = text(n)
				return true
			case "title":
				if title == "" {
					title = text(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

// text collects the text content of n, collapsing whitespace.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
