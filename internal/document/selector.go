package document

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Selector builds a CSS locator for the first element in s. The path stops
// at the nearest ancestor with an id, or at <body>/<html>. Siblings sharing
// a tag name are disambiguated with :nth-of-type.
func Selector(s *goquery.Selection) string {
	n := s.Get(0)
	if n == nil || n.Type != html.ElementNode {
		return ""
	}

	var parts []string
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		part := n.Data
		if id := strings.TrimSpace(attr(n, "id")); id != "" && !strings.ContainsAny(id, " \t") {
			parts = append(parts, part+"#"+id)
			break
		}
		if n.Data == "body" || n.Data == "html" {
			parts = append(parts, part)
			break
		}
		if idx, total := typeIndex(n); total > 1 {
			part += fmt.Sprintf(":nth-of-type(%d)", idx)
		} else if cls := classes(n); cls != "" {
			part += cls
		}
		parts = append(parts, part)
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// typeIndex returns the 1-based position of n among element siblings with
// the same tag, and how many such siblings exist.
func typeIndex(n *html.Node) (int, int) {
	if n.Parent == nil {
		return 1, 1
	}
	idx, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			idx = total
		}
	}
	return idx, total
}

func classes(n *html.Node) string {
	fields := strings.Fields(attr(n, "class"))
	if len(fields) == 0 {
		return ""
	}
	return "." + strings.Join(fields, ".")
}
