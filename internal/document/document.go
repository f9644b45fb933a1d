// Package document parses fetched HTML into a queryable tree.
package document

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// snippetLimit is the maximum length of an element snippet attached to an issue.
const snippetLimit = 200

// Document is a parsed page: the node tree, a CSS-selector query interface
// over it, and the raw markup it came from.
type Document struct {
	doc *goquery.Document
	raw string
	ids map[string]int
}

// Parse converts raw to UTF-8 (using contentType, a <meta charset>, or
// sniffing) and builds a best-effort tree. Malformed markup never fails; the
// only errors come from decoding the input.
func Parse(raw, contentType string) (*Document, error) {
	r, err := charset.NewReader(strings.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{
		doc: goquery.NewDocumentFromNode(root),
		raw: raw,
		ids: make(map[string]int),
	}
	d.doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id := strings.TrimSpace(s.AttrOr("id", "")); id != "" {
			d.ids[id]++
		}
	})
	return d, nil
}

// Find returns every element matching a CSS selector.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Root is the selection wrapping the document node.
func (d *Document) Root() *goquery.Selection {
	return d.doc.Selection
}

// Raw is the markup as fetched, before decoding.
func (d *Document) Raw() string {
	return d.raw
}

// HasID reports whether an element with the given id exists.
func (d *Document) HasID(id string) bool {
	return d.ids[id] > 0
}

// DuplicateIDs returns ids used by more than one element, in document order.
func (d *Document) DuplicateIDs() []string {
	var dups []string
	seen := make(map[string]bool)
	d.doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr("id", ""))
		if id != "" && d.ids[id] > 1 && !seen[id] {
			seen[id] = true
			dups = append(dups, id)
		}
	})
	return dups
}

// TextByID returns the collapsed text of the element with the given id.
func (d *Document) TextByID(id string) string {
	var text string
	d.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.AttrOr("id", "") == id {
			text = TextContent(s)
			return false
		}
		return true
	})
	return text
}

// TextContent returns the element's text with runs of whitespace collapsed.
func TextContent(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// Snippet renders the element's outer HTML, truncated for display.
func Snippet(s *goquery.Selection) string {
	out, err := goquery.OuterHtml(s.First())
	if err != nil {
		return ""
	}
	if len(out) > snippetLimit {
		return out[:snippetLimit] + "..."
	}
	return out
}

// IsVisible reports whether the element is exposed to assistive technology.
// An element is hidden when it or an ancestor carries the hidden attribute
// or aria-hidden="true", or when it is an <input type="hidden">.
func IsVisible(s *goquery.Selection) bool {
	n := s.Get(0)
	if n == nil {
		return false
	}
	if n.Data == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
		return false
	}
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") {
			return false
		}
		if strings.EqualFold(strings.TrimSpace(attr(n, "aria-hidden")), "true") {
			return false
		}
	}
	return true
}

// HasAttr reports whether the first element in s carries the attribute at all.
func HasAttr(s *goquery.Selection, name string) bool {
	_, ok := s.Attr(name)
	return ok
}

// NonEmptyAttr returns the trimmed attribute value and whether it is non-empty.
func NonEmptyAttr(s *goquery.Selection, name string) (string, bool) {
	v, ok := s.Attr(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}
