// Package checks holds the WCAG rule modules run against a parsed page.
package checks

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

// Checker inspects a parsed page and reports what it finds. Implementations
// are stateless; every call is independent of every other.
type Checker interface {
	Name() string
	Check(doc *document.Document) []models.Issue
}

// Default returns the built-in checkers in registration order. Scan results
// list issues in this order.
func Default() []Checker {
	return []Checker{
		ImageChecker{},
		HeadingChecker{},
		ColorContrastChecker{},
		FormChecker{},
		AriaChecker{},
		LinkChecker{},
		KeyboardChecker{},
		SemanticChecker{},
		MultimediaChecker{},
		TableChecker{},
	}
}

// ByName returns the subset of Default whose names appear in names, keeping
// registration order. Unknown names are ignored.
func ByName(names []string) []Checker {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Checker
	for _, c := range Default() {
		if want[c.Name()] {
			out = append(out, c)
		}
	}
	return out
}

// issueAt builds an issue located at the first element of s.
func issueAt(s *goquery.Selection, typ string, sev models.Severity, wcag, category, message, fix string) models.Issue {
	i := models.NewIssue(typ, sev, wcag, category)
	i.Message = message
	i.Fix = fix
	i.Element = document.Snippet(s)
	i.Selector = document.Selector(s)
	return i
}

// visible narrows s to elements exposed to assistive technology.
func visible(s *goquery.Selection) *goquery.Selection {
	return s.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return document.IsVisible(el)
	})
}

// focusableSelector matches elements that take keyboard focus by default.
const focusableSelector = `a[href], area[href], button, input:not([type=hidden]), select, textarea, iframe, summary, [tabindex], [contenteditable=""], [contenteditable=true]`

// isFocusable reports whether el is in the tab order.
func isFocusable(el *goquery.Selection) bool {
	if !el.Is(focusableSelector) {
		return false
	}
	if document.HasAttr(el, "disabled") {
		return false
	}
	if ti, ok := el.Attr("tabindex"); ok && ti == "-1" {
		return false
	}
	return true
}
