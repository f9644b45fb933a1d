package checks

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

// HeadingChecker validates the document outline formed by h1-h6.
type HeadingChecker struct{}

func (HeadingChecker) Name() string { return "headings" }

type heading struct {
	level int
	sel   *goquery.Selection
}

func (HeadingChecker) Check(doc *document.Document) []models.Issue {
	var headings []heading
	visible(doc.Find("h1, h2, h3, h4, h5, h6")).Each(func(_ int, h *goquery.Selection) {
		level := int(goquery.NodeName(h)[1] - '0')
		headings = append(headings, heading{level: level, sel: h})
	})
	if len(headings) == 0 {
		return nil
	}

	var issues []models.Issue

	h1Count := 0
	for _, h := range headings {
		if h.level == 1 {
			h1Count++
		}
	}
	if h1Count == 0 {
		issues = append(issues, issueAt(headings[0].sel, "missing_h1", models.SeveritySerious, "1.3.1", models.CategoryStructure,
			"Page has headings but no h1.",
			"Add a single h1 that describes the page's main content."))
	}

	seenH1 := false
	for i, h := range headings {
		if h.level == 1 {
			if seenH1 {
				issues = append(issues, issueAt(h.sel, "multiple_h1", models.SeverityModerate, "1.3.1", models.CategoryStructure,
					"Page has more than one h1.",
					"Use one h1 for the page title and h2-h6 for sections."))
			}
			seenH1 = true
		}

		if i > 0 {
			prev := headings[i-1].level
			if h.level > prev+1 {
				issues = append(issues, issueAt(h.sel, "skipped_heading_level", models.SeverityModerate, "1.3.1", models.CategoryStructure,
					fmt.Sprintf("Heading level skipped from h%d to h%d.", prev, h.level),
					fmt.Sprintf("Use an h%d here or restructure the outline so levels increase one at a time.", prev+1)))
			}
		}

		if document.TextContent(h.sel) == "" {
			issues = append(issues, issueAt(h.sel, "empty_heading", models.SeveritySerious, "2.4.6", models.CategoryStructure,
				"Heading has no text content.",
				"Add descriptive text to the heading or remove it."))
		}
	}

	return issues
}

// ColorContrastChecker is a placeholder: contrast ratios need computed
// styles from a rendering engine, which a static parse cannot provide. It
// never reports issues.
type ColorContrastChecker struct{}

func (ColorContrastChecker) Name() string { return "color_contrast" }

func (ColorContrastChecker) Check(*document.Document) []models.Issue { return nil }
