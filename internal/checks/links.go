package checks

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

var ambiguousLinkText = map[string]bool{
	"here": true, "click here": true, "click": true, "more": true, "read more": true,
	"learn more": true, "more info": true, "info": true, "details": true, "link": true,
	"this link": true, "continue": true, "go": true,
}

var newWindowHints = []string{"new window", "new tab", "opens in", "external"}

// LinkChecker covers link purpose, empty links and pseudo-links.
type LinkChecker struct{}

func (LinkChecker) Name() string { return "links" }

func (LinkChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	visible(doc.Find("a[href]")).Each(func(_ int, a *goquery.Selection) {
		name := doc.AccessibleName(a)
		lower := strings.ToLower(strings.Trim(name, " .!?:>»›"))

		switch {
		case a.Find("img").Length() > 0 && name == "":
			// Reported by ImageChecker as empty_link_image.
		case name == "":
			issues = append(issues, issueAt(a, "empty_link", models.SeverityCritical, "2.4.4", models.CategoryLinks,
				"Link has no accessible text.",
				"Add link text or an aria-label describing where the link goes."))
		case ambiguousLinkText[lower]:
			issues = append(issues, issueAt(a, "ambiguous_link_text", models.SeverityModerate, "2.4.4", models.CategoryLinks,
				"Link text \""+name+"\" does not describe its destination.",
				"Use link text that makes sense out of context, e.g. \"Read the 2024 privacy report\"."))
		}

		if strings.EqualFold(strings.TrimSpace(a.AttrOr("target", "")), "_blank") && !warnsNewWindow(doc, a, name) {
			issues = append(issues, issueAt(a, "new_window_no_warning", models.SeverityMinor, "3.2.5", models.CategoryLinks,
				"Link opens a new window without warning.",
				"Tell users the link opens in a new tab, e.g. with visually hidden text or an icon with a label."))
		}

		href := strings.TrimSpace(a.AttrOr("href", ""))
		lhref := strings.ToLower(href)
		if (href == "#" || strings.HasPrefix(lhref, "javascript:")) && !strings.EqualFold(a.AttrOr("role", ""), "button") {
			issues = append(issues, issueAt(a, "invalid_link_href", models.SeverityModerate, "2.1.1", models.CategoryLinks,
				"Link does not navigate anywhere.",
				`Use a <button> for actions, or give the link a real destination.`))
		}
	})

	return issues
}

func warnsNewWindow(doc *document.Document, a *goquery.Selection, name string) bool {
	text := strings.ToLower(name + " " + a.AttrOr("title", ""))
	if ids, ok := document.NonEmptyAttr(a, "aria-describedby"); ok {
		for _, id := range strings.Fields(ids) {
			text += " " + strings.ToLower(doc.TextByID(id))
		}
	}
	for _, hint := range newWindowHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}
