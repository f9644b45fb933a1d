package checks

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

// skipLinkWindow is how many leading links are searched for a skip link.
const skipLinkWindow = 3

var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true, "textarea": true,
	"summary": true, "option": true, "label": true,
}

var interactiveRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true, "radio": true, "tab": true,
	"menuitem": true, "switch": true, "option": true, "treeitem": true,
}

// KeyboardChecker looks for content that cannot be reached or operated
// without a mouse.
type KeyboardChecker struct{}

func (KeyboardChecker) Name() string { return "keyboard" }

func (KeyboardChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	doc.Find("[tabindex]").Each(func(_ int, el *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(el.AttrOr("tabindex", "")))
		if err == nil && n > 0 {
			issues = append(issues, issueAt(el, "positive_tabindex", models.SeveritySerious, "2.4.3", models.CategoryKeyboard,
				"Positive tabindex overrides the natural focus order.",
				`Use tabindex="0" or restructure the DOM so the order follows the source.`))
		}
	})

	visible(doc.Find("[onclick]")).Each(func(_ int, el *goquery.Selection) {
		if interactiveTags[goquery.NodeName(el)] || interactiveRoles[strings.ToLower(el.AttrOr("role", ""))] {
			return
		}
		if document.HasAttr(el, "tabindex") && hasKeyHandler(el) {
			return
		}
		issues = append(issues, issueAt(el, "click_handler_no_keyboard", models.SeveritySerious, "2.1.1", models.CategoryKeyboard,
			"Click handler on a non-interactive element cannot be triggered from the keyboard.",
			`Use a <button>, or add tabindex="0", a role, and a keydown handler.`))
	})

	doc.Find("[onmouseover], [onmouseout]").Each(func(_ int, el *goquery.Selection) {
		if (document.HasAttr(el, "onmouseover") && !document.HasAttr(el, "onfocus")) ||
			(document.HasAttr(el, "onmouseout") && !document.HasAttr(el, "onblur")) {
			issues = append(issues, issueAt(el, "mouse_only_handler", models.SeverityModerate, "2.1.1", models.CategoryKeyboard,
				"Mouse hover behaviour has no keyboard equivalent.",
				"Pair onmouseover with onfocus and onmouseout with onblur."))
		}
	})

	nav := doc.Find(`nav, [role=navigation]`)
	if nav.Length() > 0 && !hasSkipLink(doc) {
		issues = append(issues, issueAt(nav.First(), "missing_skip_link", models.SeverityModerate, "2.4.1", models.CategoryKeyboard,
			"Page has navigation but no link to skip past it.",
			`Add a "Skip to main content" link pointing at the main content as the first focusable element.`))
	}

	return issues
}

func hasKeyHandler(el *goquery.Selection) bool {
	return document.HasAttr(el, "onkeydown") || document.HasAttr(el, "onkeyup") || document.HasAttr(el, "onkeypress")
}

func hasSkipLink(doc *document.Document) bool {
	links := doc.Find("a[href]")
	links = links.Slice(0, min(skipLinkWindow, links.Length()))
	found := false
	links.Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if len(href) > 1 && strings.HasPrefix(href, "#") {
			found = true
		}
	})
	return found
}
