package checks

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

var validRoles = toSet(`alert alertdialog application article banner blockquote button caption cell checkbox
code columnheader combobox complementary contentinfo definition deletion dialog directory document
emphasis feed figure form generic grid gridcell group heading img insertion link list listbox listitem
log main marquee math menu menubar menuitem menuitemcheckbox menuitemradio meter navigation none note
option paragraph presentation progressbar radio radiogroup region row rowgroup rowheader scrollbar
search searchbox separator slider spinbutton status strong subscript superscript switch tab table
tablist tabpanel term textbox time timer toolbar tooltip tree treegrid treeitem`)

var validAriaAttrs = toSet(`aria-activedescendant aria-atomic aria-autocomplete aria-braillelabel
aria-brailleroledescription aria-busy aria-checked aria-colcount aria-colindex aria-colindextext
aria-colspan aria-controls aria-current aria-describedby aria-description aria-details aria-disabled
aria-dropeffect aria-errormessage aria-expanded aria-flowto aria-grabbed aria-haspopup aria-hidden
aria-invalid aria-keyshortcuts aria-label aria-labelledby aria-level aria-live aria-modal
aria-multiline aria-multiselectable aria-orientation aria-owns aria-placeholder aria-posinset
aria-pressed aria-readonly aria-relevant aria-required aria-roledescription aria-rowcount
aria-rowindex aria-rowindextext aria-rowspan aria-selected aria-setsize aria-sort aria-valuemax
aria-valuemin aria-valuenow aria-valuetext`)

// idRefAttrs hold whitespace-separated id references.
var idRefAttrs = []string{
	"aria-labelledby", "aria-describedby", "aria-controls", "aria-owns",
	"aria-activedescendant", "aria-errormessage", "aria-details", "aria-flowto",
}

// requiredStates lists states a role cannot work without.
var requiredStates = map[string][]string{
	"checkbox":         {"aria-checked"},
	"radio":            {"aria-checked"},
	"switch":           {"aria-checked"},
	"menuitemcheckbox": {"aria-checked"},
	"menuitemradio":    {"aria-checked"},
	"combobox":         {"aria-expanded"},
	"slider":           {"aria-valuenow"},
	"scrollbar":        {"aria-valuenow", "aria-controls"},
	"heading":          {"aria-level"},
	"meter":            {"aria-valuenow"},
}

// AriaChecker validates roles, aria-* attributes and id references.
type AriaChecker struct{}

func (AriaChecker) Name() string { return "aria" }

func (AriaChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	doc.Find("[role]").Each(func(_ int, el *goquery.Selection) {
		for _, role := range strings.Fields(strings.ToLower(el.AttrOr("role", ""))) {
			if !isValidRole(role) {
				issues = append(issues, issueAt(el, "invalid_aria_role", models.SeveritySerious, "4.1.2", models.CategoryARIA,
					fmt.Sprintf("Element uses an invalid ARIA role %q.", role),
					"Use a role defined by WAI-ARIA or remove the role attribute."))
				return
			}
		}

		role := strings.Fields(strings.ToLower(el.AttrOr("role", "")))
		if len(role) == 0 || goquery.NodeName(el) == "input" {
			return
		}
		for _, state := range requiredStates[role[0]] {
			if !document.HasAttr(el, state) {
				issues = append(issues, issueAt(el, "missing_required_aria", models.SeveritySerious, "4.1.2", models.CategoryARIA,
					fmt.Sprintf("Role %q requires the %s attribute.", role[0], state),
					fmt.Sprintf("Add %s and keep it in sync with the widget's state.", state)))
			}
		}
	})

	doc.Find("*").Each(func(_ int, el *goquery.Selection) {
		n := el.Get(0)
		for _, a := range n.Attr {
			if strings.HasPrefix(a.Key, "aria-") && !validAriaAttrs[a.Key] {
				issues = append(issues, issueAt(el, "invalid_aria_attribute", models.SeverityModerate, "4.1.2", models.CategoryARIA,
					fmt.Sprintf("Unknown ARIA attribute %q.", a.Key),
					"Check the attribute name for typos against the WAI-ARIA specification."))
			}
		}
		for _, attr := range idRefAttrs {
			refs, ok := document.NonEmptyAttr(el, attr)
			if !ok {
				continue
			}
			for _, id := range strings.Fields(refs) {
				if !doc.HasID(id) {
					issues = append(issues, issueAt(el, "broken_aria_reference", models.SeveritySerious, "1.3.1", models.CategoryARIA,
						fmt.Sprintf("%s references missing id %q.", attr, id),
						"Point the attribute at an element id that exists on the page."))
				}
			}
		}
	})

	doc.Find(`[aria-hidden]`).Each(func(_ int, el *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(el.AttrOr("aria-hidden", "")), "true") {
			return
		}
		focusable := isFocusable(el)
		if !focusable {
			el.Find(focusableSelector).EachWithBreak(func(_ int, d *goquery.Selection) bool {
				focusable = isFocusable(d)
				return !focusable
			})
		}
		if focusable {
			issues = append(issues, issueAt(el, "aria_hidden_focusable", models.SeveritySerious, "4.1.2", models.CategoryARIA,
				`Element with aria-hidden="true" is or contains a focusable element.`,
				`Remove aria-hidden, or take the content out of the tab order with tabindex="-1" or inert.`))
		}
	})

	return issues
}

func isValidRole(role string) bool {
	return validRoles[role] || strings.HasPrefix(role, "doc-") || strings.HasPrefix(role, "graphics-")
}

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}
