package checks

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

// unlabelledInputTypes never need a <label>: they are hidden, or their
// accessible name comes from value/alt.
var unlabelledInputTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"reset":  true,
	"button": true,
	"image":  true,
}

// FormChecker covers labels, button names and grouping of form controls.
type FormChecker struct{}

func (FormChecker) Name() string { return "forms" }

func (FormChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	labelFor := make(map[string]bool)
	doc.Find("label[for]").Each(func(_ int, l *goquery.Selection) {
		if f := strings.TrimSpace(l.AttrOr("for", "")); f != "" {
			labelFor[f] = true
		}
	})

	visible(doc.Find("input, select, textarea")).Each(func(_ int, ctl *goquery.Selection) {
		if goquery.NodeName(ctl) == "input" && unlabelledInputTypes[inputType(ctl)] {
			return
		}
		if hasLabel(doc, ctl, labelFor) {
			return
		}
		if _, ok := document.NonEmptyAttr(ctl, "placeholder"); ok {
			issues = append(issues, issueAt(ctl, "placeholder_as_label", models.SeveritySerious, "3.3.2", models.CategoryForms,
				"Form field relies on placeholder text as its only label.",
				"Placeholders disappear on input; add a visible <label> tied to the field."))
			return
		}
		issues = append(issues, issueAt(ctl, "missing_form_label", models.SeverityCritical, "1.3.1", models.CategoryForms,
			"Form field has no associated label.",
			`Add a <label for="..."> matching the field's id, wrap the field in a label, or use aria-label.`))
	})

	visible(doc.Find("input[type=image]")).Each(func(_ int, in *goquery.Selection) {
		if _, ok := document.NonEmptyAttr(in, "alt"); ok {
			return
		}
		if _, ok := document.NonEmptyAttr(in, "aria-label"); ok {
			return
		}
		issues = append(issues, issueAt(in, "image_input_missing_alt", models.SeverityCritical, "1.1.1", models.CategoryForms,
			"Image button has no alt text.",
			"Add alt text describing the button's action."))
	})

	visible(doc.Find("button, input[type=button], input[type=submit], input[type=reset], [role=button]")).Each(func(_ int, btn *goquery.Selection) {
		if buttonName(doc, btn) != "" {
			return
		}
		issues = append(issues, issueAt(btn, "empty_button", models.SeverityCritical, "4.1.2", models.CategoryForms,
			"Button has no accessible name.",
			"Add text content, a value, or an aria-label describing the button's action."))
	})

	visible(doc.Find("fieldset")).Each(func(_ int, fs *goquery.Selection) {
		legend := fs.ChildrenFiltered("legend")
		if legend.Length() > 0 && document.TextContent(legend) != "" {
			return
		}
		issues = append(issues, issueAt(fs, "fieldset_missing_legend", models.SeverityModerate, "1.3.1", models.CategoryForms,
			"Fieldset has no legend.",
			"Add a <legend> as the first child describing the group."))
	})

	issues = append(issues, ungroupedChoices(doc)...)
	return issues
}

// ungroupedChoices flags radio/checkbox sets sharing a name that are not
// wrapped in a labelled fieldset or an ARIA group. One issue per set.
func ungroupedChoices(doc *document.Document) []models.Issue {
	type group struct {
		first *goquery.Selection
		count int
	}
	var order []string
	groups := make(map[string]*group)

	visible(doc.Find("input[type=radio][name], input[type=checkbox][name]")).Each(func(_ int, in *goquery.Selection) {
		key := inputType(in) + ":" + in.AttrOr("name", "")
		g, ok := groups[key]
		if !ok {
			g = &group{first: in}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
	})

	var issues []models.Issue
	for _, key := range order {
		g := groups[key]
		if g.count < 2 || isGrouped(g.first) {
			continue
		}
		issues = append(issues, issueAt(g.first, "missing_fieldset_legend", models.SeverityModerate, "1.3.1", models.CategoryForms,
			"Related radio buttons or checkboxes are not grouped.",
			"Wrap the set in a <fieldset> with a <legend>, or use role=\"radiogroup\"/\"group\" with a label."))
	}
	return issues
}

func isGrouped(in *goquery.Selection) bool {
	if fs := in.Closest("fieldset"); fs.Length() > 0 && fs.ChildrenFiltered("legend").Length() > 0 {
		return true
	}
	return in.Closest("[role=radiogroup], [role=group]").Length() > 0
}

func hasLabel(doc *document.Document, ctl *goquery.Selection, labelFor map[string]bool) bool {
	if id := strings.TrimSpace(ctl.AttrOr("id", "")); id != "" && labelFor[id] {
		return true
	}
	if label := ctl.Closest("label"); label.Length() > 0 && document.TextContent(label) != "" {
		return true
	}
	if _, ok := document.NonEmptyAttr(ctl, "aria-label"); ok {
		return true
	}
	if ids, ok := document.NonEmptyAttr(ctl, "aria-labelledby"); ok {
		for _, id := range strings.Fields(ids) {
			if doc.TextByID(id) != "" {
				return true
			}
		}
	}
	_, ok := document.NonEmptyAttr(ctl, "title")
	return ok
}

func buttonName(doc *document.Document, btn *goquery.Selection) string {
	if goquery.NodeName(btn) == "input" {
		if v, ok := document.NonEmptyAttr(btn, "value"); ok {
			return v
		}
		switch inputType(btn) {
		case "submit", "reset":
			// Browsers supply a default label.
			return inputType(btn)
		}
		if l, ok := document.NonEmptyAttr(btn, "aria-label"); ok {
			return l
		}
		v, _ := document.NonEmptyAttr(btn, "title")
		return v
	}
	return doc.AccessibleName(btn)
}

func inputType(in *goquery.Selection) string {
	t := strings.ToLower(strings.TrimSpace(in.AttrOr("type", "")))
	if t == "" {
		return "text"
	}
	return t
}
