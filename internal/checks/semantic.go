package checks

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

// langPattern is a loose BCP 47 shape: a primary tag plus optional subtags.
var langPattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// SemanticChecker covers page-level structure: language, title, landmarks,
// ids and obsolete markup.
type SemanticChecker struct{}

func (SemanticChecker) Name() string { return "semantic" }

func (SemanticChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	html := doc.Find("html").First()
	if lang, ok := document.NonEmptyAttr(html, "lang"); !ok {
		issues = append(issues, issueAt(html, "missing_lang", models.SeveritySerious, "3.1.1", models.CategorySemantic,
			"Page does not declare its language.",
			`Add a lang attribute to <html>, e.g. <html lang="en">.`))
	} else if !langPattern.MatchString(lang) {
		issues = append(issues, issueAt(html, "invalid_lang", models.SeverityModerate, "3.1.1", models.CategorySemantic,
			"The lang attribute \""+lang+"\" is not a valid language tag.",
			"Use a BCP 47 language tag such as en, en-GB or pt-BR."))
	}

	title := doc.Find("head title").First()
	if title.Length() == 0 || document.TextContent(title) == "" {
		at := title
		if at.Length() == 0 {
			at = doc.Find("head").First()
		}
		issues = append(issues, issueAt(at, "missing_title", models.SeveritySerious, "2.4.2", models.CategorySemantic,
			"Page has no title.",
			"Add a <title> that describes the page's topic or purpose."))
	}

	mains := visible(doc.Find(`main, [role=main]`))
	switch {
	case mains.Length() == 0:
		issues = append(issues, issueAt(doc.Find("body").First(), "missing_main_landmark", models.SeverityModerate, "1.3.1", models.CategorySemantic,
			"Page has no main landmark.",
			"Wrap the primary content in a <main> element."))
	case mains.Length() > 1:
		mains.Slice(1, mains.Length()).Each(func(_ int, m *goquery.Selection) {
			issues = append(issues, issueAt(m, "multiple_main_landmarks", models.SeverityModerate, "1.3.1", models.CategorySemantic,
				"Page has more than one visible main landmark.",
				"Keep a single <main> and use sections or regions for the rest."))
		})
	}

	seen := make(map[string]int)
	doc.Find("[id]").Each(func(_ int, el *goquery.Selection) {
		id := strings.TrimSpace(el.AttrOr("id", ""))
		if id == "" {
			return
		}
		seen[id]++
		if seen[id] == 2 {
			issues = append(issues, issueAt(el, "duplicate_id", models.SeverityMinor, "4.1.1", models.CategorySemantic,
				"Id \""+id+"\" is used more than once.",
				"Give every element a unique id so labels and ARIA references resolve correctly."))
		}
	})

	doc.Find(`meta[name=viewport]`).Each(func(_ int, m *goquery.Selection) {
		if zoomDisabled(m.AttrOr("content", "")) {
			issues = append(issues, issueAt(m, "zoom_disabled", models.SeveritySerious, "1.4.4", models.CategorySemantic,
				"Viewport settings prevent users from zooming.",
				"Remove user-scalable=no and any maximum-scale below 2."))
		}
	})

	doc.Find(`meta[http-equiv]`).Each(func(_ int, m *goquery.Selection) {
		if !strings.EqualFold(m.AttrOr("http-equiv", ""), "refresh") {
			return
		}
		if refreshDelay(m.AttrOr("content", "")) > 0 {
			issues = append(issues, issueAt(m, "meta_refresh", models.SeveritySerious, "2.2.1", models.CategorySemantic,
				"Page refreshes or redirects automatically after a delay.",
				"Remove the timed refresh or give users control over it; use a server-side redirect instead."))
		}
	})

	doc.Find("font, center, marquee, blink").Each(func(_ int, el *goquery.Selection) {
		issues = append(issues, issueAt(el, "presentational_markup", models.SeverityMinor, "1.3.1", models.CategorySemantic,
			"Obsolete presentational element <"+goquery.NodeName(el)+">.",
			"Replace it with semantic markup and CSS."))
	})

	return issues
}

func zoomDisabled(content string) bool {
	for _, part := range strings.FieldsFunc(strings.ToLower(content), func(r rune) bool { return r == ',' || r == ';' }) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		switch k {
		case "user-scalable":
			if v == "no" || v == "0" {
				return true
			}
		case "maximum-scale":
			if f, err := strconv.ParseFloat(v, 64); err == nil && f < 2 {
				return true
			}
		}
	}
	return false
}

// refreshDelay returns the seconds before a meta refresh fires, or -1 when
// the content cannot be read.
func refreshDelay(content string) float64 {
	delay, _, _ := strings.Cut(content, ";")
	delay, _, _ = strings.Cut(delay, ",")
	f, err := strconv.ParseFloat(strings.TrimSpace(delay), 64)
	if err != nil {
		return -1
	}
	return f
}
