package document

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AccessibleName approximates the name a screen reader would announce for
// the element: aria-labelledby, then aria-label, then text content plus the
// alt text of contained images, then title.
func (d *Document) AccessibleName(s *goquery.Selection) string {
	if ids, ok := NonEmptyAttr(s, "aria-labelledby"); ok {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if t := d.TextByID(id); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	if label, ok := NonEmptyAttr(s, "aria-label"); ok {
		return label
	}

	parts := []string{}
	if t := TextContent(s); t != "" {
		parts = append(parts, t)
	}
	s.Find("img[alt], area[alt], input[type=image][alt]").Each(func(_ int, img *goquery.Selection) {
		if alt, ok := NonEmptyAttr(img, "alt"); ok {
			parts = append(parts, alt)
		}
	})
	s.Find("svg[aria-label]").Each(func(_ int, svg *goquery.Selection) {
		if l, ok := NonEmptyAttr(svg, "aria-label"); ok {
			parts = append(parts, l)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	if title, ok := NonEmptyAttr(s, "title"); ok {
		return title
	}
	return ""
}
