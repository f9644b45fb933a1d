package checks

import (
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

var redundantAltPrefixes = []string{"image of", "picture of", "photo of", "graphic of", "icon of"}

var imageExtension = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|svg|webp|bmp|tiff?|avif|ico)$`)

// ImageChecker covers text alternatives for images, image maps, image links and inline SVG.
type ImageChecker struct{}

func (ImageChecker) Name() string { return "images" }

func (ImageChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		alt, hasAlt := img.Attr("alt")
		if !hasAlt {
			issues = append(issues, issueAt(img, "missing_alt", models.SeverityCritical, "1.1.1", models.CategoryImages,
				"Image is missing an alt attribute.",
				`Add an alt attribute describing the image, or alt="" if it is purely decorative.`))
			return
		}

		alt = strings.TrimSpace(alt)
		if alt == "" {
			_, hasTitle := document.NonEmptyAttr(img, "title")
			if img.Closest("a").Length() > 0 || hasTitle {
				issues = append(issues, issueAt(img, "empty_alt_informative", models.SeveritySerious, "1.1.1", models.CategoryImages,
					"Informative image has an empty alt attribute.",
					"Describe the image's purpose in its alt text; empty alt is only for decorative images."))
			}
			return
		}

		lower := strings.ToLower(alt)
		for _, prefix := range redundantAltPrefixes {
			if strings.HasPrefix(lower, prefix) {
				issues = append(issues, issueAt(img, "redundant_alt_text", models.SeverityMinor, "1.1.1", models.CategoryImages,
					"Alt text starts with a redundant phrase such as \""+prefix+"\".",
					"Screen readers already announce images; describe the content directly."))
				break
			}
		}

		if altIsFilename(lower, img.AttrOr("src", "")) {
			issues = append(issues, issueAt(img, "alt_is_filename", models.SeveritySerious, "1.1.1", models.CategoryImages,
				"Alt text appears to be a file name.",
				"Replace the file name with a meaningful description of the image."))
		}
	})

	doc.Find("a").Each(func(_ int, link *goquery.Selection) {
		imgs := link.Find("img")
		if imgs.Length() == 0 {
			return
		}
		if document.TextContent(link) != "" {
			return
		}
		if _, ok := document.NonEmptyAttr(link, "aria-label"); ok {
			return
		}
		hasAltText := false
		imgs.EachWithBreak(func(_ int, img *goquery.Selection) bool {
			if _, ok := document.NonEmptyAttr(img, "alt"); ok {
				hasAltText = true
				return false
			}
			return true
		})
		if !hasAltText {
			issues = append(issues, issueAt(link, "empty_link_image", models.SeverityCritical, "2.4.4", models.CategoryImages,
				"Linked image has no alt text and the link has no text content.",
				"Give the image alt text that describes the link destination."))
		}
	})

	doc.Find("map area").Each(func(_ int, area *goquery.Selection) {
		if _, ok := document.NonEmptyAttr(area, "alt"); !ok {
			issues = append(issues, issueAt(area, "area_missing_alt", models.SeverityCritical, "1.1.1", models.CategoryImages,
				"Image map area is missing alt text.",
				"Add an alt attribute describing the area's link target."))
		}
	})

	doc.Find("svg").Each(func(_ int, svg *goquery.Selection) {
		if strings.EqualFold(strings.TrimSpace(svg.AttrOr("aria-hidden", "")), "true") {
			return
		}
		if role := strings.ToLower(strings.TrimSpace(svg.AttrOr("role", ""))); role == "presentation" || role == "none" {
			return
		}
		if svg.ChildrenFiltered("title").Length() > 0 {
			return
		}
		if document.HasAttr(svg, "aria-label") || document.HasAttr(svg, "aria-labelledby") {
			return
		}
		issues = append(issues, issueAt(svg, "svg_missing_title", models.SeveritySerious, "1.1.1", models.CategoryImages,
			"SVG has no accessible name.",
			`Add a <title> child or aria-label, or mark decorative SVGs with aria-hidden="true".`))
	})

	return issues
}

// altIsFilename reports whether lowerAlt contains the image's file name or
// ends in a known image extension.
func altIsFilename(lowerAlt, src string) bool {
	if imageExtension.MatchString(lowerAlt) {
		return true
	}
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	name := strings.ToLower(path.Base(src))
	if name == "" || name == "." || name == "/" {
		return false
	}
	return strings.Contains(lowerAlt, name)
}
