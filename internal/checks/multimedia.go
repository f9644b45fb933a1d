package checks

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

// MultimediaChecker covers captions, transcripts, autoplay and embedded
// content.
type MultimediaChecker struct{}

func (MultimediaChecker) Name() string { return "multimedia" }

func (MultimediaChecker) Check(doc *document.Document) []models.Issue {
	var issues []models.Issue

	doc.Find("video").Each(func(_ int, v *goquery.Selection) {
		if !hasCaptionTrack(v) {
			issues = append(issues, issueAt(v, "video_missing_captions", models.SeverityCritical, "1.2.2", models.CategoryMultimedia,
				"Video has no captions track.",
				`Add <track kind="captions" src="..." srclang="en"> with synchronized captions.`))
		}
	})

	doc.Find("audio").Each(func(_ int, a *goquery.Selection) {
		if document.HasAttr(a, "aria-describedby") {
			return
		}
		if strings.Contains(strings.ToLower(document.TextContent(a.Parent())), "transcript") {
			return
		}
		issues = append(issues, issueAt(a, "audio_missing_transcript", models.SeveritySerious, "1.2.1", models.CategoryMultimedia,
			"Audio has no transcript.",
			"Provide a text transcript next to the player or link to one."))
	})

	doc.Find("video[autoplay], audio[autoplay]").Each(func(_ int, m *goquery.Selection) {
		if document.HasAttr(m, "muted") {
			return
		}
		issues = append(issues, issueAt(m, "autoplay_media", models.SeveritySerious, "1.4.2", models.CategoryMultimedia,
			"Media plays sound automatically.",
			"Remove autoplay or start the media muted, and provide controls."))
	})

	visible(doc.Find("iframe")).Each(func(_ int, f *goquery.Selection) {
		if _, ok := document.NonEmptyAttr(f, "title"); ok {
			return
		}
		if _, ok := document.NonEmptyAttr(f, "aria-label"); ok {
			return
		}
		issues = append(issues, issueAt(f, "iframe_missing_title", models.SeveritySerious, "4.1.2", models.CategoryMultimedia,
			"Frame has no title.",
			"Add a title attribute describing the frame's content."))
	})

	visible(doc.Find("object, embed")).Each(func(_ int, o *goquery.Selection) {
		if doc.AccessibleName(o) != "" {
			return
		}
		if _, ok := document.NonEmptyAttr(o, "alt"); ok {
			return
		}
		issues = append(issues, issueAt(o, "object_missing_alt", models.SeveritySerious, "1.1.1", models.CategoryMultimedia,
			"Embedded object has no text alternative.",
			"Add fallback text inside <object>, or an aria-label or title."))
	})

	return issues
}

func hasCaptionTrack(v *goquery.Selection) bool {
	found := false
	v.Find("track").Each(func(_ int, t *goquery.Selection) {
		kind := strings.ToLower(strings.TrimSpace(t.AttrOr("kind", "")))
		if kind == "" || kind == "captions" || kind == "subtitles" {
			found = true
		}
	})
	return found
}
