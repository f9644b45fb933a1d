package checks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/models"
)

func run(t *testing.T, c Checker, raw string) []models.Issue {
	t.Helper()
	doc, err := document.Parse(raw, "text/html; charset=utf-8")
	require.NoError(t, err)
	return c.Check(doc)
}

func countTypes(issues []models.Issue) map[string]int {
	out := make(map[string]int)
	for _, i := range issues {
		out[i.Type]++
	}
	return out
}

func TestDefault_Order(t *testing.T) {
	var names []string
	for _, c := range Default() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{
		"images", "headings", "color_contrast", "forms", "aria",
		"links", "keyboard", "semantic", "multimedia", "tables",
	}, names)
}

func TestByName(t *testing.T) {
	got := ByName([]string{"tables", "images", "nope"})
	require.Len(t, got, 2)
	assert.Equal(t, "images", got[0].Name())
	assert.Equal(t, "tables", got[1].Name())
}

func TestImageChecker_MissingAlt(t *testing.T) {
	issues := run(t, ImageChecker{}, `<img src="photo.jpg">`)
	require.Len(t, issues, 1)
	i := issues[0]
	assert.Equal(t, "missing_alt", i.Type)
	assert.Equal(t, models.SeverityCritical, i.Severity)
	assert.Equal(t, "1.1.1", i.WCAG)
	assert.Equal(t, models.CategoryImages, i.Category)
	assert.Contains(t, i.Element, `<img src="photo.jpg"/>`)
	assert.NotEmpty(t, i.Selector)
	assert.Equal(t, "https://www.w3.org/WAI/WCAG21/quickref/#1.1.1", i.LearnMore)
}

func TestImageChecker_HiddenImageStillMissingAlt(t *testing.T) {
	issues := run(t, ImageChecker{}, `<div hidden><img src="a.png"></div>`)
	assert.Equal(t, 1, countTypes(issues)["missing_alt"])
}

func TestImageChecker_Rules(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"decorative empty alt", `<img src="a.png" alt="">`, ""},
		{"empty alt inside link", `<a href="/x">Home <img src="a.png" alt=""></a>`, "empty_alt_informative"},
		{"empty alt with title", `<img src="a.png" alt="" title="Chart">`, "empty_alt_informative"},
		{"redundant prefix", `<img src="a.png" alt="Image of a cat">`, "redundant_alt_text"},
		{"extension in alt", `<img src="a.png" alt="hero.JPG">`, "alt_is_filename"},
		{"src basename in alt", `<img src="/img/team.webp?v=2" alt="team.webp">`, "alt_is_filename"},
		{"good alt", `<img src="a.png" alt="Team at the 2024 offsite">`, ""},
		{"image link without text", `<a href="/"><img src="logo.png" alt=""></a>`, "empty_link_image"},
		{"area without alt", `<map name="m"><area href="/a"></map>`, "area_missing_alt"},
		{"bare svg", `<svg><circle r="4"></circle></svg>`, "svg_missing_title"},
		{"svg with title", `<svg><title>Logo</title></svg>`, ""},
		{"hidden svg", `<svg aria-hidden="true"></svg>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := countTypes(run(t, ImageChecker{}, tt.html))
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, 1, got[tt.want], "types: %v", got)
		})
	}
}

func TestHeadingChecker_SkippedLevel(t *testing.T) {
	issues := run(t, HeadingChecker{}, `<h1>Title</h1><h3>Deep</h3>`)
	require.Len(t, issues, 1)
	assert.Equal(t, "skipped_heading_level", issues[0].Type)
	assert.Equal(t, "Heading level skipped from h1 to h3.", issues[0].Message)
}

func TestHeadingChecker_MultipleH1(t *testing.T) {
	issues := run(t, HeadingChecker{}, `<h1 id="a">One</h1><h1 id="b">Two</h1>`)
	require.Len(t, issues, 1)
	assert.Equal(t, "multiple_h1", issues[0].Type)
	assert.Contains(t, issues[0].Element, `id="b"`)
}

func TestHeadingChecker_MissingH1AndEmpty(t *testing.T) {
	got := countTypes(run(t, HeadingChecker{}, `<h2>Intro</h2><h3></h3>`))
	assert.Equal(t, map[string]int{"missing_h1": 1, "empty_heading": 1}, got)
}

func TestHeadingChecker_NoHeadings(t *testing.T) {
	assert.Empty(t, run(t, HeadingChecker{}, `<p>text</p>`))
}

func TestHeadingChecker_IgnoresHidden(t *testing.T) {
	assert.Empty(t, run(t, HeadingChecker{}, `<h1>Title</h1><h4 aria-hidden="true">x</h4><h2>Next</h2>`))
}

func TestColorContrastChecker(t *testing.T) {
	assert.Empty(t, run(t, ColorContrastChecker{}, `<p style="color:#eee;background:#fff">faint</p>`))
}

func TestFormChecker(t *testing.T) {
	tests := []struct {
		name string
		html string
		want map[string]int
	}{
		{"label for", `<label for="e">Email</label><input id="e" type="email">`, map[string]int{}},
		{"wrapping label", `<label>Name <input type="text"></label>`, map[string]int{}},
		{"aria-label", `<textarea aria-label="Comment"></textarea>`, map[string]int{}},
		{"unlabelled", `<input type="text" name="q">`, map[string]int{"missing_form_label": 1}},
		{"placeholder only", `<input type="text" placeholder="Search">`, map[string]int{"placeholder_as_label": 1}},
		{"hidden input", `<input type="hidden" name="csrf">`, map[string]int{}},
		{"image input", `<input type="image" src="go.png">`, map[string]int{"image_input_missing_alt": 1}},
		{"empty button", `<button></button>`, map[string]int{"empty_button": 1}},
		{"button text", `<button>Save</button>`, map[string]int{}},
		{"fieldset without legend", `<fieldset><label>A <input type="text"></label></fieldset>`, map[string]int{"fieldset_missing_legend": 1}},
		{
			"ungrouped radios",
			`<label>Yes <input type="radio" name="ok"></label><label>No <input type="radio" name="ok"></label>`,
			map[string]int{"missing_fieldset_legend": 1},
		},
		{
			"grouped radios",
			`<fieldset><legend>OK?</legend><label>Yes <input type="radio" name="ok"></label><label>No <input type="radio" name="ok"></label></fieldset>`,
			map[string]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countTypes(run(t, FormChecker{}, tt.html)))
		})
	}
}

func TestAriaChecker(t *testing.T) {
	tests := []struct {
		name string
		html string
		want map[string]int
	}{
		{"valid role", `<div role="navigation"></div>`, map[string]int{}},
		{"dpub role", `<section role="doc-chapter"></section>`, map[string]int{}},
		{"invalid role", `<div role="buton"></div>`, map[string]int{"invalid_aria_role": 1}},
		{"invalid attribute", `<div aria-lable="x"></div>`, map[string]int{"invalid_aria_attribute": 1}},
		{"broken reference", `<input aria-labelledby="nope" aria-label="x">`, map[string]int{"broken_aria_reference": 1}},
		{"resolved reference", `<span id="l">Name</span><input aria-labelledby="l">`, map[string]int{}},
		{"hidden focusable", `<button aria-hidden="true">x</button>`, map[string]int{"aria_hidden_focusable": 1}},
		{"hidden container with link", `<div aria-hidden="true"><a href="/">x</a></div>`, map[string]int{"aria_hidden_focusable": 1}},
		{"hidden removed from tab order", `<div aria-hidden="true"><a href="/" tabindex="-1">x</a></div>`, map[string]int{}},
		{"checkbox without state", `<div role="checkbox" tabindex="0">Agree</div>`, map[string]int{"missing_required_aria": 1}},
		{"checkbox with state", `<div role="checkbox" aria-checked="false" tabindex="0">Agree</div>`, map[string]int{}},
		{"native input role", `<input type="checkbox" role="switch">`, map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countTypes(run(t, AriaChecker{}, tt.html)))
		})
	}
}

func TestLinkChecker(t *testing.T) {
	tests := []struct {
		name string
		html string
		want map[string]int
	}{
		{"descriptive", `<a href="/pricing">See pricing plans</a>`, map[string]int{}},
		{"empty", `<a href="/x"></a>`, map[string]int{"empty_link": 1}},
		{"image only left to images", `<a href="/x"><img src="a.png"></a>`, map[string]int{}},
		{"ambiguous", `<a href="/post">Read more</a>`, map[string]int{"ambiguous_link_text": 1}},
		{"ambiguous with punctuation", `<a href="/post">Click here!</a>`, map[string]int{"ambiguous_link_text": 1}},
		{"new window", `<a href="https://x.test" target="_blank">Partner site</a>`, map[string]int{"new_window_no_warning": 1}},
		{"new window warned", `<a href="https://x.test" target="_blank">Partner site (opens in new tab)</a>`, map[string]int{}},
		{"hash href", `<a href="#">Open menu</a>`, map[string]int{"invalid_link_href": 1}},
		{"javascript href", `<a href="javascript:void(0)">Open menu</a>`, map[string]int{"invalid_link_href": 1}},
		{"hash href as button", `<a href="#" role="button">Open menu</a>`, map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countTypes(run(t, LinkChecker{}, tt.html)))
		})
	}
}

func TestKeyboardChecker(t *testing.T) {
	tests := []struct {
		name string
		html string
		want map[string]int
	}{
		{"positive tabindex", `<div tabindex="3">x</div>`, map[string]int{"positive_tabindex": 1}},
		{"zero tabindex", `<div tabindex="0">x</div>`, map[string]int{}},
		{"div click", `<div onclick="go()">Go</div>`, map[string]int{"click_handler_no_keyboard": 1}},
		{"div click with keys", `<div onclick="go()" onkeydown="go()" tabindex="0">Go</div>`, map[string]int{}},
		{"button click", `<button onclick="go()">Go</button>`, map[string]int{}},
		{"mouseover only", `<span onmouseover="show()">?</span>`, map[string]int{"mouse_only_handler": 1}},
		{"mouseover with focus", `<span onmouseover="show()" onfocus="show()">?</span>`, map[string]int{}},
		{"nav without skip link", `<nav><a href="/">Home</a><a href="/a">About</a></nav><main></main>`, map[string]int{"missing_skip_link": 1}},
		{"nav with skip link", `<a href="#main">Skip to content</a><nav><a href="/">Home</a></nav><main id="main"></main>`, map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countTypes(run(t, KeyboardChecker{}, tt.html)))
		})
	}
}

const semanticOK = `<!doctype html><html lang="en"><head><title>Home</title>
<meta name="viewport" content="width=device-width, initial-scale=1"></head>
<body><main id="m">Hello</main></body></html>`

func TestSemanticChecker_Clean(t *testing.T) {
	assert.Empty(t, run(t, SemanticChecker{}, semanticOK))
}

func TestSemanticChecker_Fragment(t *testing.T) {
	got := countTypes(run(t, SemanticChecker{}, `<h2>Title</h2>`))
	assert.Equal(t, map[string]int{"missing_lang": 1, "missing_title": 1, "missing_main_landmark": 1}, got)
}

func TestSemanticChecker(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"invalid lang", `<html lang="english_us"><head><title>x</title></head><body><main></main></body></html>`, "invalid_lang"},
		{"empty title", `<html lang="en"><head><title> </title></head><body><main></main></body></html>`, "missing_title"},
		{"two mains", `<html lang="en"><head><title>x</title></head><body><main></main><div role="main"></div></body></html>`, "multiple_main_landmarks"},
		{"duplicate id", `<html lang="en"><head><title>x</title></head><body><main><p id="a"></p><p id="a"></p><p id="a"></p></main></body></html>`, "duplicate_id"},
		{"zoom disabled", `<html lang="en"><head><title>x</title><meta name="viewport" content="width=device-width, user-scalable=no"></head><body><main></main></body></html>`, "zoom_disabled"},
		{"maximum scale", `<html lang="en"><head><title>x</title><meta name="viewport" content="maximum-scale=1.0"></head><body><main></main></body></html>`, "zoom_disabled"},
		{"meta refresh", `<html lang="en"><head><title>x</title><meta http-equiv="refresh" content="5; url=/next"></head><body><main></main></body></html>`, "meta_refresh"},
		{"font tag", `<html lang="en"><head><title>x</title></head><body><main><font color="red">hi</font></main></body></html>`, "presentational_markup"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := countTypes(run(t, SemanticChecker{}, tt.html))
			assert.Equal(t, map[string]int{tt.want: 1}, got)
		})
	}
}

func TestSemanticChecker_InstantRedirectAllowed(t *testing.T) {
	raw := `<html lang="en"><head><title>x</title><meta http-equiv="refresh" content="0; url=/next"></head><body><main></main></body></html>`
	assert.Empty(t, run(t, SemanticChecker{}, raw))
}

func TestMultimediaChecker(t *testing.T) {
	tests := []struct {
		name string
		html string
		want map[string]int
	}{
		{"video without track", `<video src="a.mp4" controls></video>`, map[string]int{"video_missing_captions": 1}},
		{"video with captions", `<video src="a.mp4"><track kind="captions" src="a.vtt"></video>`, map[string]int{}},
		{"video with descriptions only", `<video src="a.mp4"><track kind="descriptions" src="a.vtt"></video>`, map[string]int{"video_missing_captions": 1}},
		{"audio alone", `<div><audio src="a.mp3" controls></audio></div>`, map[string]int{"audio_missing_transcript": 1}},
		{"audio with transcript", `<div><audio src="a.mp3"></audio><a href="/t">Read the transcript</a></div>`, map[string]int{}},
		{"autoplay", `<video autoplay src="a.mp4"><track src="a.vtt"></video>`, map[string]int{"autoplay_media": 1}},
		{"autoplay muted", `<video autoplay muted src="a.mp4"><track src="a.vtt"></video>`, map[string]int{}},
		{"iframe without title", `<iframe src="/embed"></iframe>`, map[string]int{"iframe_missing_title": 1}},
		{"iframe with title", `<iframe src="/embed" title="Map"></iframe>`, map[string]int{}},
		{"object without fallback", `<object data="a.swf"></object>`, map[string]int{"object_missing_alt": 1}},
		{"object with fallback", `<object data="a.pdf">Annual report (PDF)</object>`, map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countTypes(run(t, MultimediaChecker{}, tt.html)))
		})
	}
}

func TestTableChecker(t *testing.T) {
	tests := []struct {
		name string
		html string
		want map[string]int
	}{
		{
			"data table without headers",
			`<table><tr><td>a</td><td>1</td></tr><tr><td>b</td><td>2</td></tr></table>`,
			map[string]int{"table_missing_headers": 1},
		},
		{
			"single row is not a data table",
			`<table><tr><td>a</td></tr></table>`,
			map[string]int{},
		},
		{
			"headers and caption",
			`<table><caption>Prices</caption><tr><th>Item</th><th>Cost</th></tr><tr><td>a</td><td>1</td></tr></table>`,
			map[string]int{},
		},
		{
			"missing caption",
			`<table><tr><th>Item</th></tr><tr><td>a</td></tr></table>`,
			map[string]int{"table_missing_caption": 1},
		},
		{
			"empty header",
			`<table><caption>x</caption><tr><th></th><th>Cost</th></tr><tr><td>a</td><td>1</td></tr></table>`,
			map[string]int{"empty_table_header": 1},
		},
		{
			"row and column headers without scope",
			`<table><caption>x</caption><tr><th>Item</th><th>Cost</th></tr><tr><th scope="row">a</th><td>1</td></tr></table>`,
			map[string]int{"th_missing_scope": 2},
		},
		{
			"layout table with th",
			`<table role="presentation"><tr><th>x</th></tr></table>`,
			map[string]int{"layout_table_with_headers": 1},
		},
		{
			"nested table rows stay with their table",
			`<table><caption>x</caption><tr><th>A</th></tr><tr><td><table role="presentation"><tr><td>1</td></tr><tr><td>2</td></tr></table></td></tr></table>`,
			map[string]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countTypes(run(t, TableChecker{}, tt.html)))
		})
	}
}

func TestEveryIssueIsComplete(t *testing.T) {
	raw := `<html><body><nav><a href="/">Home</a></nav><img src="a.png"><a href="#"></a>
<input type="text"><div role="bogus" tabindex="2" onclick="x()"></div><video src="v.mp4"></video>
<table><tr><td>1</td></tr><tr><td>2</td></tr></table></body></html>`
	doc, err := document.Parse(raw, "")
	require.NoError(t, err)
	for _, c := range Default() {
		for _, i := range c.Check(doc) {
			assert.NotEmpty(t, i.Type, c.Name())
			assert.True(t, i.Severity.Valid(), "%s: %s", c.Name(), i.Type)
			assert.NotEmpty(t, i.WCAG, i.Type)
			assert.NotEmpty(t, i.Category, i.Type)
			assert.NotEmpty(t, i.Message, i.Type)
			assert.NotEmpty(t, i.Fix, i.Type)
			assert.NotEmpty(t, i.Element, i.Type)
		}
	}
}
