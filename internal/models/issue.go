package models

import "strings"

// Severity ranks how badly an issue blocks users of assistive technology.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySerious  Severity = "serious"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Severities lists the known tiers from most to least severe.
var Severities = []Severity{SeverityCritical, SeveritySerious, SeverityModerate, SeverityMinor}

// Valid reports whether s is one of the four known tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeveritySerious, SeverityModerate, SeverityMinor:
		return true
	}
	return false
}

// Weight is the score impact of a single issue at this severity.
// Unknown severities weigh the same as minor.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 10
	case SeveritySerious:
		return 5
	case SeverityModerate:
		return 2
	default:
		return 1
	}
}

// NormalizeSeverity maps free-form input onto a known tier, falling back to minor.
func NormalizeSeverity(s string) Severity {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Valid() {
		return sev
	}
	return SeverityMinor
}

// Issue categories used by the built-in checkers.
const (
	CategoryImages     = "images"
	CategoryStructure  = "structure"
	CategoryColor      = "color"
	CategoryForms      = "forms"
	CategoryARIA       = "aria"
	CategoryLinks      = "links"
	CategoryKeyboard   = "keyboard"
	CategorySemantic   = "semantic"
	CategoryMultimedia = "multimedia"
	CategoryTables     = "tables"
)

// Issue is a single accessibility finding on a page.
type Issue struct {
	Type      string   `json:"type" yaml:"type"`
	Severity  Severity `json:"severity" yaml:"severity"`
	WCAG      string   `json:"wcag" yaml:"wcag"`
	Category  string   `json:"category" yaml:"category"`
	Message   string   `json:"message" yaml:"message"`
	Fix       string   `json:"fix" yaml:"fix"`
	LearnMore string   `json:"learn_more" yaml:"learn_more"`
	Element   string   `json:"element" yaml:"element"`
	Selector  string   `json:"selector" yaml:"selector"`
}

// NewIssue returns an issue with the identifying fields set. The remaining
// fields default to empty strings, and an unknown severity becomes minor.
func NewIssue(typ string, severity Severity, wcag, category string) Issue {
	if !severity.Valid() {
		severity = SeverityMinor
	}
	return Issue{
		Type:      typ,
		Severity:  severity,
		WCAG:      wcag,
		Category:  category,
		LearnMore: LearnMoreURL(wcag),
	}
}

// LearnMoreURL points at the W3C "Understanding" quick reference for a criterion.
func LearnMoreURL(wcag string) string {
	if wcag == "" {
		return ""
	}
	return "https://www.w3.org/WAI/WCAG21/quickref/#" + wcag
}
