package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityWeight(t *testing.T) {
	assert.Equal(t, 10, SeverityCritical.Weight())
	assert.Equal(t, 5, SeveritySerious.Weight())
	assert.Equal(t, 2, SeverityModerate.Weight())
	assert.Equal(t, 1, SeverityMinor.Weight())
	assert.Equal(t, 1, Severity("bogus").Weight())
	assert.Equal(t, 1, Severity("").Weight())
}

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, NormalizeSeverity(" Critical "))
	assert.Equal(t, SeverityMinor, NormalizeSeverity("warning"))
	assert.Equal(t, SeverityMinor, NormalizeSeverity(""))
}

func TestNewIssue_Defaults(t *testing.T) {
	i := NewIssue("missing_alt", Severity("weird"), "1.1.1", CategoryImages)
	assert.Equal(t, SeverityMinor, i.Severity)
	assert.Equal(t, "https://www.w3.org/WAI/WCAG21/quickref/#1.1.1", i.LearnMore)
	assert.Empty(t, i.Element)
	assert.Empty(t, i.Selector)

	empty := NewIssue("", SeverityCritical, "", "")
	assert.Empty(t, empty.LearnMore)
}

func TestNewScan_TierColumns(t *testing.T) {
	result := &ScanResult{
		Summary: Summary{
			TotalIssues: 6,
			BySeverity: map[Severity]int{
				SeverityCritical: 1,
				SeveritySerious:  2,
				SeverityModerate: 3,
				SeverityMinor:    0,
			},
		},
		Score: 74,
	}
	s := NewScan("https://example.com", ScanTypeAccessibility, result)
	assert.Equal(t, 1, s.CriticalCount)
	assert.Equal(t, 2, s.WarningCount)
	assert.Equal(t, 3, s.NoticeCount)
	assert.Equal(t, 74.0, s.Score())

	assert.Equal(t, 0.0, (&Scan{}).Score())
}
