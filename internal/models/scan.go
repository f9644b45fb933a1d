package models

import "time"

// ScanType tags how a scan row was produced.
type ScanType string

const (
	ScanTypeAccessibility ScanType = "accessibility"
	ScanTypeScheduled     ScanType = "scheduled"
)

// Summary aggregates issue counts for a scan.
type Summary struct {
	TotalIssues int              `json:"total_issues" yaml:"total_issues"`
	BySeverity  map[Severity]int `json:"by_severity" yaml:"by_severity"`
	ByWCAG      map[string]int   `json:"by_wcag" yaml:"by_wcag"`
	ByCategory  map[string]int   `json:"by_category" yaml:"by_category"`
}

// ScanResult is the payload persisted as the JSON blob of a scan row.
type ScanResult struct {
	Issues  []Issue `json:"issues" yaml:"issues"`
	Summary Summary `json:"summary" yaml:"summary"`
	Score   float64 `json:"score" yaml:"score"`
}

// Scan is one persisted scan row. The three count columns mirror the
// critical, serious ("warning") and moderate ("notice") tiers of Result.
type Scan struct {
	ID            string      `json:"id" yaml:"id"`
	URL           string      `json:"url" yaml:"url"`
	Type          ScanType    `json:"scan_type" yaml:"scan_type"`
	CriticalCount int         `json:"critical_count" yaml:"critical_count"`
	WarningCount  int         `json:"warning_count" yaml:"warning_count"`
	NoticeCount   int         `json:"notice_count" yaml:"notice_count"`
	Result        *ScanResult `json:"results" yaml:"results"`
	CreatedAt     time.Time   `json:"created_at" yaml:"created_at"`
}

// Score returns the persisted score, or 0 when the row has no result blob.
func (s *Scan) Score() float64 {
	if s.Result == nil {
		return 0
	}
	return s.Result.Score
}

// NewScan builds a row for url from a computed result, filling the tier columns.
func NewScan(url string, typ ScanType, result *ScanResult) *Scan {
	s := &Scan{URL: url, Type: typ, Result: result}
	if result != nil {
		s.CriticalCount = result.Summary.BySeverity[SeverityCritical]
		s.WarningCount = result.Summary.BySeverity[SeveritySerious]
		s.NoticeCount = result.Summary.BySeverity[SeverityModerate]
	}
	return s
}

// ScanStatistics is an aggregate view over all stored scans.
type ScanStatistics struct {
	TotalScans    int        `json:"total_scans" yaml:"total_scans"`
	UniqueURLs    int        `json:"unique_urls" yaml:"unique_urls"`
	CriticalTotal int        `json:"critical_total" yaml:"critical_total"`
	WarningTotal  int        `json:"warning_total" yaml:"warning_total"`
	NoticeTotal   int        `json:"notice_total" yaml:"notice_total"`
	AverageScore  float64    `json:"average_score" yaml:"average_score"`
	LastScanAt    *time.Time `json:"last_scan_at,omitempty" yaml:"last_scan_at,omitempty"`
}
