package cmd

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/complyflow/complyflow/internal/models"
	"github.com/complyflow/complyflow/internal/store"
)

// reportTopIssues is how many issue types are listed per URL.
const reportTopIssues = 5

var (
	reportFormat string
	reportURL    string
	reportSince  time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a compliance report from stored scans",
	Long: `Summarize the latest scan of every URL, with the score change since
the previous scan and the most frequent issue types.

Markdown output is suitable for pasting into a ticket or wiki page.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportRun()
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "Output format: markdown, json, yaml")
	reportCmd.Flags().StringVar(&reportURL, "url", "", "Only report on this URL")
	reportCmd.Flags().DurationVar(&reportSince, "since", 0, "Only include scans newer than this (e.g. 168h)")
	rootCmd.AddCommand(reportCmd)
}

// IssueCount is the number of occurrences of one issue type.
type IssueCount struct {
	Type     string          `json:"type" yaml:"type"`
	Severity models.Severity `json:"severity" yaml:"severity"`
	WCAG     string          `json:"wcag" yaml:"wcag"`
	Count    int             `json:"count" yaml:"count"`
}

// URLReport is the report entry for one URL.
type URLReport struct {
	URL       string       `json:"url" yaml:"url"`
	ScanID    string       `json:"scan_id" yaml:"scan_id"`
	ScannedAt time.Time    `json:"scanned_at" yaml:"scanned_at"`
	Score     float64      `json:"score" yaml:"score"`
	Change    *float64     `json:"change,omitempty" yaml:"change,omitempty"`
	Critical  int          `json:"critical" yaml:"critical"`
	Serious   int          `json:"serious" yaml:"serious"`
	Moderate  int          `json:"moderate" yaml:"moderate"`
	Scans     int          `json:"scans" yaml:"scans"`
	TopIssues []IssueCount `json:"top_issues" yaml:"top_issues"`
}

// buildReport groups scans (newest first) by URL.
func buildReport(scans []*models.Scan) []URLReport {
	byURL := map[string]*URLReport{}
	var order []string

	for _, sc := range scans {
		r, seen := byURL[sc.URL]
		if !seen {
			r = &URLReport{
				URL:       sc.URL,
				ScanID:    sc.ID,
				ScannedAt: sc.CreatedAt,
				Score:     sc.Score(),
				Critical:  sc.CriticalCount,
				Serious:   sc.WarningCount,
				Moderate:  sc.NoticeCount,
				TopIssues: topIssues(sc.Result),
			}
			byURL[sc.URL] = r
			order = append(order, sc.URL)
		} else if r.Scans == 1 {
			change := round2(r.Score - sc.Score())
			r.Change = &change
		}
		r.Scans++
	}

	reports := make([]URLReport, 0, len(order))
	for _, u := range order {
		reports = append(reports, *byURL[u])
	}
	// Worst pages first.
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Score < reports[j].Score })
	return reports
}

func topIssues(result *models.ScanResult) []IssueCount {
	if result == nil {
		return []IssueCount{}
	}
	counts := map[string]*IssueCount{}
	for _, i := range result.Issues {
		c, ok := counts[i.Type]
		if !ok {
			c = &IssueCount{Type: i.Type, Severity: i.Severity, WCAG: i.WCAG}
			counts[i.Type] = c
		}
		c.Count++
	}
	out := make([]IssueCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if wi, wj := out[i].Severity.Weight(), out[j].Severity.Weight(); wi != wj {
			return wi > wj
		}
		return out[i].Type < out[j].Type
	})
	if len(out) > reportTopIssues {
		out = out[:reportTopIssues]
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func reportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	scans, err := s.ListScans(cmdContext(), store.ScanListFilter{URL: reportURL})
	if err != nil {
		return err
	}
	if reportSince > 0 {
		cutoff := time.Now().Add(-reportSince)
		kept := scans[:0]
		for _, sc := range scans {
			if sc.CreatedAt.After(cutoff) {
				kept = append(kept, sc)
			}
		}
		scans = kept
	}
	reports := buildReport(scans)

	switch strings.ToLower(reportFormat) {
	case "json":
		return ui.JSON(reports)
	case "yaml", "yml":
		return ui.YAML(reports)
	case "markdown", "md":
		writeMarkdownReport(reports)
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: markdown, json, yaml)", reportFormat)
	}
}

func writeMarkdownReport(reports []URLReport) {
	fmt.Fprintln(ui.Out, "# Accessibility Report")
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "Generated %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if len(reports) == 0 {
		fmt.Fprintln(ui.Out, "No scans found.")
		return
	}

	fmt.Fprintln(ui.Out, "| URL | Score | Change | Critical | Serious | Moderate | Scanned |")
	fmt.Fprintln(ui.Out, "|-----|-------|--------|----------|---------|----------|---------|")
	for _, r := range reports {
		fmt.Fprintf(ui.Out, "| %s | %.2f | %s | %d | %d | %d | %s |\n",
			mdEscape(r.URL), r.Score, formatChange(r.Change), r.Critical, r.Serious, r.Moderate,
			r.ScannedAt.UTC().Format("2006-01-02"))
	}

	for _, r := range reports {
		fmt.Fprintf(ui.Out, "\n## %s\n\n", r.URL)
		if len(r.TopIssues) == 0 {
			fmt.Fprintln(ui.Out, "No issues found.")
			continue
		}
		for _, c := range r.TopIssues {
			fmt.Fprintf(ui.Out, "- %s (%s, WCAG %s): %d\n", c.Type, c.Severity, c.WCAG, c.Count)
		}
	}
}

func formatChange(change *float64) string {
	if change == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f", *change)
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
