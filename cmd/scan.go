package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complyflow/complyflow/internal/checks"
	"github.com/complyflow/complyflow/internal/fetch"
	"github.com/complyflow/complyflow/internal/models"
	"github.com/complyflow/complyflow/internal/output"
	"github.com/complyflow/complyflow/internal/scanner"
	"github.com/complyflow/complyflow/internal/store"
)

var (
	scanFormat  string
	scanFile    string
	scanNoSave  bool
	scanChecks  []string
	scanListURL string
	scanLimit   int
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Scan a web page for accessibility issues",
	Long: `Fetch a page, run every accessibility checker against it and print
the issues, summary and score. The result is saved unless --no-save is set.

Use --file to scan local markup instead of fetching; the URL argument
is then only used to label the result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanRun(args[0])
	},
}

var scanShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanShowRun(args[0])
	},
}

var scanLatestCmd = &cobra.Command{
	Use:   "latest <url>",
	Short: "Show the most recent scan of a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanLatestRun(args[0])
	},
}

var scanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanListRun()
	},
}

var scanDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanDeleteRun(args[0])
	},
}

var scanStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over stored scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanStatsRun()
	},
}

var scanExplainCmd = &cobra.Command{
	Use:   "explain <id>",
	Short: "Ask Claude for a prioritized remediation plan for a stored scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanExplainRun(args[0])
	},
}

func init() {
	scanCmd.PersistentFlags().StringVarP(&scanFormat, "format", "f", "table", "Output format: table, json, csv, yaml")
	scanCmd.Flags().StringVar(&scanFile, "file", "", "Scan markup from a local file instead of fetching the URL")
	scanCmd.Flags().BoolVar(&scanNoSave, "no-save", false, "Do not persist the scan")
	scanCmd.Flags().StringSliceVar(&scanChecks, "checks", nil, "Only run these checkers (e.g. images,headings)")

	scanListCmd.Flags().StringVar(&scanListURL, "url", "", "Filter by URL")
	scanListCmd.Flags().IntVar(&scanLimit, "limit", 20, "Maximum number of scans to list (0 for all)")

	scanCmd.AddCommand(scanShowCmd)
	scanCmd.AddCommand(scanLatestCmd)
	scanCmd.AddCommand(scanListCmd)
	scanCmd.AddCommand(scanDeleteCmd)
	scanCmd.AddCommand(scanStatsCmd)
	scanCmd.AddCommand(scanExplainCmd)
	rootCmd.AddCommand(scanCmd)
}

// newLogger returns the slog logger handed to library packages.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(ui.ErrOut, &slog.HandlerOptions{Level: level}))
}

// newFetcher builds the page fetcher from scanner.* config.
func newFetcher() (*fetch.Client, error) {
	timeout, err := time.ParseDuration(viper.GetString("scanner.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid scanner.timeout: %w", err)
	}
	return fetch.New(
		fetch.WithTimeout(timeout),
		fetch.WithUserAgent(viper.GetString("scanner.user_agent")),
		fetch.WithTLSPolicy(fetch.HostListPolicy(viper.GetStringSlice("scanner.insecure_hosts"))),
	), nil
}

// newScanner wires the fetcher and recorder into a scanner. rec may be nil.
func newScanner(rec scanner.Recorder, typ models.ScanType, checkerNames []string) (*scanner.Scanner, error) {
	f, err := newFetcher()
	if err != nil {
		return nil, err
	}
	opts := []scanner.Option{
		scanner.WithScanType(typ),
		scanner.WithLogger(newLogger()),
	}
	if len(checkerNames) > 0 {
		selected := checks.ByName(checkerNames)
		if len(selected) == 0 {
			return nil, fmt.Errorf("no known checkers in %q", strings.Join(checkerNames, ","))
		}
		opts = append(opts, scanner.WithCheckers(selected...))
	}
	return scanner.New(f, rec, opts...), nil
}

func scanRun(url string) error {
	format, err := output.ParseFormat(scanFormat)
	if err != nil {
		return err
	}

	var rec scanner.Recorder
	if !scanNoSave && !dryRun {
		s, err := getStore()
		if err != nil {
			return err
		}
		rec = s
	} else if dryRun {
		ui.DryRunMsg("Scan of %s will not be saved", url)
	}

	sc, err := newScanner(rec, models.ScanTypeAccessibility, scanChecks)
	if err != nil {
		return err
	}

	var res *scanner.Result
	if scanFile != "" {
		raw, err := os.ReadFile(scanFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", scanFile, err)
		}
		ui.VerboseLog("Scanning %s as %s", scanFile, url)
		res = sc.ScanHTML(cmdContext(), url, string(raw))
	} else {
		ui.VerboseLog("Fetching %s", url)
		res = sc.Scan(cmdContext(), url)
	}

	if !res.Success {
		if format == output.FormatJSON || format == output.FormatYAML {
			_ = renderValue(format, res)
		}
		return fmt.Errorf("scan of %s failed: %s", url, res.Error)
	}

	if err := renderResult(format, res); err != nil {
		return err
	}
	if format == output.FormatTable && rec != nil && res.ScanID == "" {
		ui.Warning("Scan completed but could not be saved")
	}
	return nil
}

// renderValue writes v in one of the structured formats.
func renderValue(format output.Format, v any) error {
	if format == output.FormatYAML {
		return ui.YAML(v)
	}
	return ui.JSON(v)
}

var issueCSVHeaders = []string{"type", "severity", "wcag", "category", "message", "fix", "selector", "element", "learn_more"}

func issueRows(issues []models.Issue) [][]string {
	rows := make([][]string, 0, len(issues))
	for _, i := range issues {
		rows = append(rows, []string{
			i.Type, string(i.Severity), i.WCAG, i.Category, i.Message, i.Fix, i.Selector, i.Element, i.LearnMore,
		})
	}
	return rows
}

func renderResult(format output.Format, res *scanner.Result) error {
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return renderValue(format, res)
	case output.FormatCSV:
		return ui.CSV(issueCSVHeaders, issueRows(res.Issues))
	}

	id := res.ScanID
	if id == "" {
		id = "(not saved)"
	}
	fmt.Fprintf(ui.Out, "URL:    %s\n", output.Cyan(res.URL))
	fmt.Fprintf(ui.Out, "Scan:   %s\n", id)
	fmt.Fprintf(ui.Out, "Score:  %s\n", output.ScoreColor(res.Score))
	if res.Summary != nil {
		fmt.Fprintf(ui.Out, "Issues: %d (%s)\n", res.Summary.TotalIssues, severityBreakdown(res.Summary.BySeverity))
	}
	fmt.Fprintln(ui.Out)
	return renderIssues(res.Issues)
}

func renderIssues(issues []models.Issue) error {
	if len(issues) == 0 {
		ui.Success("No accessibility issues found")
		return nil
	}
	table := ui.Table([]string{"Severity", "Type", "WCAG", "Selector", "Message"})
	for _, i := range issues {
		if err := table.Append([]string{
			output.SeverityColor(string(i.Severity)),
			i.Type,
			i.WCAG,
			i.Selector,
			i.Message,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// severityBreakdown formats counts most severe first, e.g. "2 critical, 1 minor".
func severityBreakdown(counts map[models.Severity]int) string {
	var parts []string
	for _, sev := range models.Severities {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	// Severities outside the known set are kept, in a stable order.
	var other []string
	for sev, n := range counts {
		if !sev.Valid() && n > 0 {
			other = append(other, fmt.Sprintf("%d %s", n, sev))
		}
	}
	sort.Strings(other)
	parts = append(parts, other...)
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func scanShowRun(id string) error {
	format, err := output.ParseFormat(scanFormat)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	scan, err := s.GetScan(cmdContext(), id)
	if err != nil {
		return err
	}
	return renderScan(format, scan)
}

func scanLatestRun(url string) error {
	format, err := output.ParseFormat(scanFormat)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	scan, err := s.GetLatestScan(cmdContext(), url)
	if err != nil {
		return err
	}
	return renderScan(format, scan)
}

// renderScan prints a stored row with the same layout as a live scan.
func renderScan(format output.Format, scan *models.Scan) error {
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return renderValue(format, scan)
	}

	res := &scanner.Result{Success: true, ScanID: scan.ID, URL: scan.URL, Score: scan.Score()}
	if scan.Result != nil {
		res.Issues = scan.Result.Issues
		res.Summary = &scan.Result.Summary
	}
	if format == output.FormatTable {
		fmt.Fprintf(ui.Out, "Date:   %s (%s)\n", scan.CreatedAt.Local().Format(time.DateTime), scan.Type)
	}
	return renderResult(format, res)
}

var scanCSVHeaders = []string{"id", "url", "scan_type", "score", "critical_count", "warning_count", "notice_count", "created_at"}

func scanListRun() error {
	format, err := output.ParseFormat(scanFormat)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	scans, err := s.ListScans(cmdContext(), store.ScanListFilter{URL: scanListURL, Limit: scanLimit})
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON, output.FormatYAML:
		if scans == nil {
			scans = []*models.Scan{}
		}
		return renderValue(format, scans)
	case output.FormatCSV:
		rows := make([][]string, 0, len(scans))
		for _, sc := range scans {
			rows = append(rows, []string{
				sc.ID,
				sc.URL,
				string(sc.Type),
				strconv.FormatFloat(sc.Score(), 'f', 2, 64),
				strconv.Itoa(sc.CriticalCount),
				strconv.Itoa(sc.WarningCount),
				strconv.Itoa(sc.NoticeCount),
				sc.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return ui.CSV(scanCSVHeaders, rows)
	}

	if len(scans) == 0 {
		ui.Info("No scans found. Use 'complyflow scan <url>' to run one.")
		return nil
	}

	table := ui.Table([]string{"ID", "URL", "Type", "Score", "Critical", "Serious", "Moderate", "Date"})
	for _, sc := range scans {
		if err := table.Append([]string{
			sc.ID,
			output.Cyan(sc.URL),
			string(sc.Type),
			output.ScoreColor(sc.Score()),
			strconv.Itoa(sc.CriticalCount),
			strconv.Itoa(sc.WarningCount),
			strconv.Itoa(sc.NoticeCount),
			sc.CreatedAt.Local().Format(time.DateTime),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func scanDeleteRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	if dryRun {
		if _, err := s.GetScan(cmdContext(), id); err != nil {
			return err
		}
		ui.DryRunMsg("Would delete scan %s", id)
		return nil
	}
	if err := s.DeleteScan(cmdContext(), id); err != nil {
		return err
	}
	ui.Success("Deleted scan %s", id)
	return nil
}

func scanStatsRun() error {
	format, err := output.ParseFormat(scanFormat)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	stats, err := s.Statistics(cmdContext())
	if err != nil {
		return err
	}

	last := ""
	if stats.LastScanAt != nil {
		last = stats.LastScanAt.UTC().Format(time.RFC3339)
	}

	switch format {
	case output.FormatJSON, output.FormatYAML:
		return renderValue(format, stats)
	case output.FormatCSV:
		return ui.CSV(
			[]string{"total_scans", "unique_urls", "critical_total", "warning_total", "notice_total", "average_score", "last_scan_at"},
			[][]string{{
				strconv.Itoa(stats.TotalScans),
				strconv.Itoa(stats.UniqueURLs),
				strconv.Itoa(stats.CriticalTotal),
				strconv.Itoa(stats.WarningTotal),
				strconv.Itoa(stats.NoticeTotal),
				strconv.FormatFloat(stats.AverageScore, 'f', 2, 64),
				last,
			}},
		)
	}

	if last == "" {
		last = "never"
	}
	table := ui.Table([]string{"Metric", "Value"})
	rows := [][]string{
		{"Scans", strconv.Itoa(stats.TotalScans)},
		{"URLs", strconv.Itoa(stats.UniqueURLs)},
		{"Critical issues", strconv.Itoa(stats.CriticalTotal)},
		{"Serious issues", strconv.Itoa(stats.WarningTotal)},
		{"Moderate issues", strconv.Itoa(stats.NoticeTotal)},
		{"Average score", output.ScoreColor(stats.AverageScore)},
		{"Last scan", last},
	}
	for _, r := range rows {
		if err := table.Append(r); err != nil {
			return err
		}
	}
	return table.Render()
}

func scanExplainRun(id string) error {
	format, err := output.ParseFormat(scanFormat)
	if err != nil {
		return err
	}
	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	scan, err := s.GetScan(cmdContext(), id)
	if err != nil {
		return err
	}
	if scan.Result == nil || len(scan.Result.Issues) == 0 {
		ui.Success("Scan %s has no issues to remediate", id)
		return nil
	}

	ui.VerboseLog("Requesting remediation plan for %d issues", len(scan.Result.Issues))
	plan, err := client.ExplainScan(cmdContext(), scan.URL, scan.Result)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON, output.FormatYAML:
		return renderValue(format, plan)
	case output.FormatCSV:
		rows := make([][]string, 0, len(plan.Steps))
		for _, st := range plan.Steps {
			rows = append(rows, []string{strconv.Itoa(st.Priority), st.Title, strings.Join(st.IssueTypes, " "), st.Action})
		}
		return ui.CSV([]string{"priority", "title", "issue_types", "action"}, rows)
	}

	fmt.Fprintln(ui.Out, plan.Summary)
	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"#", "Step", "Issues", "Action"})
	for _, st := range plan.Steps {
		if err := table.Append([]string{strconv.Itoa(st.Priority), st.Title, strings.Join(st.IssueTypes, ", "), st.Action}); err != nil {
			return err
		}
	}
	return table.Render()
}
