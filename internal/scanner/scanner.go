// Package scanner runs the accessibility pipeline for a single page:
// fetch, parse, check, score, summarize and persist.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/complyflow/complyflow/internal/checks"
	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/fetch"
	"github.com/complyflow/complyflow/internal/models"
)

// Fetcher retrieves a page body for a URL.
type Fetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Recorder persists a finished scan. CreateScan assigns the row id.
type Recorder interface {
	CreateScan(ctx context.Context, scan *models.Scan) error
}

// IssueFilter post-processes the combined issue list before scoring. It may
// drop, rewrite or add issues.
type IssueFilter func(ctx context.Context, url string, issues []models.Issue) []models.Issue

// Result is the outcome of one scan. On failure only Success and Error are set.
type Result struct {
	Success bool            `json:"success" yaml:"success"`
	ScanID  string          `json:"scan_id" yaml:"scan_id"`
	URL     string          `json:"url,omitempty" yaml:"url,omitempty"`
	Issues  []models.Issue  `json:"issues,omitempty" yaml:"issues,omitempty"`
	Summary *models.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Score   float64         `json:"score" yaml:"score"`
	Error   string          `json:"error,omitempty" yaml:"error,omitempty"`

	err error
}

func failed(url string, err error) *Result {
	return &Result{URL: url, Error: err.Error(), err: err}
}

// Err returns the failure as an error, or nil for a successful scan. Fetch
// failures unwrap to *fetch.FetchError.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Error)
}

// Scanner orchestrates a scan. It holds no per-scan state and is safe for
// concurrent use when its Fetcher and Recorder are.
type Scanner struct {
	fetcher  Fetcher
	recorder Recorder
	checkers []checks.Checker
	filter   IssueFilter
	scanType models.ScanType
	logger   *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithCheckers replaces the default checker set.
func WithCheckers(c ...checks.Checker) Option {
	return func(s *Scanner) { s.checkers = c }
}

// WithIssueFilter installs a post-processing hook.
func WithIssueFilter(f IssueFilter) Option {
	return func(s *Scanner) { s.filter = f }
}

// WithScanType sets the type recorded on persisted rows.
func WithScanType(t models.ScanType) Option {
	return func(s *Scanner) { s.scanType = t }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// New creates a Scanner. recorder may be nil, in which case results are
// never persisted and ScanID stays empty.
func New(fetcher Fetcher, recorder Recorder, opts ...Option) *Scanner {
	s := &Scanner{
		fetcher:  fetcher,
		recorder: recorder,
		checkers: checks.Default(),
		scanType: models.ScanTypeAccessibility,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan fetches url and runs the full pipeline over it.
func (s *Scanner) Scan(ctx context.Context, url string) *Result {
	page, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		s.logger.Warn("fetch failed", "url", url, "error", err)
		return failed(url, err)
	}
	return s.run(ctx, url, page.Body, page.ContentType)
}

// ScanHTML runs the pipeline over already-fetched markup attributed to url.
func (s *Scanner) ScanHTML(ctx context.Context, url, raw string) *Result {
	return s.run(ctx, url, raw, "")
}

func (s *Scanner) run(ctx context.Context, url, raw, contentType string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan panicked", "url", url, "panic", r)
			res = failed(url, fmt.Errorf("%v", r))
		}
	}()

	result, err := s.analyze(ctx, url, raw, contentType)
	if err != nil {
		s.logger.Error("scan failed", "url", url, "error", err)
		return failed(url, err)
	}

	res = &Result{
		Success: true,
		URL:     url,
		Issues:  result.Issues,
		Summary: &result.Summary,
		Score:   result.Score,
	}

	if s.recorder == nil {
		return res
	}
	row := models.NewScan(url, s.scanType, result)
	if err := s.recorder.CreateScan(ctx, row); err != nil {
		s.logger.Warn("persist scan failed", "url", url, "error", err)
		return res
	}
	res.ScanID = row.ID
	s.logger.Info("scan complete", "url", url, "scan_id", row.ID, "issues", len(result.Issues), "score", result.Score)
	return res
}

// analyze parses raw and computes issues, score and summary.
func (s *Scanner) analyze(ctx context.Context, url, raw, contentType string) (*models.ScanResult, error) {
	doc, err := document.Parse(raw, contentType)
	if err != nil {
		return nil, err
	}

	issues := []models.Issue{}
	for _, c := range s.checkers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found := c.Check(doc)
		s.logger.Debug("checker done", "checker", c.Name(), "issues", len(found))
		issues = append(issues, found...)
	}
	if s.filter != nil {
		issues = s.filter(ctx, url, issues)
		if issues == nil {
			issues = []models.Issue{}
		}
	}

	return &models.ScanResult{
		Issues:  issues,
		Summary: Summarize(issues),
		Score:   CalculateScore(issues),
	}, nil
}
