package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyflow/complyflow/internal/checks"
	"github.com/complyflow/complyflow/internal/document"
	"github.com/complyflow/complyflow/internal/fetch"
	"github.com/complyflow/complyflow/internal/models"
)

type memRecorder struct {
	scans []*models.Scan
	err   error
}

func (m *memRecorder) CreateScan(_ context.Context, s *models.Scan) error {
	if m.err != nil {
		return m.err
	}
	s.ID = fmt.Sprintf("scan-%d", len(m.scans)+1)
	m.scans = append(m.scans, s)
	return nil
}

type staticFetcher struct {
	body string
	err  error
}

func (f staticFetcher) FetchPage(_ context.Context, rawURL string) (*fetch.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Page{URL: rawURL, Body: f.body, ContentType: "text/html; charset=utf-8"}, nil
}

type panicChecker struct{}

func (panicChecker) Name() string { return "panic" }

func (panicChecker) Check(*document.Document) []models.Issue { panic("checker exploded") }

const examplePage = `<html><body><h2>Title</h2><img src="x.jpg"></body></html>`

func TestScan_Example(t *testing.T) {
	rec := &memRecorder{}
	s := New(staticFetcher{body: examplePage}, rec,
		WithCheckers(checks.ImageChecker{}, checks.HeadingChecker{}))

	res := s.Scan(context.Background(), "https://example.test/")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "scan-1", res.ScanID)
	assert.Equal(t, 85.0, res.Score)

	types := map[string]models.Severity{}
	for _, i := range res.Issues {
		types[i.Type] = i.Severity
	}
	assert.Equal(t, map[string]models.Severity{
		"missing_alt": models.SeverityCritical,
		"missing_h1":  models.SeveritySerious,
	}, types)
	// Registration order: images before headings.
	assert.Equal(t, "missing_alt", res.Issues[0].Type)

	require.Len(t, rec.scans, 1)
	row := rec.scans[0]
	assert.Equal(t, models.ScanTypeAccessibility, row.Type)
	assert.Equal(t, 1, row.CriticalCount)
	assert.Equal(t, 1, row.WarningCount)
	assert.Equal(t, 0, row.NoticeCount)
	assert.Equal(t, 85.0, row.Score())
}

func TestScan_FetchFailureNotPersisted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	rec := &memRecorder{}
	s := New(fetch.New(), rec)

	res := s.Scan(context.Background(), srv.URL)
	assert.False(t, res.Success)
	assert.Equal(t, "HTTP 404 error", res.Error)
	assert.Empty(t, res.Issues)
	assert.Empty(t, rec.scans)

	var fe *fetch.FetchError
	require.True(t, errors.As(res.Err(), &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestScan_PanicRecovered(t *testing.T) {
	rec := &memRecorder{}
	s := New(staticFetcher{body: examplePage}, rec,
		WithCheckers(checks.ImageChecker{}, panicChecker{}))

	res := s.Scan(context.Background(), "https://example.test/")
	assert.False(t, res.Success)
	assert.Equal(t, "checker exploded", res.Error)
	assert.Nil(t, res.Summary)
	assert.Empty(t, rec.scans)
}

func TestScan_PersistFailureStillSucceeds(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	s := New(staticFetcher{body: examplePage}, rec,
		WithCheckers(checks.ImageChecker{}, checks.HeadingChecker{}))

	res := s.Scan(context.Background(), "https://example.test/")
	assert.True(t, res.Success)
	assert.Empty(t, res.ScanID)
	assert.Equal(t, 85.0, res.Score)
	assert.Len(t, res.Issues, 2)
}

func TestScan_IssueFilter(t *testing.T) {
	var gotURL string
	filter := func(_ context.Context, url string, issues []models.Issue) []models.Issue {
		gotURL = url
		var out []models.Issue
		for _, i := range issues {
			if i.Type != "missing_alt" {
				out = append(out, i)
			}
		}
		return out
	}
	s := New(staticFetcher{body: examplePage}, nil,
		WithCheckers(checks.ImageChecker{}, checks.HeadingChecker{}),
		WithIssueFilter(filter))

	res := s.Scan(context.Background(), "https://example.test/")
	require.True(t, res.Success)
	assert.Equal(t, "https://example.test/", gotURL)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "missing_h1", res.Issues[0].Type)
	assert.Equal(t, 95.0, res.Score)
	assert.Empty(t, res.ScanID)
}

func TestScan_FilterReturningNil(t *testing.T) {
	s := New(staticFetcher{body: examplePage}, nil,
		WithIssueFilter(func(context.Context, string, []models.Issue) []models.Issue { return nil }))

	res := s.Scan(context.Background(), "https://example.test/")
	require.True(t, res.Success)
	assert.NotNil(t, res.Issues)
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, 0, res.Summary.TotalIssues)
}

func TestScan_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &memRecorder{}
	s := New(staticFetcher{body: examplePage}, rec)

	res := s.Scan(ctx, "https://example.test/")
	assert.False(t, res.Success)
	assert.Equal(t, context.Canceled.Error(), res.Error)
	assert.Empty(t, rec.scans)
}

func TestScanHTML_ScheduledType(t *testing.T) {
	rec := &memRecorder{}
	s := New(nil, rec, WithScanType(models.ScanTypeScheduled))

	res := s.ScanHTML(context.Background(), "file://page.html", examplePage)
	require.True(t, res.Success)
	require.Len(t, rec.scans, 1)
	assert.Equal(t, models.ScanTypeScheduled, rec.scans[0].Type)
	// The full checker set also flags page-level semantics.
	assert.Less(t, res.Score, 85.0)
}
