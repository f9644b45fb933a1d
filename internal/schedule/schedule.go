// Package schedule re-scans a fixed list of URLs at a configured frequency.
package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/complyflow/complyflow/internal/scanner"
)

// Named frequencies accepted by ParseFrequency.
var frequencies = map[string]time.Duration{
	"hourly":     time.Hour,
	"twicedaily": 12 * time.Hour,
	"daily":      24 * time.Hour,
	"weekly":     7 * 24 * time.Hour,
}

// ParseFrequency accepts hourly, twicedaily, daily, weekly or a positive Go
// duration such as "90m".
func ParseFrequency(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := frequencies[s]; ok {
		return d, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule frequency %q: want hourly, twicedaily, daily, weekly or a duration", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid schedule frequency %q: must be positive", s)
	}
	return d, nil
}

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, url string) *scanner.Result
}

// Outcome is the result of scanning one URL during a pass.
type Outcome struct {
	URL    string
	Result *scanner.Result
}

// Runner scans URLs sequentially, once per tick. Runs for the same URL are
// not mutually excluded across processes.
type Runner struct {
	Scanner   Scanner
	URLs      []string
	Frequency time.Duration
	Logger    *slog.Logger

	// OnPass, when set, is called after every completed pass.
	OnPass func([]Outcome)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RunOnce scans every configured URL in order. Blank and repeated URLs are
// skipped. A cancelled context stops the pass before the next URL.
func (r *Runner) RunOnce(ctx context.Context) []Outcome {
	log := r.logger()
	seen := make(map[string]bool, len(r.URLs))
	var out []Outcome

	for _, u := range r.URLs {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		if ctx.Err() != nil {
			log.Warn("scheduled pass interrupted", "remaining_from", u)
			break
		}

		res := r.Scanner.Scan(ctx, u)
		if res.Success {
			log.Info("scheduled scan", "url", u, "scan_id", res.ScanID, "score", res.Score)
		} else {
			log.Warn("scheduled scan failed", "url", u, "error", res.Error)
		}
		out = append(out, Outcome{URL: u, Result: res})
	}

	if r.OnPass != nil {
		r.OnPass(out)
	}
	return out
}

// Run performs a pass immediately and then once per Frequency until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.Frequency <= 0 {
		return fmt.Errorf("schedule frequency must be positive, got %s", r.Frequency)
	}
	if len(r.URLs) == 0 {
		return fmt.Errorf("no URLs configured for scheduled scans")
	}

	log := r.logger()
	log.Info("scheduler started", "urls", len(r.URLs), "frequency", r.Frequency)

	ticker := time.NewTicker(r.Frequency)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
