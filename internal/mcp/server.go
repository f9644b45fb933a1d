package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/complyflow/complyflow/internal/llm"
	"github.com/complyflow/complyflow/internal/models"
	"github.com/complyflow/complyflow/internal/scanner"
	"github.com/complyflow/complyflow/internal/store"
)

// defaultListLimit caps a11y_list_scans when no limit is given.
const defaultListLimit = 20

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, url string) *scanner.Result
}

// Explainer produces a remediation plan for a scan result.
type Explainer interface {
	ExplainScan(ctx context.Context, url string, result *models.ScanResult) (*llm.Remediation, error)
}

// Server exposes scanning and scan history as MCP tools.
type Server struct {
	scanner   Scanner
	repo      store.Repository
	explainer Explainer
}

// NewServer creates the MCP server wrapper. explainer may be nil, in which
// case a11y_explain_scan is not registered.
func NewServer(sc Scanner, repo store.Repository, explainer Explainer) *Server {
	return &Server{scanner: sc, repo: repo, explainer: explainer}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("complyflow", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.scanURLTool())
	srv.AddTool(s.getScanTool())
	srv.AddTool(s.latestScanTool())
	srv.AddTool(s.listScansTool())
	srv.AddTool(s.statisticsTool())
	if s.explainer != nil {
		srv.AddTool(s.explainScanTool())
	}

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// a11y_scan_url
func (s *Server) scanURLTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("a11y_scan_url",
		mcp.WithDescription("Fetch a web page and scan it for WCAG 2.1 accessibility issues. Returns JSON with success, scan_id, score (0-100), summary counts by severity/WCAG criterion/category, and the issue list. Each issue has type, severity (critical/serious/moderate/minor), wcag, message, fix, element and selector."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http(s) URL of the page to scan")),
	)
	return tool, s.handleScanURL
}

func (s *Server) handleScanURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil || strings.TrimSpace(url) == "" {
		return mcp.NewToolResultError("missing required parameter: url"), nil
	}

	res := s.scanner.Scan(ctx, strings.TrimSpace(url))
	if !res.Success {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %s", res.Error)), nil
	}
	return jsonResult(res, "scan result")
}

// a11y_get_scan
func (s *Server) getScanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("a11y_get_scan",
		mcp.WithDescription("Get a stored scan by ID, including its full issue list."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Scan ID (ULID)")),
	)
	return tool, s.handleGetScan
}

func (s *Server) handleGetScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	scan, err := s.repo.GetScan(ctx, id)
	if err != nil {
		return storeError(err, "get scan"), nil
	}
	return jsonResult(scan, "scan")
}

// a11y_latest_scan
func (s *Server) latestScanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("a11y_latest_scan",
		mcp.WithDescription("Get the most recent stored scan for a URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Page URL exactly as it was scanned")),
	)
	return tool, s.handleLatestScan
}

func (s *Server) handleLatestScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: url"), nil
	}
	scan, err := s.repo.GetLatestScan(ctx, url)
	if err != nil {
		return storeError(err, "get latest scan"), nil
	}
	return jsonResult(scan, "scan")
}

// a11y_list_scans
func (s *Server) listScansTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("a11y_list_scans",
		mcp.WithDescription("List stored scans newest first. Returns id, url, scan_type, score, tier counts and created_at for each scan; use a11y_get_scan for issues."),
		mcp.WithString("url", mcp.Description("Only scans of this URL")),
		mcp.WithString("type", mcp.Description("Scan type filter: accessibility, scheduled")),
		mcp.WithNumber("limit", mcp.Description("Maximum scans to return (default 20)")),
	)
	return tool, s.handleListScans
}

func (s *Server) handleListScans(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ScanListFilter{
		URL:   request.GetString("url", ""),
		Type:  models.ScanType(request.GetString("type", "")),
		Limit: request.GetInt("limit", defaultListLimit),
	}
	scans, err := s.repo.ListScans(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list scans: %v", err)), nil
	}

	type scanOut struct {
		ID            string  `json:"id"`
		URL           string  `json:"url"`
		Type          string  `json:"scan_type"`
		Score         float64 `json:"score"`
		CriticalCount int     `json:"critical_count"`
		WarningCount  int     `json:"warning_count"`
		NoticeCount   int     `json:"notice_count"`
		CreatedAt     string  `json:"created_at"`
	}

	out := make([]scanOut, len(scans))
	for i, sc := range scans {
		out[i] = scanOut{
			ID:            sc.ID,
			URL:           sc.URL,
			Type:          string(sc.Type),
			Score:         sc.Score(),
			CriticalCount: sc.CriticalCount,
			WarningCount:  sc.WarningCount,
			NoticeCount:   sc.NoticeCount,
			CreatedAt:     sc.CreatedAt.Format(time.RFC3339),
		}
	}
	return jsonResult(out, "scans")
}

// a11y_statistics
func (s *Server) statisticsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("a11y_statistics",
		mcp.WithDescription("Aggregate statistics over all stored scans: totals, distinct URLs, tier counts, average score and last scan time."),
	)
	return tool, s.handleStatistics
}

func (s *Server) handleStatistics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.repo.Statistics(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute statistics: %v", err)), nil
	}
	return jsonResult(st, "statistics")
}

// a11y_explain_scan
func (s *Server) explainScanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("a11y_explain_scan",
		mcp.WithDescription("Generate a prioritized remediation plan for a stored scan using an LLM. Returns JSON with summary and ordered steps."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Scan ID (ULID)")),
	)
	return tool, s.handleExplainScan
}

func (s *Server) handleExplainScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	scan, err := s.repo.GetScan(ctx, id)
	if err != nil {
		return storeError(err, "get scan"), nil
	}
	plan, err := s.explainer.ExplainScan(ctx, scan.URL, scan.Result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to explain scan: %v", err)), nil
	}
	return jsonResult(plan, "remediation plan")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any, what string) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func storeError(err error, op string) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", op, err))
}
