package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/complyflow/complyflow/internal/fetch"
	"github.com/complyflow/complyflow/internal/llm"
	"github.com/complyflow/complyflow/internal/models"
	"github.com/complyflow/complyflow/internal/scanner"
	"github.com/complyflow/complyflow/internal/store"
)

// defaultListLimit caps list responses when no limit is given.
const defaultListLimit = 50

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, url string) *scanner.Result
}

// Explainer produces a remediation plan for a stored scan.
type Explainer interface {
	ExplainScan(ctx context.Context, url string, result *models.ScanResult) (*llm.Remediation, error)
}

// Server provides the REST API handlers.
type Server struct {
	scanner   Scanner
	repo      store.Repository
	explainer Explainer
	logger    *slog.Logger
}

// NewServer creates a new API server. explainer may be nil if no API key is
// configured.
func NewServer(sc Scanner, repo store.Repository, explainer Explainer) *Server {
	return &Server{
		scanner:   sc,
		repo:      repo,
		explainer: explainer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/scans", s.createScan)
	mux.HandleFunc("GET /api/v1/scans", s.listScans)
	mux.HandleFunc("GET /api/v1/scans/latest", s.latestScan)
	mux.HandleFunc("GET /api/v1/scans/{id}", s.getScan)
	mux.HandleFunc("DELETE /api/v1/scans/{id}", s.deleteScan)
	mux.HandleFunc("POST /api/v1/scans/{id}/explain", s.explainScan)

	mux.HandleFunc("GET /api/v1/statistics", s.statistics)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps repository errors onto 404 or 500.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// --- Scans ---

type scanRequest struct {
	URL string `json:"url"`
}

func (s *Server) createScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	res := s.scanner.Scan(r.Context(), req.URL)
	if res.Success {
		writeJSON(w, http.StatusOK, res)
		return
	}

	s.logger.Warn("scan request failed", "url", req.URL, "error", res.Error)
	var fe *fetch.FetchError
	if errors.As(res.Err(), &fe) {
		writeJSON(w, http.StatusBadGateway, res)
		return
	}
	writeJSON(w, http.StatusInternalServerError, res)
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ScanListFilter{
		URL:   q.Get("url"),
		Type:  models.ScanType(q.Get("type")),
		Limit: defaultListLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	scans, err := s.repo.ListScans(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if scans == nil {
		scans = []*models.Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) latestScan(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	scan, err := s.repo.GetLatestScan(r.Context(), url)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.repo.GetScan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) deleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteScan(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) explainScan(w http.ResponseWriter, r *http.Request) {
	if s.explainer == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM not configured: set anthropic.api_key or ANTHROPIC_API_KEY")
		return
	}
	scan, err := s.repo.GetScan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	plan, err := s.explainer.ExplainScan(r.Context(), scan.URL, scan.Result)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// --- Statistics ---

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.repo.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
