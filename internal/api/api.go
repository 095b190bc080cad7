// Package api exposes the analysis engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/PiyushKumar010/Pattern-Recognition/condition"
	"github.com/PiyushKumar010/Pattern-Recognition/dataset"
	"github.com/PiyushKumar010/Pattern-Recognition/engine"
	"github.com/PiyushKumar010/Pattern-Recognition/history"
)

// Options configures the HTTP server.
type Options struct {
	// MaxTotalCombinations is the ceiling reported by the limits endpoint.
	// Must match the engine's ceiling.
	MaxTotalCombinations int

	// DefaultFragmentEstimate seeds limit feedback for unconfigured columns.
	DefaultFragmentEstimate int

	Logger *slog.Logger
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine *engine.Engine
	opts   Options
	logger *slog.Logger
	router *mux.Router
}

// NewServer creates the HTTP server over the given engine.
func NewServer(eng *engine.Engine, opts Options) *Server {
	if opts.MaxTotalCombinations <= 0 {
		opts.MaxTotalCombinations = engine.DefaultMaxTotalCombinations
	}
	if opts.DefaultFragmentEstimate <= 0 {
		opts.DefaultFragmentEstimate = condition.DefaultFragmentEstimate
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{engine: eng, opts: opts, logger: opts.Logger}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/analysis", s.handleSubmit).Methods(http.MethodPost)
	v1.HandleFunc("/analysis/{id}", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/analysis/{id}/preview", s.handlePreview).Methods(http.MethodGet)
	v1.HandleFunc("/history", s.handleHistoryList).Methods(http.MethodGet)
	v1.HandleFunc("/history", s.handleHistoryClear).Methods(http.MethodDelete)
	v1.HandleFunc("/history/stats", s.handleHistoryStats).Methods(http.MethodGet)
	v1.HandleFunc("/history/{id}", s.handleHistoryDelete).Methods(http.MethodDelete)
	v1.HandleFunc("/limits", s.handleLimits).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// wrappedWriter captures the response status for request logging.
type wrappedWriter struct {
	http.ResponseWriter
	status int
}

func (w *wrappedWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrappedWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.status, "elapsed", time.Since(start))
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	res, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runResponse(run))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.Preview(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)
	runs, err := s.engine.History(r.Context(), limit, offset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	out := make([]map[string]any, len(runs))
	for i := range runs {
		out[i] = runResponse(&runs[i])
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteRun(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearHistory(r.Context()); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.HistoryStats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleLimits gives live configuration feedback: the maximum fragment count
// for the column being configured and the running combination total.
//
//	GET /v1/limits?selected=3&configured=region:4,tier:2
func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	selected := intQuery(r, "selected", 0)
	configured, err := parseConfigured(r.URL.Query().Get("configured"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	counts := make([]int, 0, len(configured))
	for _, count := range configured {
		counts = append(counts, count)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"max_fragments": condition.MaxFragments(selected, configured,
			s.opts.MaxTotalCombinations, s.opts.DefaultFragmentEstimate),
		"total_combinations": condition.RunningProduct(counts),
		"limit":              s.opts.MaxTotalCombinations,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable", "error": err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// runResponse flattens a run record for transport; preview rows travel
// through the dedicated preview endpoint.
func runResponse(run *history.Run) map[string]any {
	out := map[string]any{
		"id":                run.ID,
		"dataset":           run.Dataset,
		"status":            run.Status,
		"started_at":        run.StartedAt,
		"execution_time_ms": run.ExecutionTime.Milliseconds(),
		"row_count":         run.RowCount,
		"error_count":       run.ErrorCount,
	}
	if run.CompletedAt != nil {
		out["completed_at"] = run.CompletedAt
	}
	if run.ErrorMessage != "" {
		out["error"] = run.ErrorMessage
	}
	return out
}

// parseConfigured parses "col:count,col:count" pairs.
func parseConfigured(raw string) (map[string]int, error) {
	if raw == "" {
		return nil, nil
	}
	configured := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		name, countStr, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed configured pair %q, want col:count", pair)
		}
		count, err := strconv.Atoi(countStr)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("malformed fragment count in %q", pair)
		}
		configured[name] = count
	}
	return configured, nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// writeEngineError maps engine error types to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var (
		limitErr   *engine.LimitExceededError
		invalidErr *condition.InvalidConditionError
	)
	switch {
	case errors.As(err, &limitErr), errors.As(err, &invalidErr),
		errors.Is(err, engine.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, history.ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case dataset.IsUnavailable(err):
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
