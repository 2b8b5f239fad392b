package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pomoc-ai/pomoc/internal/log"
	"github.com/pomoc-ai/pomoc/internal/pipeline"
)

// Request validation constants.
const (
	// MaxQueryLength bounds the query body field, in bytes.
	MaxQueryLength = 2000
	// MaxBodyBytes bounds the whole request body.
	MaxBodyBytes = 64 * 1024

	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// SupportHandler exposes the pipeline over HTTP.
type SupportHandler struct {
	pipe   *pipeline.Orchestrator
	logger log.Logger
}

// NewSupportHandler creates a new support handler.
func NewSupportHandler(pipe *pipeline.Orchestrator, logger log.Logger) *SupportHandler {
	return &SupportHandler{pipe: pipe, logger: logger}
}

// RegisterRoutes registers support routes on the given mux.
func (h *SupportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /support/ask", h.ask)
	mux.HandleFunc("GET /support/stats", h.stats)
	mux.HandleFunc("GET /support/recent", h.recent)
}

// AskRequest is the request body for POST /support/ask.
type AskRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// ask runs one query through the pipeline and returns the full response.
// Guardrail blocks and degraded retrieval are regular 200 responses; the
// response body carries requires_human and blocked_reason.
func (h *SupportHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long")
		return
	}

	resp, err := h.pipe.Answer(r.Context(), pipeline.Query{
		Text:     req.Query,
		Category: req.Category,
		UserID:   req.UserID,
	})
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			// Client went away; nothing useful to write.
			return
		}
		h.logger.Error("answering query", "error", err)
		writeError(w, http.StatusInternalServerError, "pipeline_error", "failed to answer query")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// stats returns the aggregated pipeline counters.
func (h *SupportHandler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pipe.Stats().Snapshot())
}

// recent returns the most recent pipeline responses, newest last.
func (h *SupportHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultRecentLimit, 1, MaxRecentLimit)
	responses := h.pipe.Stats().Recent(limit)

	writeJSON(w, http.StatusOK, map[string]any{
		"responses": responses,
		"count":     len(responses),
	})
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
