package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kestrel0/ragdex/internal/log"
)

// MaxQueryLength bounds one query's size.
const MaxQueryLength = 8 << 10

// Searcher runs raw retrieval and returns a formatted text block.
type Searcher interface {
	Search(ctx context.Context, query string, n int) (string, error)
}

// Asker answers a question through the agent loop.
type Asker interface {
	Ask(ctx context.Context, query string, forceRetrieval bool) (string, error)
}

// QueryHandler serves retrieval and agent endpoints.
type QueryHandler struct {
	searcher Searcher
	asker    Asker
	logger   log.Logger
}

// NewQueryHandler creates a query handler. asker may be nil when the
// process runs without model credentials; /api/query then returns 503.
func NewQueryHandler(searcher Searcher, asker Asker, logger log.Logger) *QueryHandler {
	return &QueryHandler{searcher: searcher, asker: asker, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
	mux.HandleFunc("POST /api/query", h.query)
}

type searchRequest struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results,omitempty"`
}

// search runs similarity search and returns the formatted result block.
func (h *QueryHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusUnprocessableEntity, "empty_query", "query must not be empty")
		return
	}

	results, err := h.searcher.Search(r.Context(), req.Query, req.NResults)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "vector store search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
	})
}

type queryRequest struct {
	Query          string `json:"query"`
	ForceRetrieval bool   `json:"force_retrieval,omitempty"`
}

// query answers a question through the agent.
func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	if h.asker == nil {
		writeError(w, http.StatusServiceUnavailable, "agent_unavailable",
			"agent is not configured on this instance")
		return
	}

	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusUnprocessableEntity, "empty_query", "query must not be empty")
		return
	}

	answer, err := h.asker.Ask(r.Context(), req.Query, req.ForceRetrieval)
	if err != nil {
		h.logger.Error("agent query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query_failed", "agent failed to answer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":  req.Query,
		"answer": answer,
	})
}

// decodeJSON decodes a size-bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxQueryLength)).Decode(dst)
}
