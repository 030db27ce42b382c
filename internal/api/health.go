package api

import (
	"net/http"

	"github.com/kestrel0/ragdex/internal/log"
)

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	logger log.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(logger log.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
}

// liveness returns 200 while the process is alive. There is no separate
// readiness probe: the store is embedded, so a live process is ready.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
