package health

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// HTTPHandler serves probe endpoints backed by a Manager.
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{manager: manager, logger: logger}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /readiness", h.handleReadiness)
	mux.HandleFunc("GET /liveness", h.handleLiveness)
}

// handleHealth reports every dependency with its latest result.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := h.manager.Results()
	status := http.StatusOK
	overall := StatusHealthy
	if !h.manager.Ready() {
		status = http.StatusServiceUnavailable
		overall = StatusUnhealthy
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     overall,
		"components": results,
	})
}

// handleReadiness gates on critical dependencies only.
func (h *HTTPHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.manager.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleLiveness only proves the process is serving requests.
func (h *HTTPHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
