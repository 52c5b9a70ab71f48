// Package httpapi exposes the research service over HTTP: starting runs,
// retrieving results, listing past sessions, and streaming progress events
// over SSE and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/tridentlabs/trident/internal/catalog"
	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/tracing"
	"github.com/tridentlabs/trident/internal/workflows"
)

// WorkflowClient is the slice of the Temporal client the handler needs.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	GetWorkflow(ctx context.Context, workflowID, runID string) client.WorkflowRun
}

// ResearchHandler serves the research API.
type ResearchHandler struct {
	temporal  WorkflowClient
	catalog   *catalog.Store
	taskQueue string
	logger    *zap.Logger
}

func NewResearchHandler(temporal WorkflowClient, cat *catalog.Store, taskQueue string, logger *zap.Logger) *ResearchHandler {
	return &ResearchHandler{
		temporal:  temporal,
		catalog:   cat,
		taskQueue: taskQueue,
		logger:    logger,
	}
}

// RegisterRoutes registers the research API routes.
func (h *ResearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /research", h.handleStart)
	mux.HandleFunc("GET /research/{workflow_id}", h.handleResult)
	mux.HandleFunc("GET /sessions", h.handleSessions)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type startRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results,omitempty"`
}

type startResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// handleStart launches a research run and returns its workflow identity.
func (h *ResearchHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.NumResults < 0 {
		writeError(w, http.StatusBadRequest, "num_results must not be negative")
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "StartResearchRun")
	defer span.End()

	workflowID := "research-" + uuid.NewString()
	run, err := h.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.taskQueue,
	}, workflows.ResearchWorkflow, workflows.ResearchInput{
		Query:      req.Query,
		NumResults: req.NumResults,
	})
	if err != nil {
		h.logger.Error("Failed to start research workflow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start research run")
		return
	}
	metrics.RunsStarted.Inc()

	h.logger.Info("Research run started",
		zap.String("workflow_id", workflowID),
		zap.String("query", req.Query),
	)
	writeJSON(w, http.StatusAccepted, startResponse{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
	})
}

// handleResult blocks on the workflow result and returns the bundle.
func (h *ResearchHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")
	if workflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	run := h.temporal.GetWorkflow(r.Context(), workflowID, "")
	var result workflows.ResearchResult
	if err := run.Get(r.Context(), &result); err != nil {
		h.logger.Warn("Research run failed or not found",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("research run failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSessions lists recent runs from the catalog.
func (h *ResearchHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "run catalog not configured")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.catalog.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (h *ResearchHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
