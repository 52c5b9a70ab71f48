package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tridentlabs/trident/internal/metrics"
	"github.com/tridentlabs/trident/internal/streaming"
)

// StreamingHandler serves SSE and WebSocket endpoints for run progress.
type StreamingHandler struct {
	mgr    *streaming.Manager
	logger *zap.Logger
}

func NewStreamingHandler(mgr *streaming.Manager, logger *zap.Logger) *StreamingHandler {
	return &StreamingHandler{mgr: mgr, logger: logger}
}

// RegisterRoutes registers the streaming routes on the provided mux.
func (h *StreamingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /stream/sse", h.handleSSE)
	mux.HandleFunc("GET /stream/ws", h.handleWS)
}

// eventFilter restricts a stream to selected stages or severities.
type eventFilter struct {
	stages     map[string]struct{}
	severities map[streaming.Severity]struct{}
}

func filterFromQuery(r *http.Request) eventFilter {
	f := eventFilter{}
	if s := r.URL.Query().Get("stages"); s != "" {
		f.stages = map[string]struct{}{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.stages[part] = struct{}{}
			}
		}
	}
	if s := r.URL.Query().Get("severities"); s != "" {
		f.severities = map[streaming.Severity]struct{}{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.severities[streaming.Severity(part)] = struct{}{}
			}
		}
	}
	return f
}

func (f eventFilter) allows(evt streaming.Event) bool {
	if f.stages != nil {
		if _, ok := f.stages[evt.Stage]; !ok {
			return false
		}
	}
	if f.severities != nil {
		if _, ok := f.severities[evt.Severity]; !ok {
			return false
		}
	}
	return true
}

// lastEventID reads the replay cursor from the Last-Event-ID header or the
// last_event_id query parameter.
func lastEventID(r *http.Request) uint64 {
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			return n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// handleSSE streams research run events via Server-Sent Events.
// GET /stream/sse?workflow_id=<id>
func (h *StreamingHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("workflow_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id required")
		return
	}
	filter := filterFromQuery(r)
	lastID := lastEventID(r)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := h.mgr.Subscribe(runID, 256)
	defer h.mgr.Unsubscribe(runID, ch)
	metrics.ActiveStreamClients.Inc()
	defer metrics.ActiveStreamClients.Dec()

	fmt.Fprintf(w, ": connected to run %s\n\n", runID)
	flusher.Flush()

	if lastID > 0 {
		for _, evt := range h.mgr.ReplaySince(runID, lastID) {
			if filter.allows(evt) {
				writeSSE(w, evt)
			}
		}
		flusher.Flush()
	}

	hb := time.NewTicker(15 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", zap.String("run_id", runID))
			return
		case evt := <-ch:
			if !filter.allows(evt) {
				continue
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-hb.C:
			// Keep connections alive through proxies.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt streaming.Event) {
	fmt.Fprintf(w, "id: %d\n", evt.Seq)
	if evt.Stage != "" {
		fmt.Fprintf(w, "event: %s\n", evt.Stage)
	}
	fmt.Fprintf(w, "data: %s\n\n", evt.Marshal())
}
