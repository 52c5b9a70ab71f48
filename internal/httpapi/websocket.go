package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tridentlabs/trident/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dev-friendly; secure via proxy in prod.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams research run events over WebSocket.
// GET /stream/ws?workflow_id=<id>
func (h *StreamingHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("workflow_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id required")
		return
	}
	filter := filterFromQuery(r)
	lastID := lastEventID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := h.mgr.Subscribe(runID, 256)
	defer h.mgr.Unsubscribe(runID, ch)
	metrics.ActiveStreamClients.Inc()
	defer metrics.ActiveStreamClients.Dec()

	if lastID > 0 {
		for _, evt := range h.mgr.ReplaySince(runID, lastID) {
			if !filter.allows(evt) {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	// Reader pump; client messages are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if !filter.allows(evt) {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}
		}
	}
}
