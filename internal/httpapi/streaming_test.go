package httpapi

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tridentlabs/trident/internal/streaming"
)

func streamServer(t *testing.T, mgr *streaming.Manager) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewStreamingHandler(mgr, zaptest.NewLogger(t)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func publishN(mgr *streaming.Manager, runID string, n int) {
	for i := 0; i < n; i++ {
		mgr.Publish(streaming.Event{
			RunID:    runID,
			Stage:    "branch",
			Severity: streaming.SeverityInfo,
			Message:  "progress update",
		})
	}
}

// readSSE collects SSE frames until count data lines arrive or the
// deadline passes.
func readSSE(t *testing.T, body *bufio.Reader, count int, deadline time.Duration) []string {
	t.Helper()
	var lines []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(lines) < count {
			line, err := body.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			if strings.HasPrefix(line, "data: ") {
				lines = append(lines, line)
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(deadline):
	}
	return lines
}

func TestSSERequiresWorkflowID(t *testing.T) {
	srv := streamServer(t, streaming.NewManager(16))

	resp, err := http.Get(srv.URL + "/stream/sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSSEReplayAndLive(t *testing.T) {
	mgr := streaming.NewManager(16)
	srv := streamServer(t, mgr)

	publishN(mgr, "run-1", 3)

	resp, err := http.Get(srv.URL + "/stream/sse?workflow_id=run-1&last_event_id=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// Replay of seq 2 and 3, then one live event once the
	// subscription is established.
	go func() {
		for i := 0; i < 20; i++ {
			publishN(mgr, "run-1", 1)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	lines := readSSE(t, reader, 3, 3*time.Second)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"seq":2`)
	assert.Contains(t, lines[1], `"seq":3`)
	assert.Contains(t, lines[2], "progress update")
}

func TestSSEStageFilter(t *testing.T) {
	mgr := streaming.NewManager(16)
	srv := streamServer(t, mgr)

	mgr.Publish(streaming.Event{RunID: "run-2", Stage: "search", Message: "searching"})
	mgr.Publish(streaming.Event{RunID: "run-2", Stage: "synthesis", Message: "writing report"})

	resp, err := http.Get(srv.URL + "/stream/sse?workflow_id=run-2&last_event_id=0&stages=synthesis")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	go func() {
		for i := 0; i < 20; i++ {
			mgr.Publish(streaming.Event{RunID: "run-2", Stage: "synthesis", Message: "writing report"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	lines := readSSE(t, reader, 1, 3*time.Second)
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Contains(t, line, "writing report")
		assert.NotContains(t, line, "searching")
	}
}

func TestWebSocketStream(t *testing.T) {
	mgr := streaming.NewManager(16)
	srv := streamServer(t, mgr)

	publishN(mgr, "run-3", 2)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/ws?workflow_id=run-3&last_event_id=1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	// Replayed event seq 2.
	var evt streaming.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, uint64(2), evt.Seq)
	assert.Equal(t, "run-3", evt.RunID)

	// Live delivery after subscription.
	go func() {
		for i := 0; i < 20; i++ {
			publishN(mgr, "run-3", 1)
			time.Sleep(10 * time.Millisecond)
		}
	}()
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "branch", evt.Stage)
	assert.Equal(t, "progress update", evt.Message)
}

func TestWebSocketRequiresWorkflowID(t *testing.T) {
	srv := streamServer(t, streaming.NewManager(16))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
