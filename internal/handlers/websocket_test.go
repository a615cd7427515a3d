package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/models"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func waitForClients(t *testing.T, h *WebSocketHandler, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

// TestLogEntryFanOut verifies that run log entries reach every subscriber in order
func TestLogEntryFanOut(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger(), &common.WebSocketConfig{})
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	numSubscribers := 4
	received := make([][]models.LogEntry, numSubscribers)
	var receivedMutex sync.Mutex
	var wg sync.WaitGroup
	wg.Add(numSubscribers)

	subscribers := make([]*websocket.Conn, numSubscribers)
	for i := 0; i < numSubscribers; i++ {
		conn := dial(t, server)
		subscribers[i] = conn

		idx := i
		go func() {
			defer wg.Done()
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			for {
				var msg WSMessage
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg.Type != "log_entry" {
					continue
				}
				data, _ := json.Marshal(msg.Payload)
				var entry models.LogEntry
				if err := json.Unmarshal(data, &entry); err != nil {
					continue
				}
				receivedMutex.Lock()
				received[idx] = append(received[idx], entry)
				receivedMutex.Unlock()
			}
		}()
	}

	waitForClients(t, handler, numSubscribers)

	messages := []string{"Initializing MarketSignal AI...", "Target: Agritech in India", "Analysis complete."}
	for _, m := range messages {
		handler.OnLogEntry(models.LogEntry{RunID: "run-1", Message: m, Severity: models.SeverityInfo, Timestamp: time.Now()})
	}

	require.Eventually(t, func() bool {
		receivedMutex.Lock()
		defer receivedMutex.Unlock()
		for _, r := range received {
			if len(r) < len(messages) {
				return false
			}
		}
		return true
	}, 3*time.Second, 20*time.Millisecond)

	for _, conn := range subscribers {
		conn.Close()
	}
	wg.Wait()

	receivedMutex.Lock()
	defer receivedMutex.Unlock()
	for i, entries := range received {
		require.Len(t, entries, len(messages), "subscriber %d", i)
		for j, entry := range entries {
			assert.Equal(t, messages[j], entry.Message)
			assert.Equal(t, "run-1", entry.RunID)
		}
	}
}

type staticSnapshot struct {
	snap *models.RunSnapshot
}

func (s staticSnapshot) Snapshot() *models.RunSnapshot { return s.snap }

func TestHandleWebSocket_SendsSnapshotAndState(t *testing.T) {
	handler := NewWebSocketHandler(nil, nil)
	handler.SetSnapshotProvider(staticSnapshot{&models.RunSnapshot{State: models.StateIdle, Log: []models.LogEntry{}}})
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first WSMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)

	waitForClients(t, handler, 1)
	handler.OnStateChange("run-9", models.StateSearching)

	var second WSMessage
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "state", second.Type)
	payload := second.Payload.(map[string]interface{})
	assert.Equal(t, "run-9", payload["run_id"])
	assert.Equal(t, "SEARCHING", payload["state"])
}

func TestHandleWebSocket_MaxClients(t *testing.T) {
	handler := NewWebSocketHandler(nil, &common.WebSocketConfig{MaxClients: 1})
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	waitForClients(t, handler, 1)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBroadcast_NoClients(t *testing.T) {
	handler := NewWebSocketHandler(nil, nil)
	assert.NotPanics(t, func() {
		handler.OnLogEntry(models.LogEntry{Message: "nobody listening"})
		handler.OnStateChange("", models.StateIdle)
	})
}
