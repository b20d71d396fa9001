package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBroadcastReachesClients(t *testing.T) {
	server := NewServer(zap.NewNop())

	ts := httptest.NewServer(httptestHandler(server))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 등록이 끝날 때까지 잠시 대기
	require.Eventually(t, func() bool {
		return server.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	server.Broadcast([]map[string]any{{"unique_id": "20", "kind": "camera"}})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "states", msg.Type)

	payload, ok := msg.Payload.([]any)
	require.True(t, ok)
	require.Len(t, payload, 1)
}

func TestDisconnectUnregisters(t *testing.T) {
	server := NewServer(zap.NewNop())

	ts := httptest.NewServer(httptestHandler(server))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return server.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return server.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func httptestHandler(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	return mux
}
