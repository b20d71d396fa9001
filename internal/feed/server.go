package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Server pushes entity state updates to connected WebSocket clients.
type Server struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients map[*Client]bool
	mutex   sync.RWMutex
}

// Client는 연결된 WebSocket 클라이언트를 나타냅니다
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	logger *zap.Logger
}

// Message is the envelope sent to clients.
type Message struct {
	Type    string `json:"type"` // "states"
	Payload any    `json:"payload"`
}

// NewServer creates a new state feed server.
func NewServer(logger *zap.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*Client]bool),
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, 16),
		server: s,
	}
	client.logger = s.logger.With(zap.String("client_id", client.id))

	s.mutex.Lock()
	s.clients[client] = true
	s.mutex.Unlock()

	go client.writePump()
	go client.readPump()

	client.logger.Info("Feed client connected",
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// Broadcast sends an entity state update to every connected client.
// Clients with a full send buffer are skipped.
func (s *Server) Broadcast(states any) {
	data, err := json.Marshal(Message{Type: "states", Payload: states})
	if err != nil {
		s.logger.Error("Failed to encode state message", zap.Error(err))
		return
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// 느린 클라이언트는 해당 업데이트를 건너뜁니다
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}

func (s *Server) unregister(client *Client) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

// readPump discards incoming messages and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.conn.Close()
		c.logger.Info("Feed client disconnected")
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
