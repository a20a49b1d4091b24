package ws

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/rotation"
	"court-rotation/internal/stream"
)

var (
	metricConnectionsActive = expvar.NewInt("ws_connections_active")
	metricMessagesDropped   = expvar.NewInt("ws_messages_dropped_total")
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue drops the message rather than block when the client lags.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- msg:
		return true
	default:
		metricMessagesDropped.Add(1)
		return false
	}
}

// Server pushes the selected session's events and views to websocket
// clients.
type Server struct {
	sessions *appsession.Service
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*Client]bool
}

func NewServer(sessions *appsession.Service) *Server {
	return &Server{
		sessions: sessions,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  map[*Client]bool{},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		eng, err := s.sessions.Engine(sessionID)
		if err != nil {
			status, code := rotation.MapError(err)
			if errors.Is(err, appsession.ErrInvalidRequest) {
				status, code = http.StatusBadRequest, "invalid_request"
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &Client{
			conn:      conn,
			send:      make(chan []byte, 32),
			sessionID: sessionID,
			done:      make(chan struct{}),
		}
		s.register(c)
		events := eng.Events().Subscribe()
		log.Info().Str("session_id", sessionID).Msg("ws client connected")

		c.enqueue(snapshotMessage(eng))
		go s.writeLoop(c)
		go s.pump(c, eng, events)
		s.readLoop(c, eng, events)
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	metricConnectionsActive.Add(1)
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	if s.clients[c] {
		delete(s.clients, c)
		metricConnectionsActive.Add(-1)
	}
	s.mu.Unlock()
}

// ClientCount reports connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) readLoop(c *Client, eng *rotation.Engine, events chan stream.StreamEvent) {
	defer func() {
		c.close()
		eng.Events().Unsubscribe(events)
		s.unregister(c)
		_ = c.conn.Close()
		log.Info().Str("session_id", c.sessionID).Msg("ws client disconnected")
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in ClientMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			c.enqueue(errorMessage("invalid_message"))
			continue
		}
		switch in.Type {
		case "refresh":
			c.enqueue(snapshotMessage(eng))
		default:
			c.enqueue(errorMessage("unknown_message_type"))
		}
	}
}

// pump forwards engine events and follows every views_changed with a fresh
// snapshot. It closes the connection when the engine is torn down.
func (s *Server) pump(c *Client, eng *rotation.Engine, events chan stream.StreamEvent) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				_ = c.conn.Close()
				return
			}
			b, _ := json.Marshal(EventMessage{Type: "event", ProtocolVersion: ProtocolVersion, Event: ev})
			c.enqueue(b)
			if ev.Event == rotation.EventViewsChanged {
				c.enqueue(snapshotMessage(eng))
			}
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func snapshotMessage(eng *rotation.Engine) []byte {
	b, _ := json.Marshal(SnapshotMessage{Type: "snapshot", ProtocolVersion: ProtocolVersion, View: eng.View()})
	return b
}

func errorMessage(code string) []byte {
	b, _ := json.Marshal(ErrorMessage{Type: "error", ProtocolVersion: ProtocolVersion, Error: code})
	return b
}
