package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain/ports/notify"
	"saas-billing/internal/infra/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// envelope is the wire frame pushed over each session socket.
type envelope struct {
	Event     notify.Event `json:"event"`
	Payload   any          `json:"payload,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// session is one live socket. Writes are funneled through send so that a
// single writer goroutine owns the connection.
type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan envelope
	done   chan struct{}
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub tracks live sessions per user and implements notify.Notifier by
// fanning events out to every open session of the affected user. A user with
// no open session simply misses the push; state is re-fetched on next login.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]map[string]*session // userID -> sessionID -> session
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:      logger,
		sessions: make(map[string]map[string]*session),
	}
}

var _ notify.Notifier = (*Hub)(nil)

// Publish queues the event on every open session of the user. A full send
// buffer drops the frame for that session rather than blocking the caller.
func (h *Hub) Publish(ctx context.Context, userID string, event notify.Event, payload any) error {
	frame := envelope{Event: event, Payload: payload, Timestamp: time.Now()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions[userID] {
		select {
		case s.send <- frame:
		case <-s.done:
		default:
			metrics.IncNotification(string(event), "dropped")
			h.log.Warn().
				Str("user_id", userID).
				Str("session_id", s.id).
				Str("event", string(event)).
				Msg("session send buffer full, frame dropped")
		}
	}
	return nil
}

// ServeUser upgrades the request and runs the session until the peer
// disconnects. The caller has already authenticated and resolved userID.
func (h *Hub) ServeUser(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	s := &session{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan envelope, 16),
		done:   make(chan struct{}),
	}
	h.add(s)
	defer h.remove(s)

	go s.writeLoop()
	s.readLoop()
}

// CloseAll tears down every live session. Called on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, byID := range h.sessions {
		for _, s := range byID {
			s.close()
			_ = s.conn.Close()
		}
	}
	h.sessions = make(map[string]map[string]*session)
}

// SessionCount reports the number of open sockets across all users.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, byID := range h.sessions {
		n += len(byID)
	}
	return n
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID := h.sessions[s.userID]
	if byID == nil {
		byID = make(map[string]*session)
		h.sessions[s.userID] = byID
	}
	byID[s.id] = s
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.close()
	_ = s.conn.Close()
	if byID := h.sessions[s.userID]; byID != nil {
		delete(byID, s.id)
		if len(byID) == 0 {
			delete(h.sessions, s.userID)
		}
	}
}

// readLoop consumes control frames and discards client data; the socket is
// push-only. Returning unblocks ServeUser's deferred remove.
func (s *session) readLoop() {
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
