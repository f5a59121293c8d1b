package gateway

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/rider-dispatch/internal/models"
)

// ErrNoSession is returned when a targeted send has no live connection to go to.
var ErrNoSession = errors.New("gateway: no live session")

// Session is one connected client. Writes are serialized through mu because
// gorilla/websocket allows only one concurrent writer per connection.
type Session struct {
	id   string
	conn *websocket.Conn

	mu      sync.Mutex
	riderID string
}

func (s *Session) ID() string { return s.id }

// RiderID returns the rider bound to this session, or "" for sessions that
// have not sent a location update (e.g. customer clients).
func (s *Session) RiderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.riderID
}

func (s *Session) bindRider(riderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riderID = riderID
}

func (s *Session) Send(ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// SessionRegistry holds every live connection keyed by session handle.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

func NewSessionRegistry(logger *slog.Logger) *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session), logger: logger}
}

func (r *SessionRegistry) Add(conn *websocket.Conn) *Session {
	s := &Session{id: uuid.NewString(), conn: conn}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
	return s
}

func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *SessionRegistry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Send pushes an event to one session.
func (r *SessionRegistry) Send(sessionID string, ev models.Event) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return ErrNoSession
	}
	return s.Send(ev)
}

// Broadcast pushes an event to every connected client. Per-session write
// failures are logged and skipped; the slow or dead peer will be reaped by
// its own read loop.
func (r *SessionRegistry) Broadcast(ev models.Event) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if err := s.Send(ev); err != nil {
			r.logger.Warn("broadcast send failed", "session_id", s.id, "error", err)
		}
	}
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
