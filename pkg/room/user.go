package room

import (
	"sort"

	"roomrelay/pkg/utils"
)

// Conn is the transport half of a session. Send must not block: delivery is
// best effort and a vanished recipient only produces an error.
type Conn interface {
	ID() string
	Send(event string, data interface{}) error
}

// Session is the server-side record of one live connection.
type Session struct {
	ID       string
	Username string

	conn  Conn
	rooms map[string]struct{}
}

func newSession(conn Conn) *Session {
	return &Session{
		ID:    conn.ID(),
		conn:  conn,
		rooms: make(map[string]struct{}),
	}
}

// Rooms returns the joined room ids in sorted order.
func (s *Session) Rooms() []string {
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InRoom reports whether the session is subscribed to roomID.
func (s *Session) InRoom(roomID string) bool {
	_, ok := s.rooms[roomID]
	return ok
}

func (s *Session) send(event string, data interface{}) {
	if err := s.conn.Send(event, data); err != nil {
		utils.WarnF("send %s to %s failed: %v", event, s.ID, err)
	}
}

// Registry is the Connection Registry: one session per live connection.
type Registry struct {
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Connect creates a session with no rooms and no username. An existing
// session with the same id is returned unchanged.
func (r *Registry) Connect(conn Conn) *Session {
	if s, ok := r.sessions[conn.ID()]; ok {
		return s
	}
	s := newSession(conn)
	r.sessions[s.ID] = s
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops the session. Cleanup of other tables is the caller's job.
func (r *Registry) Remove(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// SetUsername overwrites the declared name; later reads see the latest value.
func (r *Registry) SetUsername(s *Session, name string) error {
	if name == "" {
		return ErrEmptyUsername
	}
	s.Username = name
	return nil
}

func (r *Registry) Len() int {
	return len(r.sessions)
}
