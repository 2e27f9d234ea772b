package room

import (
	"fmt"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/utils"
)

// Options tune the coordinator and its dispatcher.
type Options struct {
	// PruneEmptyRooms deletes a room entry once its last subscriber leaves.
	PruneEmptyRooms bool
	// RequireConsent restricts private file events to accepted peer pairs.
	RequireConsent bool
	// EventBuffer is the capacity of the dispatcher's inbound queue.
	EventBuffer int
}

func DefaultOptions() Options {
	return Options{
		PruneEmptyRooms: true,
		EventBuffer:     256,
	}
}

// Stats is a point-in-time view of the shared tables.
type Stats struct {
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
	Pending  int `json:"pending"`
	Pairs    int `json:"pairs"`
}

// Coordinator owns the registry, presence table and broker. It is not safe
// for concurrent use; RoomManager serializes every call onto one goroutine.
type Coordinator struct {
	registry *Registry
	presence *Presence
	broker   *Broker
	opts     Options
}

func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		registry: NewRegistry(),
		presence: NewPresence(opts.PruneEmptyRooms),
		broker:   NewBroker(),
		opts:     opts,
	}
}

// Connect registers the connection and tells the client its id.
func (c *Coordinator) Connect(conn Conn) *Session {
	s := c.registry.Connect(conn)
	utils.InfoF("session [%v] connected, %d online", s.ID, c.registry.Len())
	s.send(protocol.Connected, protocol.ConnectedNotice{ID: s.ID})
	return s
}

// Disconnect removes the session and every reference to it: room
// subscriptions and rosters, pending requests in both directions and peer
// pairs. Each affected peer hears about it once.
func (c *Coordinator) Disconnect(id string) error {
	s, ok := c.registry.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	c.dropSession(s)

	notice := protocol.PeerNotice{PeerID: s.ID, PeerUsername: s.Username}
	for _, peerID := range c.broker.purge(s.ID) {
		if peer, ok := c.registry.Get(peerID); ok {
			peer.send(protocol.PeerDisconnected, notice)
		}
	}
	utils.InfoF("session [%v] (%v) disconnected, %d online", s.ID, s.Username, c.registry.Len())
	return nil
}

// Session looks up a live session.
func (c *Coordinator) Session(id string) (*Session, bool) {
	return c.registry.Get(id)
}

// Roster is a snapshot of the announced members of roomID.
func (c *Coordinator) Roster(roomID string) []protocol.UserInfo {
	return c.presence.Roster(roomID)
}

// Pending lists the requests waiting on a session.
func (c *Coordinator) Pending(id string) []PendingRequest {
	return c.broker.Pending(id)
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Sessions: c.registry.Len(),
		Rooms:    c.presence.Len(),
		Pending:  c.broker.PendingCount(),
		Pairs:    c.broker.PairCount(),
	}
}
