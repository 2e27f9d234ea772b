package room

import (
	"fmt"
	"sort"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/utils"
)

// Room is the implicit state behind a room id: the sessions subscribed to its
// topic and, among them, the ones that announced a username.
type Room struct {
	Id string

	subscribers map[string]*Session
	members     []protocol.UserInfo
}

func newRoom(id string) *Room {
	return &Room{
		Id:          id,
		subscribers: make(map[string]*Session),
	}
}

func (r *Room) empty() bool {
	return len(r.subscribers) == 0 && len(r.members) == 0
}

// upsert inserts or renames a member and reports whether it was inserted.
func (r *Room) upsert(info protocol.UserInfo) bool {
	for i := range r.members {
		if r.members[i].ID == info.ID {
			r.members[i].Username = info.Username
			return false
		}
	}
	r.members = append(r.members, info)
	return true
}

func (r *Room) removeMember(id string) {
	for i := range r.members {
		if r.members[i].ID == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

func (r *Room) roster() []protocol.UserInfo {
	out := make([]protocol.UserInfo, len(r.members))
	copy(out, r.members)
	return out
}

// subscriberList returns subscribers ordered by id so fan-out is deterministic.
func (r *Room) subscriberList() []*Session {
	list := make([]*Session, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Presence is the Room Presence Table. An absent key is an empty room.
type Presence struct {
	rooms      map[string]*Room
	pruneEmpty bool
}

func NewPresence(pruneEmpty bool) *Presence {
	return &Presence{
		rooms:      make(map[string]*Room),
		pruneEmpty: pruneEmpty,
	}
}

func (p *Presence) get(id string) *Room {
	return p.rooms[id]
}

func (p *Presence) getOrCreate(id string) *Room {
	r, ok := p.rooms[id]
	if !ok {
		r = newRoom(id)
		p.rooms[id] = r
	}
	return r
}

func (p *Presence) prune(r *Room) {
	if p.pruneEmpty && r.empty() {
		delete(p.rooms, r.Id)
		utils.DebugF("room [%v] is empty, removed", r.Id)
	}
}

// Roster is a snapshot of announced members; never nil.
func (p *Presence) Roster(roomID string) []protocol.UserInfo {
	r := p.get(roomID)
	if r == nil {
		return []protocol.UserInfo{}
	}
	return r.roster()
}

// Len counts rooms currently held in the table.
func (p *Presence) Len() int {
	return len(p.rooms)
}

// broadcast delivers an event to every subscriber except the one named by
// except and returns the number of recipients.
func (p *Presence) broadcast(roomID, except, event string, data interface{}) int {
	r := p.get(roomID)
	if r == nil {
		return 0
	}
	n := 0
	for _, s := range r.subscriberList() {
		if s.ID == except {
			continue
		}
		s.send(event, data)
		n++
	}
	return n
}

func (p *Presence) notifyUsersUpdate(roomID string) {
	p.broadcast(roomID, "", protocol.OnlineUsers, p.Roster(roomID))
}

// JoinRoom subscribes the session to the room topic and asks for a username.
// The session is not visible in the roster until it announces.
func (c *Coordinator) JoinRoom(id, roomID string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if roomID == "" {
		return ErrEmptyRoomID
	}
	r := c.presence.getOrCreate(roomID)
	r.subscribers[s.ID] = s
	s.rooms[roomID] = struct{}{}
	utils.InfoF("session [%v] joined room [%v]", s.ID, roomID)

	s.send(protocol.RequestUsername, roomID)
	return nil
}

// SubmitUsername records the username and announces the session in every
// room it is subscribed to.
func (c *Coordinator) SubmitUsername(id, username string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if err := c.registry.SetUsername(s, username); err != nil {
		return err
	}
	for _, roomID := range s.Rooms() {
		r := c.presence.getOrCreate(roomID)
		inserted := r.upsert(protocol.UserInfo{ID: s.ID, Username: s.Username})
		c.presence.notifyUsersUpdate(roomID)
		if inserted {
			utils.InfoF("user [%v] announced in room [%v]", s.Username, roomID)
			c.presence.broadcast(roomID, s.ID, protocol.NewUserJoined,
				fmt.Sprintf("%s has joined the room!", s.Username))
		}
	}
	return nil
}

// LeaveRoom unsubscribes the session, tells the remaining subscribers and
// hands the leaver an empty roster.
func (c *Coordinator) LeaveRoom(id, roomID string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	defer s.send(protocol.OnlineUsers, []protocol.UserInfo{})

	r := c.presence.get(roomID)
	if r == nil || !s.InRoom(roomID) {
		return fmt.Errorf("%w: %s", ErrNotInRoom, roomID)
	}
	delete(s.rooms, roomID)
	delete(r.subscribers, s.ID)
	r.removeMember(s.ID)
	if s.Username != "" {
		c.presence.broadcast(roomID, s.ID, protocol.UserLeft,
			fmt.Sprintf("%s has left the room!", s.Username))
	}
	c.presence.notifyUsersUpdate(roomID)
	c.presence.prune(r)
	utils.InfoF("session [%v] left room [%v]", s.ID, roomID)
	return nil
}

// OnlineUsers sends the roster of roomID to the requesting session only.
func (c *Coordinator) OnlineUsers(id, roomID string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.send(protocol.OnlineUsers, c.presence.Roster(roomID))
	return nil
}

// dropSession removes the session from every room it is subscribed to and
// refreshes those rosters.
func (c *Coordinator) dropSession(s *Session) {
	for _, roomID := range s.Rooms() {
		delete(s.rooms, roomID)
		r := c.presence.get(roomID)
		if r == nil {
			continue
		}
		delete(r.subscribers, s.ID)
		r.removeMember(s.ID)
		c.presence.notifyUsersUpdate(roomID)
		c.presence.prune(r)
	}
}
