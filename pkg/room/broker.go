package room

import (
	"fmt"
	"sort"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/utils"
)

// PendingRequest is an unresolved connection request from RequesterID to
// TargetID.
type PendingRequest struct {
	RequesterID       string
	RequesterUsername string
	TargetID          string
}

// Broker is the Connection Handshake Broker. It is keyed by connection id
// only and knows nothing about rooms.
type Broker struct {
	// target -> requester -> request
	pending map[string]map[string]PendingRequest
	// symmetric: peers[a][b] iff peers[b][a]
	peers map[string]map[string]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		pending: make(map[string]map[string]PendingRequest),
		peers:   make(map[string]map[string]struct{}),
	}
}

func (b *Broker) hasPending(requesterID, targetID string) bool {
	_, ok := b.pending[targetID][requesterID]
	return ok
}

func (b *Broker) addPending(req PendingRequest) {
	byRequester, ok := b.pending[req.TargetID]
	if !ok {
		byRequester = make(map[string]PendingRequest)
		b.pending[req.TargetID] = byRequester
	}
	byRequester[req.RequesterID] = req
}

func (b *Broker) takePending(requesterID, targetID string) (PendingRequest, bool) {
	req, ok := b.pending[targetID][requesterID]
	if !ok {
		return PendingRequest{}, false
	}
	delete(b.pending[targetID], requesterID)
	if len(b.pending[targetID]) == 0 {
		delete(b.pending, targetID)
	}
	return req, true
}

func (b *Broker) link(a, c string) {
	for _, pair := range [][2]string{{a, c}, {c, a}} {
		set, ok := b.peers[pair[0]]
		if !ok {
			set = make(map[string]struct{})
			b.peers[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
}

func (b *Broker) unlink(a, c string) bool {
	if !b.Connected(a, c) {
		return false
	}
	for _, pair := range [][2]string{{a, c}, {c, a}} {
		delete(b.peers[pair[0]], pair[1])
		if len(b.peers[pair[0]]) == 0 {
			delete(b.peers, pair[0])
		}
	}
	return true
}

// Connected reports whether a and c form an accepted peer pair.
func (b *Broker) Connected(a, c string) bool {
	_, ok := b.peers[a][c]
	return ok
}

// Peers lists the connected peers of id in sorted order.
func (b *Broker) Peers(id string) []string {
	out := make([]string, 0, len(b.peers[id]))
	for peer := range b.peers[id] {
		out = append(out, peer)
	}
	sort.Strings(out)
	return out
}

// Pending lists the requests waiting on targetID, ordered by requester.
func (b *Broker) Pending(targetID string) []PendingRequest {
	out := make([]PendingRequest, 0, len(b.pending[targetID]))
	for _, req := range b.pending[targetID] {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequesterID < out[j].RequesterID })
	return out
}

// PendingCount is the number of unresolved requests.
func (b *Broker) PendingCount() int {
	n := 0
	for _, byRequester := range b.pending {
		n += len(byRequester)
	}
	return n
}

// PairCount is the number of accepted peer pairs.
func (b *Broker) PairCount() int {
	n := 0
	for _, set := range b.peers {
		n += len(set)
	}
	return n / 2
}

// purge removes every request and pair referencing id and returns each
// counterpart once, sorted.
func (b *Broker) purge(id string) []string {
	seen := make(map[string]struct{})

	for requesterID := range b.pending[id] {
		seen[requesterID] = struct{}{}
	}
	delete(b.pending, id)
	for targetID, byRequester := range b.pending {
		if _, ok := byRequester[id]; ok {
			delete(byRequester, id)
			seen[targetID] = struct{}{}
			if len(byRequester) == 0 {
				delete(b.pending, targetID)
			}
		}
	}
	for _, peer := range b.Peers(id) {
		b.unlink(id, peer)
		seen[peer] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for peer := range seen {
		out = append(out, peer)
	}
	sort.Strings(out)
	return out
}

// RequestConnection records a pending request and notifies the target. A
// request that crosses an opposite pending request accepts both at once.
func (c *Coordinator) RequestConnection(id string, req protocol.ConnectionRequestPayload) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if req.PeerID == s.ID {
		return ErrSelfRequest
	}
	target, ok := c.registry.Get(req.PeerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, req.PeerID)
	}
	if c.broker.Connected(s.ID, target.ID) {
		return fmt.Errorf("%w: %s and %s", ErrAlreadyConnected, s.ID, target.ID)
	}
	if c.broker.hasPending(s.ID, target.ID) {
		return fmt.Errorf("%w: %s -> %s", ErrDuplicateRequest, s.ID, target.ID)
	}

	if crossing, ok := c.broker.takePending(target.ID, s.ID); ok {
		c.broker.link(s.ID, target.ID)
		utils.InfoF("crossing requests between [%v] and [%v], connected", s.ID, target.ID)
		target.send(protocol.ConnectionAccepted, protocol.PeerNotice{PeerID: s.ID, PeerUsername: s.Username})
		s.send(protocol.ConnectionAccepted, protocol.PeerNotice{PeerID: target.ID, PeerUsername: nameOr(target.Username, crossing.RequesterUsername)})
		return nil
	}

	username := req.RequesterUsername
	if username == "" {
		username = s.Username
	}
	c.broker.addPending(PendingRequest{
		RequesterID:       s.ID,
		RequesterUsername: username,
		TargetID:          target.ID,
	})
	utils.InfoF("connection request [%v] -> [%v]", s.ID, target.ID)
	target.send(protocol.ConnectionRequest, protocol.ConnectionRequestNotice{
		RequesterID:       s.ID,
		RequesterUsername: username,
	})
	return nil
}

// AcceptConnection resolves the request from requesterID to the session
// and promotes it to a peer pair.
func (c *Coordinator) AcceptConnection(id, requesterID string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if _, ok := c.broker.takePending(requesterID, s.ID); !ok {
		return fmt.Errorf("%w: %s -> %s", ErrNoPendingRequest, requesterID, s.ID)
	}
	requester, ok := c.registry.Get(requesterID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, requesterID)
	}
	c.broker.link(requester.ID, s.ID)
	utils.InfoF("connection [%v] <-> [%v] accepted", requester.ID, s.ID)
	requester.send(protocol.ConnectionAccepted, protocol.PeerNotice{PeerID: s.ID, PeerUsername: s.Username})
	return nil
}

// RejectConnection drops the request from requesterID and tells the requester.
func (c *Coordinator) RejectConnection(id, requesterID string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if _, ok := c.broker.takePending(requesterID, s.ID); !ok {
		return fmt.Errorf("%w: %s -> %s", ErrNoPendingRequest, requesterID, s.ID)
	}
	utils.InfoF("connection request [%v] -> [%v] rejected", requesterID, s.ID)
	if requester, ok := c.registry.Get(requesterID); ok {
		requester.send(protocol.ConnectionRejected, protocol.PeerNotice{PeerID: s.ID, PeerUsername: s.Username})
	}
	return nil
}

// DisconnectPeer tears down an accepted pair and notifies the other side.
func (c *Coordinator) DisconnectPeer(id, peerID string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if !c.broker.unlink(s.ID, peerID) {
		return fmt.Errorf("%w: %s and %s", ErrNotConnected, s.ID, peerID)
	}
	utils.InfoF("connection [%v] <-> [%v] closed", s.ID, peerID)
	if peer, ok := c.registry.Get(peerID); ok {
		peer.send(protocol.PeerDisconnected, protocol.PeerNotice{PeerID: s.ID, PeerUsername: s.Username})
	}
	return nil
}

// ConnectedPeers lists the accepted peers of a session.
func (c *Coordinator) ConnectedPeers(id string) []string {
	return c.broker.Peers(id)
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
