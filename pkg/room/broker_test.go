package room

import (
	"errors"
	"testing"

	"roomrelay/pkg/protocol"
)

func request(c *Coordinator, from, to string) error {
	return c.RequestConnection(from, protocol.ConnectionRequestPayload{PeerID: to, RequesterUsername: from})
}

func TestRequestAndAccept(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	alice := announce(t, c, "lobby", "alice")
	bob := announce(t, c, "lobby", "bob")

	if err := request(c, "alice", "bob"); err != nil {
		t.Fatalf("RequestConnection: %v", err)
	}
	want := protocol.ConnectionRequestNotice{RequesterID: "alice", RequesterUsername: "alice"}
	if got := bob.last(t, protocol.ConnectionRequest); got != want {
		t.Errorf("bob got %#v", got)
	}
	if got := alice.named(protocol.ConnectionRequest); len(got) != 0 {
		t.Errorf("requester was notified: %v", got)
	}
	if pending := c.Pending("bob"); len(pending) != 1 || pending[0].RequesterID != "alice" {
		t.Fatalf("bob pending = %v", pending)
	}

	if err := c.AcceptConnection("bob", "alice"); err != nil {
		t.Fatalf("AcceptConnection: %v", err)
	}
	accepted := protocol.PeerNotice{PeerID: "bob", PeerUsername: "bob"}
	if got := alice.last(t, protocol.ConnectionAccepted); got != accepted {
		t.Errorf("alice got %#v", got)
	}
	if peers := c.ConnectedPeers("alice"); len(peers) != 1 || peers[0] != "bob" {
		t.Errorf("alice peers = %v", peers)
	}
	if peers := c.ConnectedPeers("bob"); len(peers) != 1 || peers[0] != "alice" {
		t.Errorf("bob peers = %v", peers)
	}
	if stats := c.Stats(); stats.Pending != 0 || stats.Pairs != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRequestUsesSessionNameWhenMissing(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	announce(t, c, "lobby", "alice")
	bob := announce(t, c, "lobby", "bob")

	if err := c.RequestConnection("alice", protocol.ConnectionRequestPayload{PeerID: "bob"}); err != nil {
		t.Fatalf("RequestConnection: %v", err)
	}
	notice := bob.last(t, protocol.ConnectionRequest).(protocol.ConnectionRequestNotice)
	if notice.RequesterUsername != "alice" {
		t.Errorf("requesterUsername = %q", notice.RequesterUsername)
	}
}

func TestRequestRejections(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	announce(t, c, "lobby", "alice")
	bob := announce(t, c, "lobby", "bob")
	announce(t, c, "lobby", "carol")

	if err := request(c, "alice", "bob"); err != nil {
		t.Fatalf("RequestConnection: %v", err)
	}
	if err := request(c, "carol", "bob"); err != nil {
		t.Fatalf("second requester: %v", err)
	}

	tests := []struct {
		name string
		from string
		to   string
		want error
	}{
		{name: "duplicate", from: "alice", to: "bob", want: ErrDuplicateRequest},
		{name: "self", from: "alice", to: "alice", want: ErrSelfRequest},
		{name: "unknown target", from: "alice", to: "zed", want: ErrUnknownPeer},
		{name: "unknown requester", from: "zed", to: "bob", want: ErrUnknownSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := c.Stats()
			if err := request(c, tt.from, tt.to); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if after := c.Stats(); after != before {
				t.Errorf("state changed: %+v -> %+v", before, after)
			}
		})
	}

	if got := bob.named(protocol.ConnectionRequest); len(got) != 2 {
		t.Errorf("bob saw %d requests, want 2", len(got))
	}

	if err := c.AcceptConnection("bob", "alice"); err != nil {
		t.Fatalf("AcceptConnection: %v", err)
	}
	if err := request(c, "alice", "bob"); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("request to connected peer: got %v", err)
	}
	if err := request(c, "bob", "alice"); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("reverse request to connected peer: got %v", err)
	}
}

func TestCrossingRequestsConnect(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	alice := announce(t, c, "lobby", "alice")
	bob := announce(t, c, "lobby", "bob")

	if err := request(c, "alice", "bob"); err != nil {
		t.Fatalf("alice -> bob: %v", err)
	}
	if err := request(c, "bob", "alice"); err != nil {
		t.Fatalf("bob -> alice: %v", err)
	}

	if stats := c.Stats(); stats.Pending != 0 || stats.Pairs != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := alice.last(t, protocol.ConnectionAccepted); got != (protocol.PeerNotice{PeerID: "bob", PeerUsername: "bob"}) {
		t.Errorf("alice got %#v", got)
	}
	if got := bob.last(t, protocol.ConnectionAccepted); got != (protocol.PeerNotice{PeerID: "alice", PeerUsername: "alice"}) {
		t.Errorf("bob got %#v", got)
	}
	if got := alice.named(protocol.ConnectionRequest); len(got) != 0 {
		t.Errorf("alice should not see bob's crossing request: %v", got)
	}
}

func TestRejectConnection(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	alice := announce(t, c, "lobby", "alice")
	announce(t, c, "lobby", "bob")

	if err := request(c, "alice", "bob"); err != nil {
		t.Fatalf("RequestConnection: %v", err)
	}
	if err := c.RejectConnection("bob", "alice"); err != nil {
		t.Fatalf("RejectConnection: %v", err)
	}
	if got := alice.last(t, protocol.ConnectionRejected); got != (protocol.PeerNotice{PeerID: "bob", PeerUsername: "bob"}) {
		t.Errorf("alice got %#v", got)
	}
	if stats := c.Stats(); stats.Pending != 0 || stats.Pairs != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if err := c.AcceptConnection("bob", "alice"); !errors.Is(err, ErrNoPendingRequest) {
		t.Errorf("accept after reject: got %v", err)
	}
	if err := c.RejectConnection("bob", "alice"); !errors.Is(err, ErrNoPendingRequest) {
		t.Errorf("second reject: got %v", err)
	}

	// a fresh request is allowed once the first is resolved
	if err := request(c, "alice", "bob"); err != nil {
		t.Errorf("request after reject: %v", err)
	}
}

func TestAcceptWrongDirection(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	announce(t, c, "lobby", "alice")
	announce(t, c, "lobby", "bob")

	if err := request(c, "alice", "bob"); err != nil {
		t.Fatalf("RequestConnection: %v", err)
	}
	if err := c.AcceptConnection("alice", "bob"); !errors.Is(err, ErrNoPendingRequest) {
		t.Errorf("requester accepting own request: got %v", err)
	}
	if stats := c.Stats(); stats.Pending != 1 || stats.Pairs != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDisconnectPeer(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	announce(t, c, "lobby", "alice")
	bob := announce(t, c, "lobby", "bob")

	if err := request(c, "alice", "bob"); err != nil {
		t.Fatalf("RequestConnection: %v", err)
	}
	if err := c.AcceptConnection("bob", "alice"); err != nil {
		t.Fatalf("AcceptConnection: %v", err)
	}
	if err := c.DisconnectPeer("alice", "bob"); err != nil {
		t.Fatalf("DisconnectPeer: %v", err)
	}
	if got := bob.last(t, protocol.PeerDisconnected); got != (protocol.PeerNotice{PeerID: "alice", PeerUsername: "alice"}) {
		t.Errorf("bob got %#v", got)
	}
	if len(c.ConnectedPeers("alice")) != 0 || len(c.ConnectedPeers("bob")) != 0 {
		t.Error("pair survived disconnectPeer")
	}
	if err := c.DisconnectPeer("alice", "bob"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("second disconnectPeer: got %v", err)
	}
}

func TestDisconnectCascades(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	announce(t, c, "lobby", "alice")
	bob := announce(t, c, "lobby", "bob")
	carol := announce(t, c, "lobby", "carol")
	dave := announce(t, c, "games", "dave")
	erin := announce(t, c, "games", "erin")

	// alice <-> bob paired, alice -> carol pending, dave -> alice pending
	if err := request(c, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := c.AcceptConnection("bob", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := request(c, "alice", "carol"); err != nil {
		t.Fatal(err)
	}
	if err := request(c, "dave", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := c.JoinRoom("alice", "games"); err != nil {
		t.Fatal(err)
	}
	for _, conn := range []*recorder{bob, carol, dave, erin} {
		conn.reset()
	}

	if err := c.Disconnect("alice"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if _, ok := c.Session("alice"); ok {
		t.Error("session survived disconnect")
	}
	for _, roomID := range []string{"lobby", "games"} {
		if _, ok := rosterNames(t, c.Roster(roomID))["alice"]; ok {
			t.Errorf("alice still listed in %s", roomID)
		}
	}
	if stats := c.Stats(); stats.Pending != 0 || stats.Pairs != 0 || stats.Sessions != 4 {
		t.Errorf("stats = %+v", stats)
	}

	notice := protocol.PeerNotice{PeerID: "alice", PeerUsername: "alice"}
	for _, conn := range []*recorder{bob, carol, dave} {
		got := conn.named(protocol.PeerDisconnected)
		if len(got) != 1 || got[0] != notice {
			t.Errorf("%s peerDisconnected = %v", conn.id, got)
		}
	}
	if got := erin.named(protocol.PeerDisconnected); len(got) != 0 {
		t.Errorf("unrelated erin notified: %v", got)
	}
	// rosters refresh in both rooms alice was subscribed to
	if got := bob.named(protocol.OnlineUsers); len(got) != 1 {
		t.Errorf("bob roster updates = %d", len(got))
	}
	if got := erin.named(protocol.OnlineUsers); len(got) != 1 {
		t.Errorf("erin roster updates = %d", len(got))
	}

	if err := c.Disconnect("alice"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("second disconnect: got %v", err)
	}
}

func TestDisconnectToleratesVanishedRecipient(t *testing.T) {
	c := NewCoordinator(DefaultOptions())
	announce(t, c, "lobby", "alice")
	bob := announce(t, c, "lobby", "bob")
	carol := announce(t, c, "lobby", "carol")
	if err := request(c, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	bob.vanish()
	carol.reset()

	if err := c.Disconnect("alice"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if roster := rosterNames(t, carol.last(t, protocol.OnlineUsers)); len(roster) != 2 {
		t.Errorf("carol roster = %v", roster)
	}
}
