package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomrelay/pkg/protocol"
)

func startManager(t *testing.T, opts Options) (*RoomManager, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rm := NewRoomManager(opts)
	stopped := make(chan struct{})
	go func() {
		rm.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return rm, cancel
}

// settle returns once every event queued so far has been handled.
func settle(t *testing.T, rm *RoomManager) Stats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stats, err := rm.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return stats
}

func packet(t *testing.T, codec protocol.Codec, event string, data interface{}) *protocol.Packet {
	t.Helper()
	pkt, err := protocol.NewPacket(codec, event, data)
	if err != nil {
		t.Fatalf("NewPacket(%s): %v", event, err)
	}
	return pkt
}

func TestManagerRoutesEvents(t *testing.T) {
	rm, _ := startManager(t, DefaultOptions())
	alice, bob := newRecorder("alice"), newRecorder("bob")

	for _, conn := range []*recorder{alice, bob} {
		rm.Connect(conn)
		rm.Dispatch(conn, packet(t, protocol.JSON, protocol.JoinRoom, "lobby"))
		rm.Dispatch(conn, packet(t, protocol.JSON, protocol.SubmitUsername, conn.id))
	}
	// msgpack and json senders share one room
	rm.Dispatch(bob, packet(t, protocol.MsgPack, protocol.SendMessage, protocol.ChatMessage{RoomID: "lobby", Message: "hi", Username: "bob"}))

	stats := settle(t, rm)
	if stats.Sessions != 2 || stats.Rooms != 1 {
		t.Errorf("stats = %+v", stats)
	}
	joined := alice.waitFor(t, protocol.NewUserJoined, 1)
	if joined[0] != "bob has joined the room!" {
		t.Errorf("newUserJoined = %v", joined[0])
	}
	want := protocol.NewMessageNotice{Message: "hi", Username: "bob"}
	for _, conn := range []*recorder{alice, bob} {
		if got := conn.waitFor(t, protocol.NewMessage, 1); got[0] != want {
			t.Errorf("%s got %#v", conn.id, got[0])
		}
	}
}

func TestManagerHandshake(t *testing.T) {
	rm, _ := startManager(t, DefaultOptions())
	alice, bob := newRecorder("alice"), newRecorder("bob")
	rm.Connect(alice)
	rm.Connect(bob)
	rm.Dispatch(bob, packet(t, protocol.JSON, protocol.SubmitUsername, "bob"))

	rm.Dispatch(alice, packet(t, protocol.JSON, protocol.SendConnectionRequest, protocol.ConnectionRequestPayload{PeerID: "bob", RequesterUsername: "alice"}))
	rm.Dispatch(bob, packet(t, protocol.JSON, protocol.AcceptConnection, protocol.PeerPayload{PeerID: "alice"}))

	if stats := settle(t, rm); stats.Pairs != 1 || stats.Pending != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := alice.waitFor(t, protocol.ConnectionAccepted, 1); got[0] != (protocol.PeerNotice{PeerID: "bob", PeerUsername: "bob"}) {
		t.Errorf("alice got %#v", got[0])
	}

	rm.Disconnect(alice)
	if stats := settle(t, rm); stats.Pairs != 0 || stats.Sessions != 1 {
		t.Errorf("stats after disconnect = %+v", stats)
	}
	if got := bob.waitFor(t, protocol.PeerDisconnected, 1); got[0] != (protocol.PeerNotice{PeerID: "alice"}) {
		t.Errorf("bob got %#v", got[0])
	}
}

func TestManagerIgnoresMisuse(t *testing.T) {
	rm, _ := startManager(t, DefaultOptions())
	alice := newRecorder("alice")
	rm.Connect(alice)
	settle(t, rm)
	alice.reset()

	rm.Dispatch(alice, packet(t, protocol.JSON, "selfDestruct", "now"))
	rm.Dispatch(alice, packet(t, protocol.JSON, protocol.JoinRoom, map[string]int{"room": 1}))
	rm.Dispatch(alice, &protocol.Packet{Event: protocol.SubmitUsername})
	rm.Dispatch(alice, packet(t, protocol.JSON, protocol.AcceptConnection, protocol.PeerPayload{PeerID: "ghost"}))
	rm.Dispatch(alice, packet(t, protocol.JSON, protocol.FileChunk, protocol.FileChunkPayload{FileID: "f1", RoomID: "nowhere"}))
	// events from a connection that never registered
	rm.Dispatch(newRecorder("ghost"), packet(t, protocol.JSON, protocol.SendMessage, protocol.ChatMessage{RoomID: "lobby"}))

	stats := settle(t, rm)
	if stats.Sessions != 1 || stats.Rooms != 0 || stats.Pending != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if got := alice.all(); len(got) != 0 {
		t.Errorf("alice received %v", got)
	}

	// the loop is still serving
	rm.Dispatch(alice, packet(t, protocol.JSON, protocol.JoinRoom, "lobby"))
	settle(t, rm)
	if got := alice.waitFor(t, protocol.RequestUsername, 1); got[0] != "lobby" {
		t.Errorf("requestUsername = %v", got[0])
	}
}

func TestManagerStop(t *testing.T) {
	rm, cancel := startManager(t, DefaultOptions())
	settle(t, rm)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := rm.Stats(context.Background())
		if errors.Is(err, ErrManagerStopped) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Stats after stop: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// posting to a stopped manager must not block once the queue is full
	done := make(chan struct{})
	go func() {
		conn := newRecorder("late")
		for i := 0; i < DefaultOptions().EventBuffer+1; i++ {
			rm.Connect(conn)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Connect blocked on a stopped manager")
	}
}

func TestManagerStatsHonoursContext(t *testing.T) {
	rm := NewRoomManager(Options{EventBuffer: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Run was never started, so nothing drains the reply
	if _, err := rm.Stats(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}
