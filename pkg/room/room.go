package room

import (
	"context"
	"errors"
	"net/http"

	"github.com/chuckpreslar/emission"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/server"
	"roomrelay/pkg/utils"
)

var ErrManagerStopped = errors.New("room manager stopped")

type eventKind int

const (
	connectEvent eventKind = iota
	packetEvent
	disconnectEvent
	statsEvent
)

type event struct {
	kind  eventKind
	conn  Conn
	pkt   *protocol.Packet
	stats chan Stats
}

// RoomManager is the dispatcher. Every connect, inbound event and disconnect
// is queued and handled to completion by Run, one at a time, so the
// coordinator's tables need no locking.
type RoomManager struct {
	coord  *Coordinator
	router *emission.Emitter
	events chan event
	done   chan struct{}
}

func NewRoomManager(opts Options) *RoomManager {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultOptions().EventBuffer
	}
	rm := &RoomManager{
		coord:  NewCoordinator(opts),
		router: emission.NewEmitter(),
		events: make(chan event, opts.EventBuffer),
		done:   make(chan struct{}),
	}
	rm.router.RecoverWith(func(name, listener interface{}, err error) {
		utils.ErrorF("handler for %v panicked: %v", name, err)
	})
	rm.router.On(protocol.JoinRoom, rm.onJoinRoom)
	rm.router.On(protocol.SubmitUsername, rm.onSubmitUsername)
	rm.router.On(protocol.LeaveRoom, rm.onLeaveRoom)
	rm.router.On(protocol.GetOnlineUsers, rm.onGetOnlineUsers)
	rm.router.On(protocol.SendMessage, rm.onSendMessage)
	rm.router.On(protocol.SendConnectionRequest, rm.onSendConnectionRequest)
	rm.router.On(protocol.AcceptConnection, rm.onAcceptConnection)
	rm.router.On(protocol.RejectConnection, rm.onRejectConnection)
	rm.router.On(protocol.DisconnectPeer, rm.onDisconnectPeer)
	rm.router.On(protocol.FileTransferStart, rm.onFileTransferStart)
	rm.router.On(protocol.FileChunk, rm.onFileChunk)
	rm.router.On(protocol.FileTransferComplete, rm.onFileTransferComplete)
	rm.router.On(protocol.FileTransferError, rm.onFileTransferError)
	return rm
}

// InterHandleWebSocket attaches a freshly upgraded connection.
func (rm *RoomManager) InterHandleWebSocket(conn *server.WebSocketConn, request *http.Request) {
	utils.InfoF("attaching %s from %s (%s frames)", conn.ID(), request.RemoteAddr, conn.Codec().Name())
	rm.Connect(conn)
	conn.On("message", func(pkt *protocol.Packet) {
		rm.Dispatch(conn, pkt)
	})
	conn.On("close", func(code int, text string) {
		utils.InfoF("connection %s closed [%d] %s", conn.ID(), code, text)
		rm.Disconnect(conn)
	})
}

// Connect queues the registration of conn.
func (rm *RoomManager) Connect(conn Conn) {
	rm.post(event{kind: connectEvent, conn: conn})
}

// Dispatch queues an inbound event from conn.
func (rm *RoomManager) Dispatch(conn Conn, pkt *protocol.Packet) {
	rm.post(event{kind: packetEvent, conn: conn, pkt: pkt})
}

// Disconnect queues the removal of conn and the cleanup it cascades into.
func (rm *RoomManager) Disconnect(conn Conn) {
	rm.post(event{kind: disconnectEvent, conn: conn})
}

func (rm *RoomManager) post(ev event) {
	select {
	case rm.events <- ev:
	case <-rm.done:
		utils.DebugF("room manager stopped, dropping event from %s", ev.conn.ID())
	}
}

// Stats asks the loop for a snapshot of the shared tables.
func (rm *RoomManager) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case rm.events <- event{kind: statsEvent, stats: reply}:
	case <-rm.done:
		return Stats{}, ErrManagerStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-rm.done:
		return Stats{}, ErrManagerStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Run processes queued events until ctx is cancelled.
func (rm *RoomManager) Run(ctx context.Context) {
	defer close(rm.done)
	utils.InfoF("room manager running")
	for {
		select {
		case <-ctx.Done():
			utils.InfoF("room manager stopping: %v", ctx.Err())
			return
		case ev := <-rm.events:
			rm.handle(ev)
		}
	}
}

func (rm *RoomManager) handle(ev event) {
	switch ev.kind {
	case connectEvent:
		rm.coord.Connect(ev.conn)
	case disconnectEvent:
		rm.check("disconnect", ev.conn.ID(), rm.coord.Disconnect(ev.conn.ID()))
	case statsEvent:
		ev.stats <- rm.coord.Stats()
	case packetEvent:
		if !protocol.IsClientEvent(ev.pkt.Event) {
			utils.WarnF("unknown event %q from %s", ev.pkt.Event, ev.conn.ID())
			return
		}
		rm.router.Emit(ev.pkt.Event, ev.conn.ID(), ev.pkt)
	}
}

// check logs a rejected operation. Misuse never reaches other sessions.
func (rm *RoomManager) check(name, id string, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrAlreadyConnected),
		errors.Is(err, ErrSelfRequest), errors.Is(err, ErrNoConsent):
		utils.WarnF("%s from %s rejected: %v", name, id, err)
	default:
		utils.DebugF("%s from %s ignored: %v", name, id, err)
	}
}

func (rm *RoomManager) bind(id string, pkt *protocol.Packet, v interface{}) bool {
	if err := pkt.Bind(v); err != nil {
		codec := "unknown"
		if pkt.Codec() != nil {
			codec = pkt.Codec().Name()
		}
		utils.WarnF("bad %s payload from %s (%s): %v", pkt.Event, id, codec, err)
		return false
	}
	return true
}

func (rm *RoomManager) onJoinRoom(id string, pkt *protocol.Packet) {
	var roomID string
	if rm.bind(id, pkt, &roomID) {
		rm.check(pkt.Event, id, rm.coord.JoinRoom(id, roomID))
	}
}

func (rm *RoomManager) onSubmitUsername(id string, pkt *protocol.Packet) {
	var username string
	if rm.bind(id, pkt, &username) {
		rm.check(pkt.Event, id, rm.coord.SubmitUsername(id, username))
	}
}

func (rm *RoomManager) onLeaveRoom(id string, pkt *protocol.Packet) {
	var roomID string
	if rm.bind(id, pkt, &roomID) {
		rm.check(pkt.Event, id, rm.coord.LeaveRoom(id, roomID))
	}
}

func (rm *RoomManager) onGetOnlineUsers(id string, pkt *protocol.Packet) {
	var roomID string
	if rm.bind(id, pkt, &roomID) {
		rm.check(pkt.Event, id, rm.coord.OnlineUsers(id, roomID))
	}
}

func (rm *RoomManager) onSendMessage(id string, pkt *protocol.Packet) {
	var msg protocol.ChatMessage
	if rm.bind(id, pkt, &msg) {
		rm.check(pkt.Event, id, rm.coord.SendMessage(id, msg))
	}
}

func (rm *RoomManager) onSendConnectionRequest(id string, pkt *protocol.Packet) {
	var req protocol.ConnectionRequestPayload
	if rm.bind(id, pkt, &req) {
		rm.check(pkt.Event, id, rm.coord.RequestConnection(id, req))
	}
}

func (rm *RoomManager) onAcceptConnection(id string, pkt *protocol.Packet) {
	var p protocol.PeerPayload
	if rm.bind(id, pkt, &p) {
		rm.check(pkt.Event, id, rm.coord.AcceptConnection(id, p.PeerID))
	}
}

func (rm *RoomManager) onRejectConnection(id string, pkt *protocol.Packet) {
	var p protocol.PeerPayload
	if rm.bind(id, pkt, &p) {
		rm.check(pkt.Event, id, rm.coord.RejectConnection(id, p.PeerID))
	}
}

func (rm *RoomManager) onDisconnectPeer(id string, pkt *protocol.Packet) {
	var p protocol.PeerPayload
	if rm.bind(id, pkt, &p) {
		rm.check(pkt.Event, id, rm.coord.DisconnectPeer(id, p.PeerID))
	}
}

func (rm *RoomManager) onFileTransferStart(id string, pkt *protocol.Packet) {
	var start protocol.FileStart
	if rm.bind(id, pkt, &start) {
		rm.check(pkt.Event, id, rm.coord.StartFile(id, start))
	}
}

func (rm *RoomManager) onFileChunk(id string, pkt *protocol.Packet) {
	var chunk protocol.FileChunkPayload
	if rm.bind(id, pkt, &chunk) {
		rm.check(pkt.Event, id, rm.coord.RelayChunk(id, chunk))
	}
}

func (rm *RoomManager) onFileTransferComplete(id string, pkt *protocol.Packet) {
	var done protocol.FileComplete
	if rm.bind(id, pkt, &done) {
		rm.check(pkt.Event, id, rm.coord.CompleteFile(id, done))
	}
}

func (rm *RoomManager) onFileTransferError(id string, pkt *protocol.Packet) {
	var failure protocol.FileError
	if rm.bind(id, pkt, &failure) {
		rm.check(pkt.Event, id, rm.coord.FileError(id, failure))
	}
}
