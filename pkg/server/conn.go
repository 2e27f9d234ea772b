package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/chuckpreslar/emission"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/utils"
)

var (
	ErrConnClosed    = errors.New("websocket: write closed")
	ErrSendQueueFull = errors.New("websocket: send queue full")
)

// ConnOptions bound a single connection's buffers and keepalive.
type ConnOptions struct {
	SendQueue      int
	MaxMessageSize int64
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
}

func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		SendQueue:      1024,
		MaxMessageSize: 1 << 20,
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

// WebSocketConn wraps a gorilla socket. Inbound frames are emitted as
// "message" events carrying a *protocol.Packet; the end of the read loop
// emits "close" with a close code and text exactly once. Outbound frames go
// through a bounded queue drained by WritePump.
type WebSocketConn struct {
	emission.Emitter
	id     string
	socket *websocket.Conn
	codec  protocol.Codec
	opts   ConnOptions
	send   chan []byte
	mutex  *sync.Mutex
	closed bool
	once   sync.Once
}

func NewWebSocketConn(socket *websocket.Conn, codec protocol.Codec, opts ConnOptions) *WebSocketConn {
	var conn WebSocketConn
	conn.Emitter = *emission.NewEmitter()
	conn.id = uuid.NewString()
	conn.socket = socket
	conn.codec = codec
	conn.opts = opts
	conn.send = make(chan []byte, opts.SendQueue)
	conn.mutex = new(sync.Mutex)
	conn.closed = false
	return &conn
}

func (conn *WebSocketConn) ID() string {
	return conn.id
}

func (conn *WebSocketConn) Codec() protocol.Codec {
	return conn.codec
}

// Send encodes an event and queues it without blocking. A full queue drops
// the frame.
func (conn *WebSocketConn) Send(event string, data interface{}) error {
	frame, err := conn.codec.Encode(event, data)
	if err != nil {
		return err
	}
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if conn.closed {
		return ErrConnClosed
	}
	select {
	case conn.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops the write pump. Safe to call more than once.
func (conn *WebSocketConn) Close() {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()
	if !conn.closed {
		conn.closed = true
		close(conn.send)
	}
}

func (conn *WebSocketConn) emitClose(code int, text string) {
	conn.once.Do(func() {
		conn.Emit("close", code, text)
	})
}

// ReadMessage runs the read loop until the socket fails or closes.
func (conn *WebSocketConn) ReadMessage() {
	c := conn.socket
	c.SetReadLimit(conn.opts.MaxMessageSize)
	if err := c.SetReadDeadline(time.Now().Add(conn.opts.PongWait)); err != nil {
		utils.WarnF("[ReadMessage] set read deadline for %s: %v", conn.id, err)
	}
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(conn.opts.PongWait))
	})

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			utils.DebugF("[ReadMessage] %s: %v", conn.id, err)
			conn.emitClose(closeCode(err))
			return
		}
		codec, err := protocol.CodecForFrame(messageType)
		if err != nil {
			utils.WarnF("[ReadMessage] %s: %v", conn.id, err)
			continue
		}
		pkt, err := codec.Decode(message)
		if err != nil {
			utils.WarnF("[ReadMessage] dropping frame from %s: %v", conn.id, err)
			continue
		}
		utils.DebugF("received %s from %s", pkt.Event, conn.id)
		conn.Emit("message", pkt)
	}
}

func closeCode(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return websocket.CloseGoingAway, oe.Error()
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		return websocket.CloseMessageTooBig, err.Error()
	}
	return websocket.CloseAbnormalClosure, err.Error()
}

// WritePump drains the send queue and keeps the connection alive with pings.
// It owns every write to the socket and closes it on exit.
func (conn *WebSocketConn) WritePump() {
	pingTicker := time.NewTicker(conn.opts.PingInterval)
	c := conn.socket
	defer func() {
		pingTicker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame, ok := <-conn.send:
			_ = c.SetWriteDeadline(time.Now().Add(conn.opts.WriteWait))
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.WriteMessage(conn.codec.FrameType(), frame); err != nil {
				utils.WarnF("[WritePump] write to %s: %v", conn.id, err)
				return
			}
		case <-pingTicker.C:
			_ = c.SetWriteDeadline(time.Now().Add(conn.opts.WriteWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				utils.DebugF("[WritePump] ping %s: %v", conn.id, err)
				return
			}
		}
	}
}
