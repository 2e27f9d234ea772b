package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns events into websocket frames and back.
type Codec interface {
	Name() string
	// FrameType is the websocket message type used for encoded frames.
	FrameType() int
	Encode(event string, data interface{}) ([]byte, error)
	Decode(frame []byte) (*Packet, error)
	Unmarshal(data []byte, v interface{}) error
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName resolves the codec a client asked for at upgrade time.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// CodecForFrame picks the codec that decodes an inbound frame.
func CodecForFrame(messageType int) (Codec, error) {
	switch messageType {
	case websocket.TextMessage:
		return JSON, nil
	case websocket.BinaryMessage:
		return MsgPack, nil
	}
	return nil, fmt.Errorf("%w: frame type %d", ErrUnknownCodec, messageType)
}

type jsonCodec struct{}

type jsonEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(event string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// chat text goes out as typed
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data"`
	}{event, data}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c jsonCodec) Decode(frame []byte) (*Packet, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return nil, ErrMissingEvent
	}
	return &Packet{Event: env.Event, Data: []byte(env.Data), codec: c}, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

type msgpackCodec struct{}

func init() {
	msgpack.Register(json.Number(""), encodeJSONNumber, nil)
}

// encodeJSONNumber writes numbers decoded from JSON frames as msgpack
// numbers instead of strings.
func encodeJSONNumber(enc *msgpack.Encoder, v reflect.Value) error {
	n := json.Number(v.String())
	if i, err := n.Int64(); err == nil {
		return enc.EncodeInt(i)
	}
	if f, err := n.Float64(); err == nil {
		return enc.EncodeFloat64(f)
	}
	return enc.EncodeString(n.String())
}

type msgpackEnvelope struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data,omitempty"`
}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(event string, data interface{}) ([]byte, error) {
	return msgpack.Marshal(&struct {
		Event string      `msgpack:"event"`
		Data  interface{} `msgpack:"data"`
	}{event, data})
}

func (c msgpackCodec) Decode(frame []byte) (*Packet, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return nil, ErrMissingEvent
	}
	return &Packet{Event: env.Event, Data: []byte(env.Data), codec: c}, nil
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
