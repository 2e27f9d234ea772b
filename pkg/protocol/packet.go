package protocol

// Packet is one decoded inbound event. Data stays in the sender's encoding
// until a handler binds it to the payload type it expects.
type Packet struct {
	Event string
	Data  []byte

	codec Codec
}

// NewPacket encodes data with codec and decodes it back into a Packet, the
// same path a frame read from the wire takes.
func NewPacket(codec Codec, event string, data interface{}) (*Packet, error) {
	frame, err := codec.Encode(event, data)
	if err != nil {
		return nil, err
	}
	return codec.Decode(frame)
}

// Bind decodes the payload into v.
func (p *Packet) Bind(v interface{}) error {
	if p.codec == nil {
		return ErrNoCodec
	}
	if len(p.Data) == 0 {
		return ErrEmptyPayload
	}
	return p.codec.Unmarshal(p.Data, v)
}

// Codec returns the codec the packet arrived in.
func (p *Packet) Codec() Codec {
	return p.codec
}
