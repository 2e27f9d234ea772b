package protocol

import "errors"

var (
	ErrUnknownCodec   = errors.New("unknown codec")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingEvent   = errors.New("frame has no event name")
	ErrEmptyPayload   = errors.New("event has no payload")
	ErrNoCodec        = errors.New("packet has no codec")
)
