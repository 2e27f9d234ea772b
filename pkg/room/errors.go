package room

import "errors"

var (
	ErrUnknownSession   = errors.New("unknown session")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrUnknownRoom      = errors.New("room has no subscribers")
	ErrNotInRoom        = errors.New("session is not subscribed to room")
	ErrEmptyUsername    = errors.New("username is empty")
	ErrEmptyRoomID      = errors.New("room id is empty")
	ErrSelfRequest      = errors.New("cannot request a connection to yourself")
	ErrDuplicateRequest = errors.New("connection request already pending")
	ErrAlreadyConnected = errors.New("peers already connected")
	ErrNoPendingRequest = errors.New("no pending connection request")
	ErrNotConnected     = errors.New("peers are not connected")
	ErrNoConsent        = errors.New("private transfer requires an accepted peer connection")
)
