package room

import (
	"fmt"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/utils"
)

const anonymousSender = "Anonymous"

// route forwards a file event either to one private target or to every room
// subscriber except the sender. Nothing about the transfer is retained.
func (c *Coordinator) route(s *Session, roomID string, isPrivate bool, targetID, event string, data interface{}) error {
	if isPrivate && targetID != "" {
		target, ok := c.registry.Get(targetID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPeer, targetID)
		}
		if c.opts.RequireConsent && !c.broker.Connected(s.ID, target.ID) {
			return fmt.Errorf("%w: %s -> %s", ErrNoConsent, s.ID, target.ID)
		}
		target.send(event, data)
		return nil
	}
	if c.presence.broadcast(roomID, s.ID, event, data) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, roomID)
	}
	return nil
}

// StartFile relays transfer metadata, stamped with the sender's username.
func (c *Coordinator) StartFile(id string, start protocol.FileStart) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	utils.InfoF("file [%v] %q (%d bytes, %d chunks) from [%v]", start.FileID, start.FileName, start.FileSize, start.TotalChunks, s.ID)
	return c.route(s, start.RoomID, start.IsPrivate, start.TargetPeerID, protocol.FileTransferStart, protocol.FileStartNotice{
		FileID:      start.FileID,
		FileName:    start.FileName,
		FileSize:    start.FileSize,
		FileType:    start.FileType,
		TotalChunks: start.TotalChunks,
		Sender:      nameOr(s.Username, anonymousSender),
	})
}

// RelayChunk forwards one chunk. The payload is passed through untouched.
func (c *Coordinator) RelayChunk(id string, chunk protocol.FileChunkPayload) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return c.route(s, chunk.RoomID, chunk.IsPrivate, chunk.TargetPeerID, protocol.FileChunk, protocol.FileChunkNotice{
		FileID:     chunk.FileID,
		ChunkIndex: chunk.ChunkIndex,
		Chunk:      chunk.Chunk,
	})
}

// CompleteFile tells the receivers to finalize reassembly.
func (c *Coordinator) CompleteFile(id string, done protocol.FileComplete) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	utils.InfoF("file [%v] from [%v] complete", done.FileID, s.ID)
	return c.route(s, done.RoomID, done.IsPrivate, done.TargetPeerID, protocol.FileTransferComplete, protocol.FileCompleteNotice{
		FileID: done.FileID,
	})
}

// FileError is always room-wide, sender included, even for private transfers.
func (c *Coordinator) FileError(id string, failure protocol.FileError) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	utils.WarnF("file [%v] from [%v] failed: %s", failure.FileID, s.ID, failure.Error)
	n := c.presence.broadcast(failure.RoomID, "", protocol.FileTransferError, protocol.FileErrorNotice{
		FileID: failure.FileID,
		Error:  failure.Error,
	})
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, failure.RoomID)
	}
	return nil
}
