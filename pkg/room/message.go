package room

import (
	"fmt"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/utils"
)

// SendMessage fans a chat message out to every subscriber of the room,
// sender included, so every client renders from the same ordered stream.
func (c *Coordinator) SendMessage(id string, msg protocol.ChatMessage) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	username := msg.Username
	if username == "" {
		username = s.Username
	}
	n := c.presence.broadcast(msg.RoomID, "", protocol.NewMessage, protocol.NewMessageNotice{
		Message:  msg.Message,
		Username: username,
	})
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, msg.RoomID)
	}
	utils.DebugF("message from [%v] delivered to %d subscribers of [%v]", s.ID, n, msg.RoomID)
	return nil
}
