package protocol

// Client to server events.
const (
	JoinRoom              = "joinRoom"              // subscribe to a room topic
	SubmitUsername        = "submitUsername"        // announce in every joined room
	LeaveRoom             = "leaveRoom"             // unsubscribe from a room topic
	GetOnlineUsers        = "getOnlineUsers"        // roster snapshot for one room
	SendMessage           = "sendMessage"           // chat message to a room
	SendConnectionRequest = "sendConnectionRequest" // ask a peer for a private channel
	AcceptConnection      = "acceptConnection"      // accept a pending request
	RejectConnection      = "rejectConnection"      // reject a pending request
	DisconnectPeer        = "disconnectPeer"        // tear down a private channel
)

// File transfer events travel in both directions.
const (
	FileTransferStart    = "fileTransferStart"
	FileChunk            = "fileChunk"
	FileTransferComplete = "fileTransferComplete"
	FileTransferError    = "fileTransferError"
)

// Server to client events.
const (
	Connected          = "connected"
	RequestUsername    = "requestUsername"
	NewUserJoined      = "newUserJoined"
	UserLeft           = "userLeft"
	OnlineUsers        = "onlineUsers"
	NewMessage         = "newMessage"
	ConnectionRequest  = "connectionRequest"
	ConnectionAccepted = "connectionAccepted"
	ConnectionRejected = "connectionRejected"
	PeerDisconnected   = "peerDisconnected"
)

var clientEvents = map[string]struct{}{
	JoinRoom:              {},
	SubmitUsername:        {},
	LeaveRoom:             {},
	GetOnlineUsers:        {},
	SendMessage:           {},
	SendConnectionRequest: {},
	AcceptConnection:      {},
	RejectConnection:      {},
	DisconnectPeer:        {},
	FileTransferStart:     {},
	FileChunk:             {},
	FileTransferComplete:  {},
	FileTransferError:     {},
}

// IsClientEvent reports whether a client is allowed to emit the named event.
func IsClientEvent(name string) bool {
	_, ok := clientEvents[name]
	return ok
}
