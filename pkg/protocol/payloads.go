package protocol

// UserInfo is one roster entry.
type UserInfo struct {
	ID       string `json:"id" msgpack:"id"`
	Username string `json:"username" msgpack:"username"`
}

// ConnectedNotice tells a freshly opened connection its id.
type ConnectedNotice struct {
	ID string `json:"id" msgpack:"id"`
}

// ChatMessage is the sendMessage payload.
type ChatMessage struct {
	RoomID   string `json:"roomId" msgpack:"roomId"`
	Message  string `json:"message" msgpack:"message"`
	Username string `json:"username" msgpack:"username"`
}

// NewMessageNotice is delivered to every room subscriber.
type NewMessageNotice struct {
	Message  string `json:"message" msgpack:"message"`
	Username string `json:"username" msgpack:"username"`
}

// ConnectionRequestPayload is the sendConnectionRequest payload.
type ConnectionRequestPayload struct {
	PeerID            string `json:"peerId" msgpack:"peerId"`
	RequesterUsername string `json:"requesterUsername" msgpack:"requesterUsername"`
}

// ConnectionRequestNotice is delivered to the target of a request.
type ConnectionRequestNotice struct {
	RequesterID       string `json:"requesterId" msgpack:"requesterId"`
	RequesterUsername string `json:"requesterUsername" msgpack:"requesterUsername"`
}

// PeerPayload carries the counterpart of accept, reject and disconnectPeer.
type PeerPayload struct {
	PeerID string `json:"peerId" msgpack:"peerId"`
}

// PeerNotice is sent for connectionAccepted, connectionRejected and
// peerDisconnected.
type PeerNotice struct {
	PeerID       string `json:"peerId" msgpack:"peerId"`
	PeerUsername string `json:"peerUsername" msgpack:"peerUsername"`
}

// FileStart announces a transfer.
type FileStart struct {
	FileID       string `json:"fileId" msgpack:"fileId"`
	FileName     string `json:"fileName" msgpack:"fileName"`
	FileSize     int64  `json:"fileSize" msgpack:"fileSize"`
	FileType     string `json:"fileType" msgpack:"fileType"`
	TotalChunks  int    `json:"totalChunks" msgpack:"totalChunks"`
	RoomID       string `json:"roomId" msgpack:"roomId"`
	IsPrivate    bool   `json:"isPrivate" msgpack:"isPrivate"`
	TargetPeerID string `json:"targetPeerId,omitempty" msgpack:"targetPeerId,omitempty"`
}

// FileStartNotice is what receivers of a FileStart see.
type FileStartNotice struct {
	FileID      string `json:"fileId" msgpack:"fileId"`
	FileName    string `json:"fileName" msgpack:"fileName"`
	FileSize    int64  `json:"fileSize" msgpack:"fileSize"`
	FileType    string `json:"fileType" msgpack:"fileType"`
	TotalChunks int    `json:"totalChunks" msgpack:"totalChunks"`
	Sender      string `json:"sender" msgpack:"sender"`
}

// FileChunkPayload carries one slice of a file. Chunk is relayed as decoded
// by the codec and never inspected.
type FileChunkPayload struct {
	FileID       string      `json:"fileId" msgpack:"fileId"`
	ChunkIndex   int         `json:"chunkIndex" msgpack:"chunkIndex"`
	Chunk        interface{} `json:"chunk" msgpack:"chunk"`
	RoomID       string      `json:"roomId" msgpack:"roomId"`
	IsPrivate    bool        `json:"isPrivate" msgpack:"isPrivate"`
	TargetPeerID string      `json:"targetPeerId,omitempty" msgpack:"targetPeerId,omitempty"`
}

// FileChunkNotice is what receivers of a chunk see.
type FileChunkNotice struct {
	FileID     string      `json:"fileId" msgpack:"fileId"`
	ChunkIndex int         `json:"chunkIndex" msgpack:"chunkIndex"`
	Chunk      interface{} `json:"chunk" msgpack:"chunk"`
}

// FileComplete signals the end of a transfer.
type FileComplete struct {
	FileID       string `json:"fileId" msgpack:"fileId"`
	RoomID       string `json:"roomId" msgpack:"roomId"`
	IsPrivate    bool   `json:"isPrivate" msgpack:"isPrivate"`
	TargetPeerID string `json:"targetPeerId,omitempty" msgpack:"targetPeerId,omitempty"`
}

// FileCompleteNotice is what receivers of a FileComplete see.
type FileCompleteNotice struct {
	FileID string `json:"fileId" msgpack:"fileId"`
}

// FileError reports a sender-side failure.
type FileError struct {
	FileID string `json:"fileId" msgpack:"fileId"`
	Error  string `json:"error" msgpack:"error"`
	RoomID string `json:"roomId" msgpack:"roomId"`
}

// FileErrorNotice is broadcast to the whole room.
type FileErrorNotice struct {
	FileID string `json:"fileId" msgpack:"fileId"`
	Error  string `json:"error" msgpack:"error"`
}
