package roomlog

import "encoding/json"

const (
	intentJoinRoom  = "joinRoom"
	intentLeaveRoom = "leaveRoom"
	intentBroadcast = "broadcast"

	eventBroadcast  = "broadcast"
	eventNewMessage = "newMessage"
)

// Intent is the envelope client -> server.
type Intent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Event is the envelope server -> client.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomPayload addresses an intent to a single room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// BroadcastPayload publishes a message to a room. ClientMsgID lets the
// server deduplicate a resent intent; it is not the message identity.
type BroadcastPayload struct {
	RoomID      string `json:"roomId"`
	Content     string `json:"content"`
	ClientMsgID string `json:"clientMsgId"`
}
