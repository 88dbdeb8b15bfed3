package roomlog

// BroadcastEvent is the server echo of a message sent to a room. The
// sender receives their own messages only through this event.
type BroadcastEvent struct {
	MessageID  string `json:"messageId"`
	Content    string `json:"content"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
}

// ActivityEvent signals that a message arrived for a room the user
// belongs to, whether or not that room is currently open.
type ActivityEvent struct {
	RoomID string `json:"roomId"`
}
