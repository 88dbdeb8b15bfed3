package rest

import "time"

// MessageInfo is one message in a history response.
type MessageInfo struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MemberInfo is one room participant in a history response.
type MemberInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatRoomDetail is the room payload inside a messages response.
type ChatRoomDetail struct {
	Messages []MessageInfo `json:"messages"`
	Members  []MemberInfo  `json:"members"`
}

// MessagesResponse is the envelope returned by the messages endpoint.
type MessagesResponse struct {
	ChatRoomDetail ChatRoomDetail `json:"chatRoomDetail"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
