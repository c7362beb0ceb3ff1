package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeUserOnline  = "user_online"
	InboundTypeJoinRoom    = "join_room"
	InboundTypeLeaveRoom   = "leave_room"
	InboundTypeSendMessage = "send_message"
	InboundTypeTyping      = "typing"
	InboundTypeStopTyping  = "stop_typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventJoinedRoom     = "joined_room"
	EventLeftRoom       = "left_room"
	EventReceiveMessage = "receive_message"
	EventMessageFailed  = "message_failed"
	EventUserStatus     = "user_status"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
)

// UserOnlineData binds the connection to a user.
type UserOnlineData struct {
	UserID   string `json:"userId"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// RoomData names a room to join or leave.
type RoomData struct {
	RoomKey string `json:"roomKey"`
}

// SendMessageData is a chat message from the client.
// Any client supplied timestamp is ignored.
type SendMessageData struct {
	RoomKey  string `json:"roomKey"`
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// TypingData is a typing indicator in either direction.
type TypingData struct {
	RoomKey  string `json:"roomKey"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Sender is the display information attached to a message.
type Sender struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// MessagePayload is the canonical form of a stored message.
// Timestamp is RFC 3339 with nanoseconds, assigned by the server.
type MessagePayload struct {
	ID        int64  `json:"id"`
	RoomKey   string `json:"roomKey"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Sender    Sender `json:"sender"`
}

// UserStatusData announces a presence transition.
type UserStatusData struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// MessageFailedData tells the sender a message was not stored.
type MessageFailedData struct {
	RoomKey string `json:"roomKey"`
	Content string `json:"content"`
	Code    string `json:"code"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
