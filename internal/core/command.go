package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIdentify binds the connection to a user and announces presence.
	CommandIdentify CommandKind = iota
	// CommandJoinRoom subscribes the client to a room.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandSendMessage persists a chat message and delivers it to the room.
	CommandSendMessage
	// CommandTyping relays a typing indicator to the other room members.
	CommandTyping
	// CommandStopTyping relays the end of a typing indicator.
	CommandStopTyping
)

func (k CommandKind) String() string {
	switch k {
	case CommandIdentify:
		return "identify"
	case CommandJoinRoom:
		return "join_room"
	case CommandLeaveRoom:
		return "leave_room"
	case CommandSendMessage:
		return "send_message"
	case CommandTyping:
		return "typing"
	case CommandStopTyping:
		return "stop_typing"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	UserID   string // identify: user to bind; send: claimed sender
	Room     string
	Content  string
	Username string // typing: display name echoed to peers
}
