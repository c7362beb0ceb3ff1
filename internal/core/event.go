package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoinedRoom acknowledges a successful subscription.
	EventJoinedRoom EventKind = iota
	// EventLeftRoom acknowledges an unsubscription.
	EventLeftRoom
	// EventMessageDelivered carries a persisted message to every room subscriber.
	EventMessageDelivered
	// EventMessageFailed tells the sender its message was not stored.
	EventMessageFailed
	// EventPresenceChanged is broadcast to every connection on an online/offline transition.
	EventPresenceChanged
	// EventTyping relays a typing indicator.
	EventTyping
	// EventStopTyping relays the end of a typing indicator.
	EventStopTyping
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventJoinedRoom:
		return "joined_room"
	case EventLeftRoom:
		return "left_room"
	case EventMessageDelivered:
		return "message_delivered"
	case EventMessageFailed:
		return "message_failed"
	case EventPresenceChanged:
		return "presence_changed"
	case EventTyping:
		return "typing"
	case EventStopTyping:
		return "stop_typing"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after fan-out.
type Event struct {
	Kind     EventKind
	Room     string
	Message  *Message
	Presence *PresenceChange
	Typing   *TypingSignal
	Failed   *FailedMessage
	Error    *CoreError
}

// PresenceChange is an online/offline transition of one user.
type PresenceChange struct {
	UserID string
	Online bool
	At     time.Time
}

// TypingSignal is the ephemeral payload of typing indicators.
type TypingSignal struct {
	Room     string
	UserID   string
	Username string
}

// FailedMessage describes a send the store rejected.
type FailedMessage struct {
	Room    string
	Content string
	Code    string
}

func errorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}
