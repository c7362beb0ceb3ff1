package core

import "strings"

// RoomKeySeparator joins the two participant ids of a room key.
const RoomKeySeparator = "_"

// RoomKey derives the canonical key of the conversation between two users.
// The ids are ordered first, so both participants compute the same key.
func RoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + RoomKeySeparator + b
}

// Room groups clients subscribed to the same conversation.
// Rooms are only touched under the router's per-key lock.
type Room struct {
	Key     string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(key string) *Room {
	return &Room{
		Key:     key,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to every client in the room except the one whose
// connection id equals exclude. Clients that cannot keep up are returned.
func (r *Room) Broadcast(event *Event, exclude string) (delivered int, slow []*Client) {
	for client := range r.clients {
		if exclude != "" && client.ID == exclude {
			continue
		}
		if client.deliver(event) {
			delivered++
			continue
		}
		slow = append(slow, client)
	}
	return delivered, slow
}

// Members returns the connection ids in the room.
func (r *Room) Members() []string {
	ids := make([]string, 0, len(r.clients))
	for client := range r.clients {
		ids = append(ids, client.ID)
	}
	return ids
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

// IsParticipant reports whether userID is one of the two users of the room key.
func IsParticipant(key, userID string) bool {
	if userID == "" {
		return false
	}
	if other, ok := strings.CutPrefix(key, userID+RoomKeySeparator); ok && other != "" && RoomKey(userID, other) == key {
		return true
	}
	if other, ok := strings.CutSuffix(key, RoomKeySeparator+userID); ok && other != "" && RoomKey(other, userID) == key {
		return true
	}
	return false
}
