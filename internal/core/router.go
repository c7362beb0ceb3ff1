package core

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/vovakirdan/pairchat-server/internal/metrics"
)

// Router tracks which connections are subscribed to which room.
// Join, leave and fan-out of one room run under that room's key lock;
// different rooms do not contend. A room exists only while it has members.
type Router struct {
	rooms   *xsync.MapOf[string, *Room]
	metrics *metrics.Metrics
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{rooms: xsync.NewMapOf[string, *Room]()}
}

// Join subscribes the client to the room. Returns false if it already was.
func (r *Router) Join(c *Client, key string) bool {
	var added bool
	r.rooms.Compute(key, func(room *Room, loaded bool) (*Room, bool) {
		if !loaded {
			room = NewRoom(key)
		}
		added = room.AddClient(c)
		return room, false
	})
	if added {
		c.trackRoom(key)
	}
	return added
}

// Leave unsubscribes the client from the room. Returns false if it was not subscribed.
func (r *Router) Leave(c *Client, key string) bool {
	var removed bool
	r.rooms.Compute(key, func(room *Room, loaded bool) (*Room, bool) {
		if !loaded {
			return nil, true
		}
		removed = room.RemoveClient(c)
		return room, room.Empty()
	})
	c.untrackRoom(key)
	return removed
}

// LeaveAll unsubscribes the client from every room it joined.
func (r *Router) LeaveAll(c *Client) {
	for _, key := range c.Rooms() {
		r.Leave(c, key)
	}
}

// Broadcast delivers the event to every subscriber of the room, sender included.
func (r *Router) Broadcast(key string, ev *Event) int {
	return r.fanout(key, "", ev)
}

// Relay delivers the event to every subscriber of the room except the origin connection.
func (r *Router) Relay(key, excludeConnID string, ev *Event) int {
	return r.fanout(key, excludeConnID, ev)
}

// Members returns the sorted connection ids subscribed to the room.
func (r *Router) Members(key string) []string {
	var ids []string
	r.rooms.Compute(key, func(room *Room, loaded bool) (*Room, bool) {
		if !loaded {
			return nil, true
		}
		ids = room.Members()
		return room, false
	})
	sort.Strings(ids)
	return ids
}

// Len returns the number of rooms with at least one subscriber.
func (r *Router) Len() int {
	return r.rooms.Size()
}

func (r *Router) fanout(key, exclude string, ev *Event) int {
	var (
		delivered int
		slow      []*Client
	)
	r.rooms.Compute(key, func(room *Room, loaded bool) (*Room, bool) {
		if !loaded {
			return nil, true
		}
		delivered, slow = room.Broadcast(ev, exclude)
		return room, false
	})
	for range slow {
		r.metrics.SlowConsumer()
	}
	return delivered
}
