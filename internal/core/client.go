package core

import (
	"context"
	"sort"
	"sync"
)

const defaultMailboxSize = 32

// Client is one live connection as seen by the core layer.
// Commands is the inbound mailbox processed in order by the hub,
// Events carries everything the hub wants written back to the socket.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu    sync.Mutex
	rooms map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
	finished  chan struct{}

	slowOnce sync.Once
	slow     chan struct{}
}

// NewClient constructs a client with bounded command and event buffers.
func NewClient(id string, mailbox int) *Client {
	if mailbox <= 0 {
		mailbox = defaultMailboxSize
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, mailbox),
		Events:   make(chan *Event, mailbox),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		slow:     make(chan struct{}),
	}
}

// Submit queues a command for the hub. It fails once the client is closed.
func (c *Client) Submit(ctx context.Context, cmd *Command) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.Commands <- cmd:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting commands. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the client stops accepting commands.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Slow is closed when the client failed to keep up with its event stream.
// The transport is expected to drop the connection.
func (c *Client) Slow() <-chan struct{} {
	return c.slow
}

// Rooms returns the rooms the client is subscribed to, sorted.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// deliver queues an event without blocking. A full buffer flags the client as slow.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		c.slowOnce.Do(func() { close(c.slow) })
		return false
	}
}

func (c *Client) trackRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) untrackRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}
