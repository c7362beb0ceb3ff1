package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if an event of kind arrives within wait.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		case <-timer.C:
			return
		}
	}
}

// drain returns every event currently buffered on ch.
func drain(ch <-chan *Event) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func presenceEvents(events []*Event, userID string) []bool {
	var states []bool
	for _, ev := range events {
		if ev.Kind == EventPresenceChanged && ev.Presence.UserID == userID {
			states = append(states, ev.Presence.Online)
		}
	}
	return states
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type fakeDirectory struct {
	mu       sync.Mutex
	calls    int
	failures int // calls that fail before writes start to succeed; -1 fails forever
	writes   []PresenceChange
}

func (d *fakeDirectory) SetOnline(_ context.Context, userID string, online bool, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failures < 0 || d.calls <= d.failures {
		return errors.New("directory unavailable")
	}
	d.writes = append(d.writes, PresenceChange{UserID: userID, Online: online, At: at})
	return nil
}

func (d *fakeDirectory) snapshot() (int, []PresenceChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls, append([]PresenceChange(nil), d.writes...)
}

type fakeMessageStore struct {
	mu     sync.Mutex
	nextID int64
	calls  int
	err    error
	stored []*store.Message
}

func (s *fakeMessageStore) StoreMessage(_ context.Context, room, senderID, content string, at time.Time) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	s.nextID++
	msg := &store.Message{
		ID:             s.nextID,
		Room:           room,
		SenderID:       senderID,
		SenderUsername: "name-" + senderID,
		Content:        content,
		CreatedAt:      at,
	}
	s.stored = append(s.stored, msg)
	return msg, nil
}

func (s *fakeMessageStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*Message
	presence []PresenceChange
}

func (p *fakePublisher) PublishMessage(msg *Message) {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
}

func (p *fakePublisher) PublishPresence(change PresenceChange) {
	p.mu.Lock()
	p.presence = append(p.presence, change)
	p.mu.Unlock()
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = nopLogger()
	}
	hub := NewHub(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// connect registers a client and identifies it as userID.
func connect(t *testing.T, hub *Hub, connID, userID string) *Client {
	t.Helper()
	c := NewClient(connID, 64)
	hub.RegisterClient(c)
	if userID != "" {
		submit(t, c, &Command{Kind: CommandIdentify, UserID: userID})
	}
	return c
}

func submit(t *testing.T, c *Client, cmd *Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Submit(ctx, cmd); err != nil {
		t.Fatalf("submit %v: %v", cmd.Kind, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// collectUntil returns every event up to and including the first one of kind.
func collectUntil(t *testing.T, ch <-chan *Event, kind EventKind) []*Event {
	t.Helper()

	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	var seen []*Event
	for {
		select {
		case ev := <-ch:
			seen = append(seen, ev)
			if ev != nil && ev.Kind == kind {
				return seen
			}
		case <-timer.C:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}
