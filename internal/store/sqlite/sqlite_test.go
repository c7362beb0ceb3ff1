package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "u1", "alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID != "u1" || created.Username != "alice" || created.IsOnline || created.LastSeen != nil {
		t.Fatalf("unexpected user: %+v", created)
	}

	byEmail, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != "u1" {
		t.Fatalf("expected u1, got %s", byEmail.ID)
	}

	if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateUser(ctx, "u2", "alice", "other@example.com", "hash"); err == nil {
		t.Fatalf("expected duplicate username to fail")
	}
}

func TestSetOnlineIgnoresStaleWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "u1", "alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	// The offline transition lands first; the older online retry must not win.
	if err := s.SetOnline(ctx, "u1", false, t1); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	if err := s.SetOnline(ctx, "u1", true, t0); err != nil {
		t.Fatalf("set online: %v", err)
	}

	user, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.IsOnline {
		t.Fatalf("stale write overwrote newer state")
	}
	if user.LastSeen == nil || !user.LastSeen.Equal(t1) {
		t.Fatalf("expected last seen %v, got %v", t1, user.LastSeen)
	}

	if err := s.SetOnline(ctx, "unknown", true, t1); err != nil {
		t.Fatalf("unknown user should be ignored, got %v", err)
	}
}

func TestStoreMessageAttachesSender(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "u1", "alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	at := time.Date(2025, 1, 1, 10, 0, 0, 123, time.UTC)
	msg, err := s.StoreMessage(ctx, "u1_u2", "u1", "hello", at)
	if err != nil {
		t.Fatalf("store message: %v", err)
	}
	if msg.ID == 0 || msg.SenderUsername != "alice" || msg.Content != "hello" || !msg.CreatedAt.Equal(at) {
		t.Fatalf("unexpected message: %+v", msg)
	}

	anon, err := s.StoreMessage(ctx, "u1_u2", "ghost", "boo", at.Add(time.Second))
	if err != nil {
		t.Fatalf("store message from unknown sender: %v", err)
	}
	if anon.SenderUsername != "" {
		t.Fatalf("expected empty username, got %q", anon.SenderUsername)
	}
}

func TestListMessagesByRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		if _, err := s.StoreMessage(ctx, "a_b", "a", text, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("store %s: %v", text, err)
		}
	}
	if _, err := s.StoreMessage(ctx, "a_c", "a", "elsewhere", base); err != nil {
		t.Fatalf("store other room: %v", err)
	}

	tests := []struct {
		name     string
		limit    int
		expected []string
	}{
		{name: "all", limit: 0, expected: texts},
		{name: "newest two", limit: 2, expected: []string{"three", "four"}},
		{name: "limit above size", limit: 10, expected: texts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := s.ListMessagesByRoom(ctx, "a_b", tt.limit)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(msgs) != len(tt.expected) {
				t.Fatalf("expected %d messages, got %d", len(tt.expected), len(msgs))
			}
			for i, msg := range msgs {
				if msg.Content != tt.expected[i] {
					t.Errorf("expected %q at index %d, got %q", tt.expected[i], i, msg.Content)
				}
			}
		})
	}

	empty, err := s.ListMessagesByRoom(ctx, "nobody_here", 0)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no messages, got %d", len(empty))
	}
}
