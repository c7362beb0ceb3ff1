package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClientSubmitAfterClose(t *testing.T) {
	c := NewClient("c1", 1)
	if err := c.Submit(context.Background(), &Command{Kind: CommandTyping}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Submit(ctx, &Command{Kind: CommandTyping}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("full mailbox must block until the context ends, got %v", err)
	}

	c.Close()
	c.Close()
	if err := c.Submit(context.Background(), &Command{Kind: CommandTyping}); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Fatalf("done must be closed")
	}
}

func TestClientDefaultMailbox(t *testing.T) {
	c := NewClient("c1", 0)
	if cap(c.Commands) != defaultMailboxSize || cap(c.Events) != defaultMailboxSize {
		t.Fatalf("expected default mailbox %d, got %d/%d", defaultMailboxSize, cap(c.Commands), cap(c.Events))
	}
}
