package core

import (
	"errors"
	"testing"
)

func TestRegistryIdentify(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewClient("c1", 1))

	if _, err := reg.Identify("c1", ""); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for empty user, got %v", err)
	}
	if _, err := reg.Identify("missing", "u1"); !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}

	first, err := reg.Identify("c1", "u1")
	if err != nil || !first {
		t.Fatalf("expected first binding, got first=%v err=%v", first, err)
	}
	first, err = reg.Identify("c1", "u1")
	if err != nil || first {
		t.Fatalf("repeating the same identity must be a no-op, got first=%v err=%v", first, err)
	}
	if _, err := reg.Identify("c1", "u2"); !errors.Is(err, ErrIdentityConflict) {
		t.Fatalf("expected ErrIdentityConflict, got %v", err)
	}

	s, ok := reg.Session("c1")
	if !ok || s.UserID != "u1" || !s.Identified() {
		t.Fatalf("unexpected session: %+v", s)
	}
	if _, ok := reg.Session("missing"); ok {
		t.Fatalf("identify must not create unknown connections")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one session, got %d", reg.Len())
	}
}

func TestRegistryDeregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewClient("anon", 1))
	reg.Register(NewClient("c1", 1))
	if _, err := reg.Identify("c1", "u1"); err != nil {
		t.Fatalf("identify: %v", err)
	}

	if _, ok := reg.Deregister("anon"); ok {
		t.Fatalf("unidentified connection must not report a user")
	}
	userID, ok := reg.Deregister("c1")
	if !ok || userID != "u1" {
		t.Fatalf("expected u1, got %q ok=%v", userID, ok)
	}
	if _, ok := reg.Deregister("c1"); ok {
		t.Fatalf("second deregister must report nothing")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}

func TestRegistryAdjustFloorsAtZero(t *testing.T) {
	reg := NewRegistry()

	reg.adjust("u1", 1, nil)
	reg.adjust("u1", -1, nil)
	state := reg.adjust("u1", -1, nil)

	if state.Count != 0 || reg.ActiveCount("u1") != 0 {
		t.Fatalf("count must never go negative, got %d", state.Count)
	}
	if reg.ActiveCount("nobody") != 0 || reg.Presence("nobody").Online() {
		t.Fatalf("unknown users are offline")
	}
}
