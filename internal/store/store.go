package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the directory.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
	IsOnline     bool
	LastSeen     *time.Time // time of the last online/offline transition
	CreatedAt    time.Time
}

// Message represents a persisted chat message with its sender's display
// fields attached.
type Message struct {
	ID             int64
	Room           string
	SenderID       string
	SenderUsername string
	SenderAvatar   string
	Content        string
	CreatedAt      time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, id, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers lists every user ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)
}

// DirectoryStore holds the durable online flag.
type DirectoryStore interface {
	// SetOnline records a presence transition. A write whose timestamp is not
	// newer than the stored one is ignored, so reordered retries cannot win.
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// StoreMessage persists a message and returns its canonical form.
	StoreMessage(ctx context.Context, room, senderID, content string, at time.Time) (*Message, error)

	// ListMessagesByRoom returns the newest limit messages of a room in
	// ascending timestamp order. limit <= 0 returns all of them.
	ListMessagesByRoom(ctx context.Context, room string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	DirectoryStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
