package core

import (
	"time"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

// Message is the canonical, store-assigned form of a chat message.
type Message struct {
	ID             int64
	Room           string
	SenderID       string
	SenderUsername string
	SenderAvatar   string
	Content        string
	CreatedAt      time.Time
}

// MessageFromStore converts a stored row into its canonical form.
func MessageFromStore(m *store.Message) *Message {
	return &Message{
		ID:             m.ID,
		Room:           m.Room,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
		SenderAvatar:   m.SenderAvatar,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
