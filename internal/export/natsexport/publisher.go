// Package natsexport mirrors delivered messages and presence transitions onto
// NATS subjects for downstream consumers.
package natsexport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/core"
)

const (
	roomSubjectPrefix     = "chat.room."
	presenceSubjectPrefix = "chat.presence."

	// encodedTokenPrefix marks a subject token holding a base64url id.
	encodedTokenPrefix = "~"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher implements core.Publisher on top of a NATS connection.
type Publisher struct {
	conn Conn
	nc   *nats.Conn
	log  *zerolog.Logger
}

// MessageRecord is the JSON body published for each delivered message.
type MessageRecord struct {
	ID             int64  `json:"id"`
	Room           string `json:"room"`
	SenderID       string `json:"senderId"`
	SenderUsername string `json:"senderUsername,omitempty"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}

// PresenceRecord is the JSON body published for each presence transition.
type PresenceRecord struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	At       int64  `json:"at"`
}

// Connect dials NATS and returns a publisher owning the connection.
func Connect(url string, logger *zerolog.Logger) (*Publisher, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	nc, err := nats.Connect(url,
		nats.Name("pairchat-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := New(nc, logger)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection.
func New(conn Conn, logger *zerolog.Logger) *Publisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Publisher{conn: conn, log: logger}
}

// PublishMessage publishes a delivered message on chat.room.<room>.
func (p *Publisher) PublishMessage(msg *core.Message) {
	p.publish(roomSubjectPrefix+SubjectToken(msg.Room), MessageRecord{
		ID:             msg.ID,
		Room:           msg.Room,
		SenderID:       msg.SenderID,
		SenderUsername: msg.SenderUsername,
		Content:        msg.Content,
		Timestamp:      msg.CreatedAt.UnixMilli(),
	})
}

// PublishPresence publishes a transition on chat.presence.<userId>.
func (p *Publisher) PublishPresence(change core.PresenceChange) {
	p.publish(presenceSubjectPrefix+SubjectToken(change.UserID), PresenceRecord{
		UserID:   change.UserID,
		IsOnline: change.Online,
		At:       change.At.UnixMilli(),
	})
}

// SubjectToken turns a client-chosen id into a single NATS subject token.
// Ids made of letters, digits, '-' and '_' pass through; anything else is
// published as "~" followed by its unpadded base64url form.
func SubjectToken(id string) string {
	if id != "" && isPlainToken(id) {
		return id
	}
	return encodedTokenPrefix + base64.RawURLEncoding.EncodeToString([]byte(id))
}

func isPlainToken(id string) bool {
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Close drains the owned connection, if any.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("marshal export record")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("publish export record")
	}
}
