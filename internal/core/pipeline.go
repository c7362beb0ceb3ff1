package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/metrics"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// MessageStore records messages and returns their canonical form.
type MessageStore interface {
	StoreMessage(ctx context.Context, room, senderID, content string, at time.Time) (*store.Message, error)
}

// PipelineConfig bounds message persistence.
type PipelineConfig struct {
	StoreTimeout    time.Duration
	MaxContentBytes int
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// Pipeline validates, persists and then delivers messages. Stamping, persist
// and broadcast of one room happen under that room's lock, so subscribers see
// messages in the order the store accepted them and that order matches the
// timestamps history is sorted by.
type Pipeline struct {
	store     MessageStore
	router    *Router
	locks     *keyedMutex
	stamps    *xsync.MapOf[string, time.Time]
	publisher Publisher
	metrics   *metrics.Metrics
	cfg       PipelineConfig
	log       *zerolog.Logger
	now       func() time.Time
}

// NewPipeline builds a pipeline publishing through router.
func NewPipeline(st MessageStore, router *Router, cfg PipelineConfig, logger *zerolog.Logger) *Pipeline {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pipeline{
		store:  st,
		router: router,
		locks:  newKeyedMutex(),
		stamps: xsync.NewMapOf[string, time.Time](),
		cfg:    cfg.withDefaults(),
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit stamps and records the message, then broadcasts the stored form to
// the room. Invalid input fails with ErrValidation before the store is touched;
// a store failure returns ErrPersistence and nothing is broadcast.
func (p *Pipeline) Submit(ctx context.Context, room, senderID, content string) (*Message, error) {
	if err := p.validate(room, senderID, content); err != nil {
		p.metrics.ValidationDropped()
		p.log.Warn().Err(err).Str("room", room).Str("sender_id", senderID).Msg("message dropped")
		return nil, err
	}

	unlock := p.locks.Lock(room)
	defer unlock()

	at := p.stamp(room)
	storeCtx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	stored, err := p.store.StoreMessage(storeCtx, room, senderID, content, at)
	if err != nil {
		p.metrics.PersistFailed()
		p.log.Error().Err(err).Str("room", room).Str("sender_id", senderID).Msg("store message")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	p.stamps.Store(room, at)
	msg := MessageFromStore(stored)
	p.metrics.MessagePersisted()
	delivered := p.router.Broadcast(room, &Event{Kind: EventMessageDelivered, Room: room, Message: msg})
	if p.publisher != nil {
		p.publisher.PublishMessage(msg)
	}

	p.log.Debug().Int64("message_id", msg.ID).Str("room", room).Int("recipients", delivered).Msg("message delivered")
	return msg, nil
}

// stamp returns the server timestamp of the next message in room. It is
// strictly later than the room's previous message even if the clock steps back.
// The caller holds the room lock.
func (p *Pipeline) stamp(room string) time.Time {
	at := p.now()
	if prev, ok := p.stamps.Load(room); ok && !at.After(prev) {
		at = prev.Add(time.Nanosecond)
	}
	return at
}

func (p *Pipeline) validate(room, senderID, content string) error {
	switch {
	case room == "":
		return fmt.Errorf("%w: room is required", ErrValidation)
	case senderID == "":
		return fmt.Errorf("%w: sender is required", ErrValidation)
	case strings.TrimSpace(content) == "":
		return fmt.Errorf("%w: content is required", ErrValidation)
	case p.cfg.MaxContentBytes > 0 && len(content) > p.cfg.MaxContentBytes:
		return fmt.Errorf("%w: content exceeds %d bytes", ErrValidation, p.cfg.MaxContentBytes)
	}
	return nil
}
