package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/metrics"
)

// Options configures a Hub and its components.
type Options struct {
	Directory Directory
	Messages  MessageStore
	Publisher Publisher
	Metrics   *metrics.Metrics
	Presence  PresenceConfig
	Pipeline  PipelineConfig
	Logger    *zerolog.Logger
}

// Hub drives the lifecycle of every connection: it registers sessions,
// processes each client's mailbox in order and tears the session down on
// disconnect. Clients are processed concurrently; nothing holds a global lock
// across a store or directory call.
type Hub struct {
	registry *Registry
	presence *Presence
	router   *Router
	pipeline *Pipeline
	metrics  *metrics.Metrics
	log      *zerolog.Logger
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	registry := NewRegistry()
	router := NewRouter()
	router.metrics = opts.Metrics

	presence := NewPresence(registry, opts.Directory, opts.Presence, logger)
	presence.publisher = opts.Publisher
	presence.metrics = opts.Metrics

	pipeline := NewPipeline(opts.Messages, router, opts.Pipeline, logger)
	pipeline.publisher = opts.Publisher
	pipeline.metrics = opts.Metrics

	return &Hub{
		registry: registry,
		presence: presence,
		router:   router,
		pipeline: pipeline,
		metrics:  opts.Metrics,
		log:      logger,
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Router exposes the room router.
func (h *Hub) Router() *Router { return h.router }

// Presence exposes the presence aggregator.
func (h *Hub) Presence() *Presence { return h.presence }

// Run blocks until ctx is done, then closes every client and waits for their
// teardown and for outstanding presence writes.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	var clients []*Client
	h.registry.Each(func(s *Session) {
		clients = append(clients, s.Client)
	})
	for _, c := range clients {
		h.UnregisterClient(c)
	}
	h.presence.Wait()
	h.log.Info().Int("clients", len(clients)).Msg("hub stopped")
}

// RegisterClient adds a connection in the unidentified state and starts
// processing its mailbox.
func (h *Hub) RegisterClient(c *Client) {
	h.registry.Register(c)
	h.metrics.ConnectionOpened()
	h.log.Debug().Str("conn_id", c.ID).Msg("client registered")
	go h.serve(c)
}

// UnregisterClient closes the client and waits until its session is torn down.
// A dead connection detected by heartbeat takes the same path as a clean close.
func (h *Hub) UnregisterClient(c *Client) {
	c.Close()
	<-c.finished
}

func (h *Hub) serve(c *Client) {
	defer close(c.finished)
	for {
		select {
		case cmd := <-c.Commands:
			h.handle(c, cmd)
		case <-c.done:
			// Commands accepted before the close still run.
			for {
				select {
				case cmd := <-c.Commands:
					h.handle(c, cmd)
				default:
					h.teardown(c)
					return
				}
			}
		}
	}
}

func (h *Hub) teardown(c *Client) {
	h.router.LeaveAll(c)
	userID, identified := h.registry.Deregister(c.ID)
	h.metrics.ConnectionClosed()
	if identified {
		h.presence.Disconnected(userID)
	}
	h.log.Debug().Str("conn_id", c.ID).Str("user_id", userID).Msg("client unregistered")
}

func (h *Hub) handle(c *Client, cmd *Command) {
	if cmd == nil {
		return
	}
	if cmd.Kind == CommandIdentify {
		h.identify(c, cmd)
		return
	}

	session, ok := h.registry.Session(c.ID)
	if !ok || !session.Identified() {
		h.log.Debug().Str("conn_id", c.ID).Stringer("command", cmd.Kind).Msg("ignoring command before identify")
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		h.join(c, session.UserID, cmd)
	case CommandLeaveRoom:
		h.leave(c, cmd)
	case CommandSendMessage:
		h.send(c, session.UserID, cmd)
	case CommandTyping, CommandStopTyping:
		h.typing(c, session.UserID, cmd)
	default:
		c.deliver(errorEvent(ErrCodeInvalidMessage, "unknown command"))
	}
}

func (h *Hub) identify(c *Client, cmd *Command) {
	first, err := h.registry.Identify(c.ID, cmd.UserID)
	switch {
	case errors.Is(err, ErrIdentityConflict):
		h.log.Warn().Str("conn_id", c.ID).Str("user_id", cmd.UserID).Msg("identity conflict")
		c.deliver(errorEvent(ErrCodeIdentityConflict, "connection is bound to another user"))
		return
	case errors.Is(err, ErrBadRequest):
		c.deliver(errorEvent(ErrCodeBadRequest, "userId is required"))
		return
	case err != nil:
		h.log.Warn().Err(err).Str("conn_id", c.ID).Msg("identify failed")
		return
	}
	if first {
		h.presence.Connected(cmd.UserID)
	}
}

func (h *Hub) join(c *Client, userID string, cmd *Command) {
	if cmd.Room == "" {
		c.deliver(errorEvent(ErrCodeBadRequest, "roomKey is required"))
		return
	}
	if !IsParticipant(cmd.Room, userID) {
		h.log.Warn().Str("conn_id", c.ID).Str("user_id", userID).Str("room", cmd.Room).Msg("join rejected: not a participant")
		c.deliver(errorEvent(ErrCodeUnauthorized, "not a participant of this room"))
		return
	}
	h.router.Join(c, cmd.Room)
	c.deliver(&Event{Kind: EventJoinedRoom, Room: cmd.Room})
}

func (h *Hub) leave(c *Client, cmd *Command) {
	if cmd.Room == "" {
		c.deliver(errorEvent(ErrCodeBadRequest, "roomKey is required"))
		return
	}
	h.router.Leave(c, cmd.Room)
	c.deliver(&Event{Kind: EventLeftRoom, Room: cmd.Room})
}

func (h *Hub) send(c *Client, userID string, cmd *Command) {
	if cmd.UserID != "" && cmd.UserID != userID {
		h.log.Warn().Str("conn_id", c.ID).Str("user_id", userID).Str("sender_id", cmd.UserID).Msg("sender does not match session")
		c.deliver(errorEvent(ErrCodeIdentityConflict, "senderId does not match the connection"))
		return
	}
	if cmd.Room != "" && !IsParticipant(cmd.Room, userID) {
		h.log.Warn().Str("conn_id", c.ID).Str("user_id", userID).Str("room", cmd.Room).Msg("send rejected: not a participant")
		c.deliver(errorEvent(ErrCodeUnauthorized, "not a participant of this room"))
		return
	}

	_, err := h.pipeline.Submit(context.Background(), cmd.Room, cmd.UserID, cmd.Content)
	if errors.Is(err, ErrPersistence) {
		c.deliver(&Event{
			Kind: EventMessageFailed,
			Room: cmd.Room,
			Failed: &FailedMessage{
				Room:    cmd.Room,
				Content: cmd.Content,
				Code:    ErrCodePersistFailed,
			},
		})
	}
}

func (h *Hub) typing(c *Client, userID string, cmd *Command) {
	if cmd.Room == "" || !IsParticipant(cmd.Room, userID) {
		return
	}
	kind := EventTyping
	if cmd.Kind == CommandStopTyping {
		kind = EventStopTyping
	}
	h.router.Relay(cmd.Room, c.ID, &Event{
		Kind: kind,
		Room: cmd.Room,
		Typing: &TypingSignal{
			Room:     cmd.Room,
			UserID:   userID,
			Username: cmd.Username,
		},
	})
}
