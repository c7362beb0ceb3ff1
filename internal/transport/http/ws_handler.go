package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

var errSlowConsumer = errors.New("slow consumer")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  config.WSConfig
	jwt  bool
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:  hub,
		auth: authService,
		cfg:  cfg.WS,
		jwt:  cfg.JWT.Required,
		log:  logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins}
	if len(h.cfg.AllowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), h.cfg.MailboxSize)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.pingLoop(ctx, conn)
	}()

	err = <-errCh
	cancel()
	<-errCh
	<-errCh

	status, reason := closeStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
	}
	_ = conn.Close(status, reason)
}

func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errSlowConsumer):
		return websocket.StatusPolicyViolation, "slow consumer"
	}
	if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
		return s, "closing"
	}
	return websocket.StatusInternalError, "internal error"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			if writeErr := writeError(ctx, conn, errMalformed); writeErr != nil {
				return writeErr
			}
			continue
		}

		if !allowFrame(limiter) {
			if err := writeError(ctx, conn, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound, h.identify)
		if protoErr != nil {
			if err := writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}
		if err := client.Submit(ctx, cmd); err != nil {
			return err
		}
	}
}

// identify checks the protocol version and, when tokens are required or
// supplied, binds the connection to the token's subject.
func (h *WSHandler) identify(data proto.UserOnlineData) (string, *proto.Error) {
	if data.Protocol != 0 && data.Protocol != proto.ProtocolVersion {
		return "", &proto.Error{
			Code: core.ErrCodeUnsupportedVersion,
			Msg:  fmt.Sprintf("protocol %d is not supported, server speaks %d", data.Protocol, proto.ProtocolVersion),
		}
	}

	if data.Token == "" && !h.jwt {
		if data.UserID == "" {
			return "", &proto.Error{Code: core.ErrCodeBadRequest, Msg: "userId is required"}
		}
		return data.UserID, nil
	}

	if data.Token == "" || h.auth == nil {
		return "", &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token is required"}
	}
	claims, err := h.auth.ValidateToken(data.Token)
	if err != nil {
		h.log.Debug().Err(err).Msg("rejecting user_online token")
		return "", &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"}
	}
	if data.UserID != "" && data.UserID != claims.UserID() {
		return "", &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "userId does not match token"}
	}
	return claims.UserID(), nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return fmt.Errorf("write %s event: %w", event.Kind, err)
			}
		case <-client.Slow():
			h.log.Warn().Str("conn_id", client.ID).Msg("dropping slow consumer")
			return errSlowConsumer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pingLoop returns once a ping is not answered within the timeout, which
// tears the connection down the same way a clean close does.
func (h *WSHandler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	if h.cfg.PingInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr})
}
