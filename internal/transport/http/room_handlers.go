package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// RoomHandlers serves the stored history of conversations.
type RoomHandlers struct {
	store store.MessageStore
	limit int
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
// limit caps the number of messages returned; <= 0 returns all of them.
func NewRoomHandlers(st store.MessageStore, limit int, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		limit: limit,
		log:   logger,
	}
}

// History returns the messages of a room the caller takes part in, oldest first.
// GET /api/messages/:room
func (h *RoomHandlers) History(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room := c.Param("room")
	if !core.IsParticipant(room, uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant of this room"})
		return
	}

	messages, err := h.store.ListMessagesByRoom(c.Request.Context(), room, h.limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "error fetching messages"})
		return
	}

	response := make([]proto.MessagePayload, 0, len(messages))
	for _, m := range messages {
		response = append(response, messagePayload(core.MessageFromStore(m)))
	}

	c.JSON(http.StatusOK, response)
}
