package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	store    store.UserStore
	registry *core.Registry
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance. The registry, when
// set, is the authority for isOnline; the stored flag may lag behind it.
func NewUserHandlers(st store.UserStore, registry *core.Registry, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store:    st,
		registry: registry,
		log:      logger,
	}
}

// ListUsers returns every user except the caller.
// GET /api/auth/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == uid {
			continue
		}
		resp := userResponse(u)
		resp.Email = ""
		if h.registry != nil {
			resp.IsOnline = h.registry.Presence(u.ID).Online()
		}
		response = append(response, resp)
	}

	c.JSON(http.StatusOK, response)
}
