package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"social-chat/internal/realtime"
	"social-chat/internal/service"
)

// WSHandler abre sesiones de chat sobre WebSocket.
type WSHandler struct {
	logger   *zap.Logger
	rooms    service.MembershipChecker
	registry *realtime.Registry
	inbound  realtime.InboundHandler
	opts     realtime.SessionOptions
	upgrader websocket.Upgrader
}

// NewWSHandler arma el upgrader segun allowedOrigins: vacio usa la regla
// de mismo origen de gorilla y "*" acepta cualquier origen.
func NewWSHandler(logger *zap.Logger, rooms service.MembershipChecker, registry *realtime.Registry, inbound realtime.InboundHandler, opts realtime.SessionOptions, allowedOrigins []string) *WSHandler {
	h := &WSHandler{
		logger:   logger,
		rooms:    rooms,
		registry: registry,
		inbound:  inbound,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	switch {
	case lo.Contains(allowedOrigins, "*"):
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	case len(allowedOrigins) > 0:
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return lo.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}
	return h
}

// Chat maneja GET /ws/chat/:room_id/.
func (h *WSHandler) Chat(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	roomID, ok := idParam(c, "room_id")
	if !ok {
		return
	}

	member, err := h.rooms.IsMember(c.Request.Context(), claims.UserID, roomID)
	if err != nil {
		h.logger.Error("ws membership check failed", zap.Int64("room_id", roomID), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}
	if !member {
		errorJSON(c, http.StatusNotFound, roomNotFoundMsg)
		return
	}

	session := realtime.NewSession(
		uuid.NewString(),
		roomID,
		realtime.Identity{UserID: claims.UserID, Username: claims.Username},
		h.registry,
		h.inbound,
		h.logger,
		h.opts,
	)
	if err := session.Open(); err != nil {
		if !errors.Is(err, realtime.ErrRegistryClosed) {
			h.logger.Error("ws session open failed", zap.Error(err))
		}
		errorJSON(c, http.StatusServiceUnavailable, "chat unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade ya escribio la respuesta de error.
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		session.Close()
		return
	}
	session.Serve(c.Request.Context(), conn)
}
