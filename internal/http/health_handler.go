package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"social-chat/internal/realtime"
)

const healthPingTimeout = 2 * time.Second

type HealthHandler struct {
	registry *realtime.Registry
	ping     func(ctx context.Context) error
}

// NewHealthHandler recibe un ping opcional a la base de datos.
func NewHealthHandler(registry *realtime.Registry, ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{registry: registry, ping: ping}
}

// Health maneja GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats maneja GET /stats.
func (h *HealthHandler) Stats(c *gin.Context) {
	rooms, sessions := h.registry.Stats()
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "sessions": sessions})
}
