package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-chat/internal/service"
)

// RouterConfig reune lo que el router necesita ademas de los handlers.
type RouterConfig struct {
	JWT       *service.JWTService
	MediaURL  string
	MediaRoot string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, cfg RouterConfig, h Handlers) *gin.Engine {
	r := gin.New()

	// Logging y recovery globales; JSON solo en la API.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	auth := JWTAuthMiddleware(cfg.JWT)
	jsonCT := jsonContentTypeMiddleware()

	if h.Health != nil {
		r.GET("/health", jsonCT, h.Health.Health)
		r.GET("/stats", jsonCT, h.Health.Stats)
	}

	if h.Users != nil {
		users := r.Group("/users", jsonCT)
		users.POST("/register/", h.Users.Register)
		users.POST("/token/", h.Users.Login)
		users.POST("/token/refresh/", h.Users.RefreshToken)
		users.POST("/logout/", h.Users.Logout)
		users.POST("/verify-otp/", auth, h.Users.VerifyOTP)
		users.POST("/resend-otp/", auth, h.Users.ResendOTP)
	}

	secured := r.Group("/users", jsonCT, auth)
	if h.Profiles != nil {
		secured.GET("/profile/", h.Profiles.GetOwn)
		secured.PUT("/profile/", h.Profiles.Update)
		secured.GET("/profile/:user_id/", h.Profiles.GetByUser)
	}
	if h.Relationships != nil {
		secured.POST("/friend-request/:to_user_id/", h.Relationships.SendFriendRequest)
		secured.POST("/friend-request-action/:request_id/", h.Relationships.FriendRequestAction)
		secured.POST("/follow/:to_user_id/", h.Relationships.Follow)
		secured.DELETE("/follow/:to_user_id/", h.Relationships.Unfollow)
		secured.POST("/block/:to_user_id/", h.Relationships.Block)
		secured.DELETE("/block/:to_user_id/", h.Relationships.Unblock)
	}
	if h.Reports != nil {
		secured.POST("/report/:to_user_id/", h.Reports.Report)
	}

	if h.Rooms != nil {
		chat := r.Group("/chat", jsonCT, auth)
		chat.GET("/rooms/", h.Rooms.List)
		chat.POST("/rooms/", h.Rooms.Create)
		chat.GET("/rooms/:room_id/", h.Rooms.Get)
		chat.GET("/rooms/:room_id/messages/", h.Rooms.Messages)
		chat.POST("/rooms/:room_id/upload/", h.Rooms.Upload)
	}

	if h.WS != nil {
		r.GET("/ws/chat/:room_id/", JWTAuthMiddlewareWS(cfg.JWT), h.WS.Chat)
	}

	if cfg.MediaURL != "" && cfg.MediaRoot != "" {
		r.Static(cfg.MediaURL, cfg.MediaRoot)
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
