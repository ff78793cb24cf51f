package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"social-chat/internal/service"
)

const authClaimsKey = "auth_claims"

// JWTAuthMiddleware valida JWT access tokens del header Authorization y guarda
// claims en el contexto.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return jwtAuth(jwtSvc, false)
}

// JWTAuthMiddlewareWS acepta ademas el query param token. Solo para el handshake de /ws.
func JWTAuthMiddlewareWS(jwtSvc *service.JWTService) gin.HandlerFunc {
	return jwtAuth(jwtSvc, true)
}

func jwtAuth(jwtSvc *service.JWTService, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			return
		}

		token := bearerToken(c, allowQuery)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return ""
		}
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if !allowQuery {
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// mustClaims responde 401 si la ruta se monto sin el middleware.
func mustClaims(c *gin.Context) (service.Claims, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
	}
	return claims, ok
}
