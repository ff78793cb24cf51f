package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handlers agrupa los handlers que monta NewRouter.
type Handlers struct {
	Users         *UserHandler
	Profiles      *ProfileHandler
	Relationships *RelationshipHandler
	Reports       *ReportHandler
	Rooms         *RoomHandler
	WS            *WSHandler
	Health        *HealthHandler
}

// idParam lee un id numerico de la ruta. Un id invalido responde 404, igual
// que una ruta inexistente.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func messageJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}
