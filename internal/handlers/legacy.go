package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Legacy endpoints predate the /api surface and are kept for old
// clients: a query-parameter token mint and unauthenticated status
// probes.

func (h HandlerSet) LegacyGetToken(c *gin.Context) {
	room := c.DefaultQuery("room", "my-room")
	identity := c.DefaultQuery("identity", "user")
	name := c.DefaultQuery("name", "Anonymous")

	token, err := h.tokens.Mint(identity, name, room)
	if err != nil {
		h.respondError(c, err, "legacy token mint failed")
		return
	}

	c.String(http.StatusOK, token)
}

func (h HandlerSet) LegacyConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"livekit_url":   h.tokens.URL(),
		"server_status": "running",
	})
}

func (h HandlerSet) LegacyHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "livekit-backend-service",
	})
}

func (h HandlerSet) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
