package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type livekitWebhookPayload struct {
	Event string `json:"event"`
	Room  struct {
		Name string `json:"name"`
	} `json:"room"`
}

// LiveKitWebhook reacts to media-server room lifecycle events. Stopping
// an agent is idempotent, so duplicate deliveries are harmless.
func (h HandlerSet) LiveKitWebhook(c *gin.Context) {
	var payload livekitWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	h.log.Info().
		Str("event", payload.Event).
		Str("room", payload.Room.Name).
		Msg("livekit webhook received")

	if payload.Event == "room_finished" && payload.Room.Name != "" {
		h.sessions.StopAgentForRoom(payload.Room.Name)
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
