package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ayush-jadaun/livekitagent/internal/middleware"
)

func (h HandlerSet) StartSession(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profileName := ""
	if claims, ok := middleware.CurrentClaims(c); ok {
		profileName = claims.ProfileName()
	}

	result, err := h.sessions.Start(c.Request.Context(), userID, profileName)
	if err != nil {
		h.respondError(c, err, "session start failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":  result.SessionID,
		"room_name":   result.RoomName,
		"room_id":     result.RoomID,
		"token":       result.Token,
		"livekit_url": result.LiveKitURL,
		"mode":        string(result.Mode),
	})
}

func (h HandlerSet) EndSession(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "missing_session_id"})
		return
	}

	if err := h.sessions.End(c.Request.Context(), sessionID, userID); err != nil {
		h.respondError(c, err, "session end failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "session_ended",
		"session_id": sessionID,
	})
}

type activeSessionResponse struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	RoomName      string    `json:"room_name"`
	RoomCondition string    `json:"room_condition"`
}

func (h HandlerSet) ActiveSessions(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessions, err := h.sessions.Active(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "active sessions lookup failed")
		return
	}

	resp := make([]activeSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, activeSessionResponse{
			ID:            s.ID,
			StartedAt:     s.StartedAt,
			RoomName:      s.RoomName,
			RoomCondition: string(s.RoomCondition),
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}
