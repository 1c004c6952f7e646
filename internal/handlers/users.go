package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ayush-jadaun/livekitagent/internal/middleware"
)

type setupUserRequest struct {
	Name string `json:"name" binding:"required"`
	Age  *int   `json:"age" binding:"omitempty,gte=0,lte=150"`
}

func (h HandlerSet) SetupUser(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req setupUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_payload"})
		return
	}

	_, room, err := h.users.EnsureUser(c.Request.Context(), userID, req.Name, req.Age)
	if err != nil {
		h.respondError(c, err, "user setup failed")
		return
	}

	if err := h.users.CompleteSetup(c.Request.Context(), userID, req.Name, req.Age); err != nil {
		h.respondError(c, err, "user setup failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"room_id":   room.ID,
		"room_name": room.RoomName,
		"status":    "setup_complete",
	})
}

// SyncProfile refreshes the stored profile from the credential's
// embedded metadata, for clients whose signup data changed upstream.
func (h HandlerSet) SyncProfile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	name := claims.ProfileName()
	age := claims.ProfileAge()

	if _, _, err := h.users.EnsureUser(c.Request.Context(), userID, name, age); err != nil {
		h.respondError(c, err, "profile sync failed")
		return
	}
	if err := h.users.SyncProfile(c.Request.Context(), userID, name, age); err != nil {
		h.respondError(c, err, "profile sync failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"status":  "profile_synced",
	})
}

func (h HandlerSet) GetRoom(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, room, err := h.users.EnsureUser(c.Request.Context(), userID, "", nil)
	if err != nil {
		h.respondError(c, err, "room lookup failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":            room.ID,
		"room_name":          room.RoomName,
		"room_condition":     string(room.Condition),
		"trial_seconds_used": user.TrialSecondsUsed,
	})
}
