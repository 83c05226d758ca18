package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/services"
)

const maxPreferencesBytes = 16 << 10

func GetPreferences(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}

		prefs, err := n.GetPreferences(c.Request.Context(), actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(prefs, ""))
	}
}

// UpdatePreferences takes the raw body so unknown category or channel keys
// are rejected rather than ignored.
func UpdatePreferences(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPreferencesBytes))
		if err != nil || len(raw) == 0 {
			badRequest(c, "request body is required")
			return
		}

		prefs, err := n.UpdatePreferences(c.Request.Context(), actor, raw)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(prefs, "preferences updated"))
	}
}

func ListNotifications(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		offset, limit := paging(c)
		unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

		items, total, err := n.ListInbox(c.Request.Context(), actor, unreadOnly, offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(items, offset, limit, total))
	}
}

func MarkNotificationsRead(n *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			IDs []string `json:"ids" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "ids are required")
			return
		}

		updated, err := n.MarkRead(c.Request.Context(), actor, req.IDs)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"updated": updated}, ""))
	}
}
