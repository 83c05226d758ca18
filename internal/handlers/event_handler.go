package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/services"
)

func UpdateMusicianEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var upd models.MusicianEventUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			badRequest(c, err.Error())
			return
		}

		event, err := e.UpdateMusicianEvent(c.Request.Context(), actor, id, upd)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(event, "event updated"))
	}
}

func CreateTicketTier(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var tier models.TicketTier
		if err := c.ShouldBindJSON(&tier); err != nil {
			badRequest(c, err.Error())
			return
		}

		created, err := e.CreateTicketTier(c.Request.Context(), actor, &tier)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(created, "ticket tier created"))
	}
}

func ListTicketTiers(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Query("event_id"))
		if err != nil {
			badRequest(c, "event_id query parameter is required")
			return
		}

		tiers, err := e.ListTicketTiers(c.Request.Context(), eventID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(tiers, ""))
	}
}
