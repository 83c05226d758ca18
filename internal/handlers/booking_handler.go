package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/services"
)

type bookingRef struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

func ListBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		offset, limit := paging(c)

		bookings, total, err := b.ListBookings(c.Request.Context(), actor, models.BookingStatus(c.Query("status")), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(bookings, offset, limit, int64(total)))
	}
}

func GetBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		detail, err := b.GetBooking(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(detail, ""))
	}
}

func AcceptBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		booking, err := b.AcceptBooking(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(booking, "booking confirmed"))
	}
}

func DeclineBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		booking, err := b.DeclineBooking(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(booking, "booking declined"))
	}
}

// MarkComplete answers {success:false, error} on any failure; the client
// shows the error as is and does not retry.
func MarkComplete(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req bookingRef
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "booking_id is required")
			return
		}

		booking, err := b.MarkComplete(c.Request.Context(), actor, req.BookingID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(booking, "booking marked complete"))
	}
}

func ReleaseFunds(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		escrow, err := b.ReleaseFunds(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(escrow, "funds released"))
	}
}
