package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/services"
	"github.com/joshua-takyi/gigbay/internal/tracking"
)

const streamHeartbeat = 25 * time.Second

func StartTracking(t *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}

		booking, err := t.Start(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(booking, "tracking started"))
	}
}

func StopTracking(t *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}

		booking, err := t.Stop(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(booking, "tracking stopped"))
	}
}

func UpdateLocation(t *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}
		var in services.LocationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid location payload")
			return
		}

		res, err := t.UpdateLocation(c.Request.Context(), actor, id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(res, ""))
	}
}

func ReportDeviceStatus(t *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}
		var status tracking.DeviceStatus
		if err := c.ShouldBindJSON(&status); err != nil {
			badRequest(c, "invalid status payload")
			return
		}

		alerts, err := t.ReportStatus(c.Request.Context(), actor, id, status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"alerts": alerts}, ""))
	}
}

// TrackingStream pushes the counterpart's updates as server-sent events
// until the client goes away.
func TrackingStream(t *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}

		sub, err := t.Subscribe(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		defer sub.Close()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case u, open := <-sub.Updates():
				if !open {
					return false
				}
				c.SSEvent(string(u.Kind), u)
				return true
			case <-heartbeat.C:
				c.SSEvent("ping", gin.H{"dropped": sub.Dropped()})
				return true
			}
		})
	}
}
