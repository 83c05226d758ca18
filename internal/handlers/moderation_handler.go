package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/services"
)

func ListReports(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		offset, limit := paging(c)

		reports, total, err := m.ListReports(c.Request.Context(), actor, models.ReportStatus(c.Query("status")), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(reports, offset, limit, int64(total)))
	}
}

func GetReport(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		report, err := m.GetReport(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(report, ""))
	}
}

func ExportReports(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		if !actor.IsStaff() {
			c.JSON(http.StatusForbidden, helpers.ErrorResponse("admin or support access required"))
			return
		}

		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=reports.csv")
		if err := m.ExportReports(c.Request.Context(), actor, models.ReportStatus(c.Query("status")), c.Writer); err != nil {
			if !c.Writer.Written() {
				respondError(c, err)
				return
			}
			_ = c.Error(err)
		}
	}
}

func DismissReport(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var body reasonBody
		_ = c.ShouldBindJSON(&body)

		report, err := m.DismissReport(c.Request.Context(), actor, id, body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(report, "report dismissed"))
	}
}

// ActionReport resolves the report and suspends the reported user.
func ActionReport(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var body reasonBody
		_ = c.ShouldBindJSON(&body)

		report, err := m.ActionReport(c.Request.Context(), actor, id, body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(report, "report actioned"))
	}
}

func SuspendUser(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var body reasonBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "reason is required")
			return
		}

		if err := m.SuspendUser(c.Request.Context(), actor, id, body.Reason); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"user_id": id, "is_suspended": true}, "user suspended"))
	}
}

func UnsuspendUser(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var body reasonBody
		_ = c.ShouldBindJSON(&body)

		if err := m.UnsuspendUser(c.Request.Context(), actor, id, body.Reason); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"user_id": id, "is_suspended": false}, "user unsuspended"))
	}
}

func ListModerationEvents(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		offset, limit := paging(c)

		evts, total, err := m.ListEvents(c.Request.Context(), actor, models.EventStatus(c.Query("status")), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(evts, offset, limit, int64(total)))
	}
}

func FlagEvent(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var body reasonBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "reason is required")
			return
		}

		event, err := m.FlagEvent(c.Request.Context(), actor, id, body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(event, "event flagged"))
	}
}

func DeleteEvent(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var body reasonBody
		_ = c.ShouldBindJSON(&body)

		if err := m.DeleteEvent(c.Request.Context(), actor, id, body.Reason); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "event deleted"))
	}
}

func ListTicketPurchases(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		offset, limit := paging(c)

		purchases, total, err := m.ListTicketPurchases(c.Request.Context(), actor, models.TicketStatus(c.Query("status")), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(purchases, offset, limit, int64(total)))
	}
}

func RefundTicket(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var body reasonBody
		_ = c.ShouldBindJSON(&body)

		purchase, err := m.RefundTicket(c.Request.Context(), actor, id, body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(purchase, "ticket refunded"))
	}
}

func ListAdminActions(m *services.ModerationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		offset, limit := paging(c)

		actions, total, err := m.ListAdminActions(c.Request.Context(), actor, offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(actions, offset, limit, int64(total)))
	}
}
