package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/services"
)

func GetWallet(w *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}

		wallet, err := w.GetWallet(c.Request.Context(), actor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(wallet, ""))
	}
}

func ListWalletTransactions(w *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		offset, limit := paging(c)

		txs, total, err := w.ListTransactions(c.Request.Context(), actor, offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(txs, offset, limit, int64(total)))
	}
}

func Deposit(w *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		var req struct {
			Amount    decimal.Decimal `json:"amount"`
			Reference string          `json:"reference"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid deposit payload")
			return
		}

		res, err := w.Deposit(c.Request.Context(), actor, req.Amount, req.Reference)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(res, "wallet funded"))
	}
}

func PaymentOptions(w *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		opts, err := w.PaymentOptions(c.Request.Context(), actor, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(opts, ""))
	}
}

func PayFromWallet(w *services.WalletService) gin.HandlerFunc {
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

		receipt, err := w.PayFromWallet(c.Request.Context(), actor, req.BookingID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(receipt, "payment held in escrow"))
	}
}

// ExportWalletTransactions streams the full history as CSV. Once the first
// row is written the status is committed, so late errors only get logged.
func ExportWalletTransactions(w *services.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		if !actor.IsClient() {
			c.JSON(http.StatusForbidden, helpers.ErrorResponse("only clients have a wallet"))
			return
		}

		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=wallet-%s.csv", uuid.NewString()[:8]))
		if err := w.ExportTransactions(c.Request.Context(), actor, c.Writer); err != nil {
			if !c.Writer.Written() {
				respondError(c, err)
				return
			}
			_ = c.Error(err)
		}
	}
}
