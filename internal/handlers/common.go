package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/services"
)

func claimsFrom(c *gin.Context) (*helpers.EnhancedClaims, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*helpers.EnhancedClaims)
	return claims, ok && claims != nil
}

// currentActor reads the claims set by AuthMiddleware. It writes the 401
// itself, so handlers only need to return when ok is false.
func currentActor(c *gin.Context) (services.Actor, bool) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("unauthorized"))
		return services.Actor{}, false
	}
	return services.Actor{
		ID:          claims.UserID,
		Role:        claims.Role,
		IsAdmin:     claims.IsAdmin,
		IsSupport:   claims.IsSupport,
		Suspended:   claims.Suspended,
		KYCVerified: claims.KYCVerified,
	}, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps domain errors onto the envelope. Unknown errors are
// attached to the context for ErrorHandler to log and are not echoed back.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, helpers.ErrorResponse("internal server error"))
		return
	}
	c.JSON(status, helpers.ErrorResponse(err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, helpers.ErrorResponse(msg))
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

func paging(c *gin.Context) (int, int) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return offset, limit
}

// reasonBody is the payload of every moderation action.
type reasonBody struct {
	Reason string `json:"reason"`
}
