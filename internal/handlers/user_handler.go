package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/services"
)

const maxAvatarBytes = 5 << 20

func Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("unauthorized"))
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(claims, ""))
	}
}

// GetUser returns a profile. Users may read their own, staff may read any.
func GetUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("unauthorized"))
			return
		}
		if !claims.IsOwner(userID) && !claims.IsStaff() {
			c.JSON(http.StatusForbidden, helpers.ErrorResponse("access denied"))
			return
		}

		user, err := u.GetUser(c.Request.Context(), userID, claims.AccessToken)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(user, ""))
	}
}

func UpdateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("unauthorized"))
			return
		}

		var fields map[string]interface{}
		if err := c.ShouldBindJSON(&fields); err != nil {
			badRequest(c, err.Error())
			return
		}

		user, err := u.UpdateUser(c.Request.Context(), fields, claims.UserID, claims.AccessToken)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(user, "profile updated"))
	}
}

func UploadAvatar(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("unauthorized"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes)
		fh, err := c.FormFile("avatar")
		if err != nil {
			badRequest(c, "avatar file is required")
			return
		}
		file, err := fh.Open()
		if err != nil {
			badRequest(c, "could not read upload")
			return
		}
		defer file.Close()

		user, err := u.UploadAvatar(c.Request.Context(), claims.UserID, file, fh.Filename, claims.AccessToken)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(user, "avatar updated"))
	}
}
