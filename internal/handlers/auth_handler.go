package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/middleware"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/services"
)

func CreateUser(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := c.ShouldBindJSON(&user); err != nil {
			badRequest(c, err.Error())
			return
		}

		created, err := u.CreateUser(c.Request.Context(), &user)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(created, "account created"))
	}
}

// AuthenticateUser signs in with email and password. Tokens only travel in
// httpOnly cookies.
func AuthenticateUser(u *services.UserService, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}

		res, err := u.AuthenticateUser(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if statusFor(err) == http.StatusBadRequest {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("invalid email or password"))
			return
		}
		if res.AccessToken == "" {
			c.JSON(http.StatusInternalServerError, helpers.ErrorResponse("invalid token response"))
			return
		}

		middleware.SetAuthCookies(c, res, secureCookies)
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"user": res.User}, "signed in"))
	}
}

func RefreshSession(u *services.UserService, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		refreshToken, err := c.Cookie(middleware.RefreshTokenCookie)
		if err != nil || refreshToken == "" {
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("refresh token not found"))
			return
		}

		res, err := u.RefreshToken(c.Request.Context(), refreshToken)
		if err != nil || res.AccessToken == "" {
			middleware.ClearAuthCookies(c, secureCookies)
			c.JSON(http.StatusUnauthorized, helpers.ErrorResponse("session expired"))
			return
		}

		middleware.SetAuthCookies(c, res, secureCookies)
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"expires_in": res.ExpiresIn}, "session refreshed"))
	}
}

func Logout(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.ClearAuthCookies(c, secureCookies)
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "logged out successfully"))
	}
}
