package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	refreshCookieTTL   = 3600 * 24 * 30
)

// TokenValidator checks an access token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*helpers.CustomClaims, error)
}

// Profiles is what the auth middleware needs from the user service.
type Profiles interface {
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error)
	GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error)
}

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get("request_id")
		status := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "HTTP Request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// ErrorHandler turns errors a handler attached with c.Error into the
// standard envelope, unless the handler already wrote a response.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID, _ := c.Get("request_id")

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, helpers.ErrorResponse("internal server error"))
	}
}

func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "Cache-Control"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	token, _ := c.Cookie(AccessTokenCookie)
	return token
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, helpers.ErrorResponse(msg))
}

// AuthMiddleware accepts the access token from the Authorization header or
// the access_token cookie. An expired cookie session is refreshed once from
// the refresh_token cookie.
func AuthMiddleware(validator TokenValidator, profiles Profiles, secureCookies bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, "authentication required")
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			refreshToken, refreshErr := c.Cookie(RefreshTokenCookie)
			if refreshErr != nil || refreshToken == "" {
				unauthorized(c, "invalid or expired token")
				return
			}

			res, refreshErr := profiles.RefreshToken(c.Request.Context(), refreshToken)
			if refreshErr != nil || res.AccessToken == "" {
				logger.Warn("Token refresh failed", "error", refreshErr)
				unauthorized(c, "token expired and refresh failed")
				return
			}
			logger.Info("Token refreshed", "user_id", res.User.ID, "expires_in", res.ExpiresIn)
			SetAuthCookies(c, res, secureCookies)

			token = res.AccessToken
			claims, err = validator.Validate(token)
			if err != nil {
				unauthorized(c, "refreshed token validation failed")
				return
			}
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			unauthorized(c, "invalid subject in token")
			return
		}

		enhanced := &helpers.EnhancedClaims{
			CustomClaims: claims,
			UserID:       userID,
			Email:        claims.Email,
			AccessToken:  token,
		}

		user, err := profiles.GetUser(c.Request.Context(), userID, token)
		if err != nil {
			logger.Info("Profile not found, continuing as guest", "user_id", userID, "error", err)
		} else {
			enhanced.Role = user.Role
			enhanced.FirstName = user.FirstName
			enhanced.AvatarURL = user.AvatarURL
			enhanced.IsAdmin = user.IsAdmin || user.Role == models.RoleAdmin
			enhanced.IsSupport = user.IsSupport
			enhanced.Suspended = user.IsSuspended
			enhanced.KYCVerified = user.KYCVerified
		}

		c.Set("user", enhanced)
		c.Next()
	}
}

// RequireStaff must run after AuthMiddleware.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get("user")
		claims, _ := v.(*helpers.EnhancedClaims)
		if !ok || claims == nil || !claims.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, helpers.ErrorResponse("admin or support access required"))
			return
		}
		c.Next()
	}
}

func SetAuthCookies(c *gin.Context, res *types.TokenResponse, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, res.AccessToken, res.ExpiresIn, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, res.RefreshToken, refreshCookieTTL, "/", "", secure, true)
}

func ClearAuthCookies(c *gin.Context, secure bool) {
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", secure, true)
}
