package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshua-takyi/gigbay/internal/container"
	"github.com/joshua-takyi/gigbay/internal/handlers"
	"github.com/joshua-takyi/gigbay/internal/middleware"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(c *container.Container) *gin.Engine {
	if c.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	secure := c.Config.IsProduction()

	r := gin.New()
	r.Use(middleware.CORS(c.Config.AllowedOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(c.Logger))
	r.Use(middleware.ErrorHandler(c.Logger))
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"status":  "OK",
				"service": "gigbay-api",
			})
		})

		// public routes
		v1.POST("/signup", handlers.CreateUser(c.UserService))
		v1.POST("/login", handlers.AuthenticateUser(c.UserService, secure))
		v1.POST("/refresh", handlers.RefreshSession(c.UserService, secure))
		v1.POST("/logout", handlers.Logout(secure))

		v1.GET("/posts", handlers.ListPosts(c.FeedService))
		v1.GET("/posts/:id", handlers.GetPost(c.FeedService))
		v1.GET("/posts/:id/comments", handlers.ListComments(c.FeedService))
		v1.GET("/jobs", handlers.ListJobs(c.JobService))
		v1.GET("/jobs/:id", handlers.GetJob(c.JobService))
		v1.GET("/ticket-tiers", handlers.ListTicketTiers(c.EventService))
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(c.Validator, c.UserService, secure, c.Logger))

	protected.GET("/profile", handlers.Me())
	userRoutes := protected.Group("/users")
	{
		userRoutes.GET("/:id", handlers.GetUser(c.UserService))
		userRoutes.PATCH("/me", handlers.UpdateUser(c.UserService))
		userRoutes.POST("/me/avatar", handlers.UploadAvatar(c.UserService))
	}

	bookingRoutes := protected.Group("/bookings")
	{
		bookingRoutes.GET("", handlers.ListBookings(c.BookingService))
		bookingRoutes.GET("/:id", handlers.GetBooking(c.BookingService))
		bookingRoutes.POST("/:id/accept", handlers.AcceptBooking(c.BookingService))
		bookingRoutes.POST("/:id/decline", handlers.DeclineBooking(c.BookingService))
		bookingRoutes.POST("/:id/release-funds", handlers.ReleaseFunds(c.BookingService))
		bookingRoutes.GET("/:id/payment-options", handlers.PaymentOptions(c.WalletService))
	}

	// paths the web client already calls
	protected.POST("/booking/mark-complete", handlers.MarkComplete(c.BookingService))
	protected.POST("/booking/pay-from-wallet", handlers.PayFromWallet(c.WalletService))

	walletRoutes := protected.Group("/wallet")
	{
		walletRoutes.GET("", handlers.GetWallet(c.WalletService))
		walletRoutes.GET("/transactions", handlers.ListWalletTransactions(c.WalletService))
		walletRoutes.GET("/transactions/export", handlers.ExportWalletTransactions(c.WalletService))
		walletRoutes.POST("/deposit", handlers.Deposit(c.WalletService))
	}

	trackingRoutes := protected.Group("/tracking/:booking_id")
	{
		trackingRoutes.POST("/start", handlers.StartTracking(c.TrackingService))
		trackingRoutes.POST("/stop", handlers.StopTracking(c.TrackingService))
		trackingRoutes.POST("/location", handlers.UpdateLocation(c.TrackingService))
		trackingRoutes.POST("/status", handlers.ReportDeviceStatus(c.TrackingService))
		trackingRoutes.GET("/stream", handlers.TrackingStream(c.TrackingService))
	}

	notificationRoutes := protected.Group("/notifications")
	{
		notificationRoutes.GET("", handlers.ListNotifications(c.NotificationService))
		notificationRoutes.POST("/read", handlers.MarkNotificationsRead(c.NotificationService))
		notificationRoutes.GET("/preferences", handlers.GetPreferences(c.NotificationService))
		notificationRoutes.PATCH("/preferences", handlers.UpdatePreferences(c.NotificationService))
	}

	feedRoutes := protected.Group("/posts")
	{
		feedRoutes.POST("", handlers.CreatePost(c.FeedService))
		feedRoutes.POST("/media", handlers.UploadFeedMedia(c.FeedService))
		feedRoutes.PATCH("/:id", handlers.UpdatePost(c.FeedService))
		feedRoutes.DELETE("/:id", handlers.DeletePost(c.FeedService))
		feedRoutes.POST("/:id/like", handlers.LikePost(c.FeedService))
		feedRoutes.DELETE("/:id/like", handlers.UnlikePost(c.FeedService))
		feedRoutes.POST("/:id/comments", handlers.AddComment(c.FeedService))
	}
	protected.DELETE("/comments/:comment_id", handlers.DeleteComment(c.FeedService))

	protected.PATCH("/musician-events/:id", handlers.UpdateMusicianEvent(c.EventService))
	protected.POST("/ticket-tiers", handlers.CreateTicketTier(c.EventService))

	jobRoutes := protected.Group("/jobs")
	{
		jobRoutes.POST("", handlers.CreateJob(c.JobService))
		jobRoutes.POST("/:id/apply", handlers.ApplyToJob(c.JobService))
		jobRoutes.GET("/:id/applications", handlers.ListJobApplications(c.JobService))
	}
	protected.POST("/applications/:id/accept", handlers.AcceptApplication(c.JobService))
	protected.POST("/applications/:id/reject", handlers.RejectApplication(c.JobService))

	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(middleware.RequireStaff())
	{
		adminRoutes.GET("/reports", handlers.ListReports(c.ModerationService))
		adminRoutes.GET("/reports/export", handlers.ExportReports(c.ModerationService))
		adminRoutes.GET("/reports/:id", handlers.GetReport(c.ModerationService))
		adminRoutes.POST("/reports/:id/dismiss", handlers.DismissReport(c.ModerationService))
		adminRoutes.POST("/reports/:id/action", handlers.ActionReport(c.ModerationService))
		adminRoutes.POST("/users/:id/suspend", handlers.SuspendUser(c.ModerationService))
		adminRoutes.POST("/users/:id/unsuspend", handlers.UnsuspendUser(c.ModerationService))
		adminRoutes.GET("/events", handlers.ListModerationEvents(c.ModerationService))
		adminRoutes.POST("/events/:id/flag", handlers.FlagEvent(c.ModerationService))
		adminRoutes.DELETE("/events/:id", handlers.DeleteEvent(c.ModerationService))
		adminRoutes.GET("/tickets", handlers.ListTicketPurchases(c.ModerationService))
		adminRoutes.POST("/tickets/:id/refund", handlers.RefundTicket(c.ModerationService))
		adminRoutes.GET("/actions", handlers.ListAdminActions(c.ModerationService))
	}

	return r
}
