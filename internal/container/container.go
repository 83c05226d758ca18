package container

import (
	"database/sql"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/joshua-takyi/gigbay/internal/cache"
	"github.com/joshua-takyi/gigbay/internal/config"
	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/models"
	"github.com/joshua-takyi/gigbay/internal/mq"
	"github.com/joshua-takyi/gigbay/internal/services"
	"github.com/joshua-takyi/gigbay/internal/tracking"
)

// Clients are the connections main opens before building the container.
type Clients struct {
	Supabase   *supabase.Client
	Postgres   *sql.DB
	Mongo      *mongo.Client
	Redis      *redis.Client
	Cloudinary *cloudinary.Cloudinary
	// Publisher is the broker publisher. When nil, events are handed to the
	// notification service in-process.
	Publisher mq.EventPublisher
}

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *helpers.TokenValidator
	Clients   Clients

	Mongo    *models.MongodbRepo
	Postgres *models.PostgresRepo
	Hub      *tracking.Hub

	UserService         *services.UserService
	BookingService      *services.BookingService
	WalletService       *services.WalletService
	ModerationService   *services.ModerationService
	TrackingService     *services.TrackingService
	NotificationService *services.NotificationService
	FeedService         *services.FeedService
	EventService        *services.EventService
	JobService          *services.JobService
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, logger *slog.Logger, validator *helpers.TokenValidator, clients Clients) *Container {
	// Initialize repositories
	supa := models.SupabaseNewRepo(clients.Supabase, cfg.SupabaseURL, cfg.SupabaseAnonKey)
	mdb := models.MongodbNewRepo(clients.Mongo, cfg.MongoDBName)
	pg := models.PostgresNewRepo(clients.Postgres)

	store := cache.New(clients.Redis)
	uploader := helpers.NewCloudinaryUploader(clients.Cloudinary)
	hub := tracking.NewHub(cfg.TrackingStreamBuffer)

	notificationService := services.NewNotificationService(supa, mdb, logger)

	pub := clients.Publisher
	if pub == nil {
		pub = mq.NewLocalPublisher(notificationService.Handle, logger)
	}

	bookingService := services.NewBookingService(supa, pg, supa, store, pub, logger)
	trackingService := services.NewTrackingService(supa, supa, hub, pub, logger)
	bookingService.OnComplete(trackingService.Forget)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Validator: validator,
		Clients:   clients,
		Mongo:     mdb,
		Postgres:  pg,
		Hub:       hub,

		UserService:         services.NewUserService(supa, uploader, logger),
		BookingService:      bookingService,
		WalletService:       services.NewWalletService(supa, pg, supa, store, pub, logger),
		ModerationService:   services.NewModerationService(supa, pg, store, pub, logger),
		TrackingService:     trackingService,
		NotificationService: notificationService,
		FeedService:         services.NewFeedService(mdb, uploader, logger),
		EventService:        services.NewEventService(supa, logger),
		JobService:          services.NewJobService(supa, pub, logger),
	}
}
