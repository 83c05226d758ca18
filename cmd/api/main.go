package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/joshua-takyi/gigbay/internal/config"
	"github.com/joshua-takyi/gigbay/internal/connect"
	"github.com/joshua-takyi/gigbay/internal/container"
	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/helpers"
	"github.com/joshua-takyi/gigbay/internal/mq"
	"github.com/joshua-takyi/gigbay/internal/obs"
	"github.com/joshua-takyi/gigbay/internal/routes"
)

const serviceName = "gigbay-api"

func main() {
	envFile := flag.String("env-file", ".env.local", "dotenv file to load before reading the environment")
	worker := flag.Bool("worker", false, "also consume broker events and write in-app notifications")
	flag.Parse()

	// Load environment variables
	_ = godotenv.Load(*envFile)

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("Starting gigbay API server", "environment", cfg.Environment, "worker", *worker)

	if err := run(cfg, logger, *worker); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *slog.Logger, worker bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	// Initialize database connections
	supaClient, err := connect.InitSupabase(cfg)
	if err != nil {
		return err
	}
	logger.Info("Connected to Supabase successfully")

	db, err := connect.InitPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to Postgres successfully")

	mongoClient, err := connect.MongoDBConnect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := connect.MongoDBDisconnect(mongoClient); err != nil {
			logger.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()
	logger.Info("Connected to MongoDB successfully")

	rdb, err := connect.RedisConnect(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running without locks or wallet cache", "error", err)
	} else {
		defer rdb.Close()
	}

	cld, err := connect.CloudinaryCredentials(cfg)
	if err != nil {
		return err
	}
	if cld == nil {
		logger.Warn("Cloudinary is not configured, media uploads are disabled")
	}

	validator, err := helpers.NewTokenValidator(ctx, cfg.SupabaseURL, cfg.SupabaseJWTSecret, logger)
	if err != nil {
		return err
	}
	defer validator.Close()

	clients := container.Clients{
		Supabase:   supaClient,
		Postgres:   db,
		Mongo:      mongoClient,
		Redis:      rdb,
		Cloudinary: cld,
	}
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		clients.Publisher = pub
		logger.Info("Publishing events to RabbitMQ", "exchange", cfg.RabbitExchange)
	} else {
		logger.Warn("RABBIT_URL not set, notifications are delivered in-process")
	}

	app := container.NewContainer(cfg, logger, validator, clients)
	if err := app.Mongo.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := app.Postgres.EnsureIndexes(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     routes.SetupRoutes(app),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: tracking streams stay open
		IdleTimeout: 60 * time.Second,
		// request contexts end on shutdown so open streams return
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.BookingService.RunEscrowReleaser(gctx, cfg.EscrowReleaseInterval)
		return nil
	})

	g.Go(func() error {
		app.TrackingService.RunSessionSweeper(gctx, cfg.TrackingSessionIdle/6, cfg.TrackingSessionIdle)
		return nil
	})

	if worker && cfg.RabbitURL != "" {
		consumer, err := mq.NewConsumer(mq.ConsumerConfig{
			URL:         cfg.RabbitURL,
			Exchange:    cfg.RabbitExchange,
			Queue:       cfg.RabbitQueue,
			Bindings:    events.Bindings,
			Prefetch:    16,
			DLX:         cfg.RabbitExchange + ".dlx",
			ServiceName: serviceName,
		}, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()

		g.Go(func() error {
			logger.Info("Notification worker started", "queue", cfg.RabbitQueue)
			return consumer.Run(gctx, app.NotificationService.Handle)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server is shutting down...")

		// Give outstanding requests 30 seconds to complete
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})

	return g.Wait()
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
