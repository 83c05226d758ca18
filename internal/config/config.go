package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	SupabaseURL       string `envconfig:"SUPABASE_URL" required:"true"`
	SupabaseAnonKey   string `envconfig:"SUPABASE_URL_ANON_KEY" required:"true"`
	SupabaseJWTSecret string `envconfig:"SUPABASE_JWT_SECRET"`
	DatabaseURL       string `envconfig:"DATABASE_URL" required:"true"`

	MongoDBURI      string `envconfig:"MONGODB_URI" required:"true"`
	MongoDBPassword string `envconfig:"MONGODB_PASSWORD" required:"true"`
	MongoDBName     string `envconfig:"MONGODB_NAME" default:"gigbay"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Empty RabbitURL routes events to the log instead of the broker.
	RabbitURL      string `envconfig:"RABBIT_URL"`
	RabbitExchange string `envconfig:"RABBIT_EXCHANGE" default:"gigbay.events"`
	RabbitQueue    string `envconfig:"RABBIT_QUEUE" default:"gigbay.notifications"`

	CloudinaryCloudName string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	AllowedOrigins        []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	EscrowReleaseInterval time.Duration `envconfig:"ESCROW_RELEASE_INTERVAL" default:"1m"`
	TrackingStreamBuffer  int           `envconfig:"TRACKING_STREAM_BUFFER" default:"16"`
	TrackingSessionIdle   time.Duration `envconfig:"TRACKING_SESSION_IDLE" default:"6h"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	// envconfig accepts a variable that is set but empty
	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL_ANON_KEY is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}

	switch cfg.Environment {
	case "development", "staging", "production":
	default:
		return nil, fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", cfg.Environment)
	}

	if cfg.EscrowReleaseInterval <= 0 {
		return nil, fmt.Errorf("ESCROW_RELEASE_INTERVAL must be positive")
	}
	if cfg.TrackingSessionIdle <= 0 {
		return nil, fmt.Errorf("TRACKING_SESSION_IDLE must be positive")
	}
	if cfg.TrackingStreamBuffer <= 0 {
		return nil, fmt.Errorf("TRACKING_STREAM_BUFFER must be positive")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SlogLevel maps LOG_LEVEL onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
