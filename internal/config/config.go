package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port            string `env:"PORT" envDefault:"8080"`
	Environment     string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_URL_ANON_KEY"`
	DatabaseURL     string `env:"DATABASE_URL"`
	MongoDBURI      string `env:"MONGODB_URI"`
	MongoDBPassword string `env:"MONGODB_PASSWORD"`
	MongoDBName     string `env:"MONGODB_NAME" envDefault:"invites"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`

	// HostOrigin is this deployment's own origin. Template origins that may
	// post messages are listed in AllowedOrigins.
	HostOrigin     string   `env:"HOST_ORIGIN" envDefault:"http://localhost:3000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	MaxImageBytes      int           `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	DisconnectDebounce time.Duration `env:"REALTIME_DISCONNECT_DEBOUNCE" envDefault:"3s"`
	NotifyChannel      string        `env:"REALTIME_CHANNEL" envDefault:"invite_changes"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Validate required fields
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
	if cfg.MongoDBPassword == "" {
		return nil, fmt.Errorf("MONGODB_PASSWORD is required")
	}
	if cfg.MaxImageBytes <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
