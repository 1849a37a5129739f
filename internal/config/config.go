package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`

	// Provider secrets, injected by the relay and never returned to callers
	FalKey       string `env:"FAL_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`

	// Relay
	RelayAllowedOrigins   []string      `env:"RELAY_ALLOWED_ORIGINS" envSeparator:"," envDefault:"api.openai.com,fal.run"`
	RelayTimeout          time.Duration `env:"RELAY_TIMEOUT" envDefault:"120s"`
	RelayMaxResponseBytes int64         `env:"RELAY_MAX_RESPONSE_BYTES" envDefault:"33554432"`

	// Generation
	ImageProvider string `env:"IMAGE_PROVIDER" envDefault:"fal"`

	// Gallery persistence
	GalleryBackend      string        `env:"GALLERY_BACKEND" envDefault:"file"`
	GalleryFileDir      string        `env:"GALLERY_FILE_DIR" envDefault:"./data"`
	GalleryStorageKey   string        `env:"GALLERY_STORAGE_KEY" envDefault:"imageGallery"`
	DeleteConfirmWindow time.Duration `env:"DELETE_CONFIRM_WINDOW" envDefault:"3s"`

	// Redis
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Supabase
	SupabaseURL           string `env:"SUPABASE_URL"`
	SupabaseServiceKey    string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseStorageBucket string `env:"SUPABASE_STORAGE_BUCKET" envDefault:"generated-images"`
	SupabaseGalleryTable  string `env:"SUPABASE_GALLERY_TABLE" envDefault:"gallery_blobs"`

	// Image assets
	AssetBackend   string `env:"ASSET_BACKEND" envDefault:"inline"`
	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"generated-images"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`

	// Auth is enabled when a secret is configured
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
}

// Load reads optional .env files, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) normalize() {
	origins := make([]string, 0, len(c.RelayAllowedOrigins))
	for _, o := range c.RelayAllowedOrigins {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			origins = append(origins, o)
		}
	}
	c.RelayAllowedOrigins = origins
	c.ImageProvider = strings.ToLower(strings.TrimSpace(c.ImageProvider))
	c.GalleryBackend = strings.ToLower(strings.TrimSpace(c.GalleryBackend))
	c.AssetBackend = strings.ToLower(strings.TrimSpace(c.AssetBackend))
	c.SupabaseURL = strings.TrimSuffix(strings.TrimSpace(c.SupabaseURL), "/")
}

func (c *Config) Validate() error {
	switch c.ImageProvider {
	case "fal", "openai", "dalle":
	default:
		return fmt.Errorf("IMAGE_PROVIDER must be one of fal, openai, dalle, got %q", c.ImageProvider)
	}

	if len(c.RelayAllowedOrigins) == 0 {
		return fmt.Errorf("RELAY_ALLOWED_ORIGINS must list at least one origin")
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("RELAY_TIMEOUT must be positive")
	}
	if c.RelayMaxResponseBytes <= 0 {
		return fmt.Errorf("RELAY_MAX_RESPONSE_BYTES must be positive")
	}
	if c.DeleteConfirmWindow <= 0 {
		return fmt.Errorf("DELETE_CONFIRM_WINDOW must be positive")
	}
	if strings.TrimSpace(c.GalleryStorageKey) == "" {
		return fmt.Errorf("GALLERY_STORAGE_KEY is required")
	}

	switch c.GalleryBackend {
	case "memory", "redis":
	case "file":
		if c.GalleryFileDir == "" {
			return fmt.Errorf("GALLERY_FILE_DIR is required when GALLERY_BACKEND is file")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when GALLERY_BACKEND is postgres")
		}
	case "supabase":
		if err := c.requireSupabase("GALLERY_BACKEND"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("GALLERY_BACKEND must be one of memory, file, redis, postgres, supabase, got %q", c.GalleryBackend)
	}

	switch c.AssetBackend {
	case "inline":
	case "supabase":
		if err := c.requireSupabase("ASSET_BACKEND"); err != nil {
			return err
		}
	case "minio":
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when ASSET_BACKEND is minio")
		}
	default:
		return fmt.Errorf("ASSET_BACKEND must be one of inline, supabase, minio, got %q", c.AssetBackend)
	}

	return nil
}

func (c *Config) requireSupabase(setting string) error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required when %s is supabase", setting)
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when %s is supabase", setting)
	}
	return nil
}

// ProviderCredentials maps allow-listed origins to the Authorization value the relay injects.
// Origins without a configured secret are absent.
func (c *Config) ProviderCredentials() map[string]string {
	creds := make(map[string]string)
	if c.FalKey != "" {
		creds["fal.run"] = "Key " + c.FalKey
	}
	if c.OpenAIAPIKey != "" {
		creds["api.openai.com"] = "Bearer " + c.OpenAIAPIKey
	}
	return creds
}

func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
