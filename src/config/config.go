package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server  ServerConfig
	Plaid   PlaidConfig
	Sync    SyncConfig
	Storage StorageConfig
}

type ServerConfig struct {
	// stdio or http
	Transport       string        `envconfig:"MCP_TRANSPORT" default:"stdio"`
	Port            string        `envconfig:"PORT" default:"8080"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type PlaidConfig struct {
	ClientID           string   `envconfig:"PLAID_CLIENT_ID" required:"true"`
	Secret             string   `envconfig:"PLAID_SECRET" required:"true"`
	Env                string   `envconfig:"PLAID_ENV" default:"sandbox"`
	ClientName         string   `envconfig:"PLAID_CLIENT_NAME" default:"Plaid MCP Server"`
	Language           string   `envconfig:"PLAID_LANGUAGE" default:"en"`
	CountryCodes       []string `envconfig:"PLAID_COUNTRY_CODES" default:"US"`
	WebhookURL         string   `envconfig:"PLAID_WEBHOOK_URL"`
	VerifyWebhooks     bool     `envconfig:"PLAID_VERIFY_WEBHOOKS" default:"false"`
	EnableTransactions bool     `envconfig:"ENABLE_TRANSACTIONS" default:"true"`
}

type SyncConfig struct {
	SettleInterval  time.Duration `envconfig:"SYNC_SETTLE_INTERVAL" default:"2s"`
	PageSize        int32         `envconfig:"SYNC_PAGE_SIZE" default:"500"`
	Timeout         time.Duration `envconfig:"SYNC_TIMEOUT" default:"5m"`
	AccountCacheTTL time.Duration `envconfig:"ACCOUNT_CACHE_TTL" default:"5m"`
	WebhookLogLimit int           `envconfig:"WEBHOOK_LOG_LIMIT" default:"200"`
}

type StorageConfig struct {
	// memory or postgres
	Backend     string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

func Load() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Plaid.ClientID == "" || c.Plaid.Secret == "" {
		return fmt.Errorf("PLAID_CLIENT_ID and PLAID_SECRET are required")
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("MCP_TRANSPORT must be stdio or http, got %q", c.Server.Transport)
	}

	switch c.Plaid.Env {
	case "sandbox", "production":
	default:
		return fmt.Errorf("PLAID_ENV must be sandbox or production, got %q", c.Plaid.Env)
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or postgres, got %q", c.Storage.Backend)
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 500 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 500, got %d", c.Sync.PageSize)
	}
	return nil
}

func (s *ServerConfig) Address() string {
	return ":" + s.Port
}
