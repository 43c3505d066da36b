package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const developmentJWTSecret = "dev-only-insecure-secret"

// Config holds runtime configuration values for the API service.
type Config struct {
	Port        string `envconfig:"API_PORT" default:"8080"`
	Environment string `envconfig:"API_ENV" default:"development"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret       string        `envconfig:"JWT_SECRET"`
	JWTIssuer       string        `envconfig:"JWT_ISSUER" default:"motorlot-api"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"720h"`

	SuperAdminEmails      string `envconfig:"SUPER_ADMIN_EMAILS"`
	AdminEmails           string `envconfig:"ADMIN_EMAILS"`
	SeniorModeratorEmails string `envconfig:"SENIOR_MODERATOR_EMAILS"`
	ModeratorEmails       string `envconfig:"MODERATOR_EMAILS"`

	CORSAllowOrigins         []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000"`
	RateLimitRPS             float64  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst           int      `envconfig:"RATE_LIMIT_BURST" default:"40"`
	ActionRateLimitPerMinute int      `envconfig:"ACTION_RATE_LIMIT_PER_MINUTE" default:"30"`

	DatabaseURL string        `envconfig:"DATABASE_URL"`
	RedisAddr   string        `envconfig:"REDIS_ADDR"`
	InFlightTTL time.Duration `envconfig:"INFLIGHT_TTL" default:"10s"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"listing-transitions"`

	StripeMode          string `envconfig:"STRIPE_MODE" default:"mock"`
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	PromotionCurrency   string `envconfig:"PROMOTION_CURRENCY" default:"EUR"`
}

// Load reads config from env vars with defaults for local development.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// StripeLive reports whether real Stripe calls should be made.
func (c Config) StripeLive() bool {
	return c.StripeMode == "live"
}

func (c *Config) normalize() error {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.StripeMode = strings.ToLower(strings.TrimSpace(c.StripeMode))
	c.PromotionCurrency = strings.ToUpper(strings.TrimSpace(c.PromotionCurrency))

	if c.JWTSecret == "" {
		if c.Environment != "development" && c.Environment != "test" {
			return errors.New("JWT_SECRET must be set outside development")
		}
		c.JWTSecret = developmentJWTSecret
	}

	switch c.StripeMode {
	case "mock":
	case "live":
		if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
			return errors.New("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required in live mode")
		}
	default:
		return errors.New("STRIPE_MODE must be mock or live")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.InFlightTTL <= 0 {
		return errors.New("INFLIGHT_TTL must be positive")
	}
	return nil
}
