package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, developmentJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 10*time.Second, cfg.InFlightTTL)
	assert.Equal(t, "EUR", cfg.PromotionCurrency)
	assert.False(t, cfg.StripeLive())
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("API_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("API_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://motorlot.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://motorlot.example"}, cfg.CORSAllowOrigins)
}

func TestLoadRejectsLiveStripeWithoutKeys(t *testing.T) {
	t.Setenv("API_ENV", "development")
	t.Setenv("STRIPE_MODE", "live")
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}
