package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OPENWEATHERMAP_API_KEY", "")

	cfg := LoadConfig()

	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Database.UseSSL)
	assert.Equal(t, "https://api.openweathermap.org", cfg.Weather.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.Weather.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Auth.TokenTTL)
	assert.Equal(t, "weather.saved", cfg.MQ.Channel)
	assert.Empty(t, cfg.MQ.Backend)
	assert.Empty(t, cfg.Storage.Backend)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/w?sslmode=disable")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("JWT_SECRET", "  s3cret  ")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("OPENWEATHERMAP_API_KEY", "key")
	t.Setenv("WEATHER_TIMEOUT", "5s")
	t.Setenv("MQ_BACKEND", MQBackendRabbitMQ)
	t.Setenv("RABBITMQ_PREFETCH", "3")

	cfg := LoadConfig()

	assert.Equal(t, 8081, cfg.ServerPort)
	assert.Equal(t, "postgres://u:p@db:5432/w?sslmode=disable", cfg.Database.URL)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Weather.Timeout)
	assert.Equal(t, MQBackendRabbitMQ, cfg.MQ.Backend)
	assert.Equal(t, 3, cfg.MQ.RabbitMQ.PrefetchCount)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("TOKEN_TTL", "forever")
	t.Setenv("DB_USE_SSL", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, time.Duration(0), cfg.Auth.TokenTTL)
	assert.False(t, cfg.Database.UseSSL)
}

func TestValidate(t *testing.T) {
	valid := Config{
		StoreBackend: StoreBackendMemory,
		Auth:         AuthConfig{JWTSecret: "secret"},
		Weather:      WeatherConfig{APIKey: "key"},
	}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.Auth.JWTSecret = ""
	missing.Weather.APIKey = ""
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "OPENWEATHERMAP_API_KEY")

	unknown := valid
	unknown.MQ.Backend = "kafka"
	unknown.Storage.Backend = "s3"
	err = unknown.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQ_BACKEND")
	assert.Contains(t, err.Error(), "STORAGE_BACKEND")
}
