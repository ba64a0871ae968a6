package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Second, cfg.WriteRateWindow)
	assert.Equal(t, 24*time.Hour, cfg.StockCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.IdempotencyTTL)
	assert.Empty(t, cfg.OtelEndpoint)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://app:secret@db:5432/store?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("WRITE_RATE_WINDOW_SEC", "5")
	t.Setenv("IDEMPOTENCY_TTL_MIN", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.WriteRateWindow)
	assert.Equal(t, time.Minute, cfg.IdempotencyTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"DB_DRIVER":            "mysql",
		"DB_MAX_OPEN_CONNS":    "0",
		"REDIS_DB":             "one",
		"WRITE_RATE_LIMIT":     "-1",
		"STOCK_CACHE_TTL_HOUR": "x",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
