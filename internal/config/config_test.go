package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDR", "SHUTDOWN_TIMEOUT_MS", "DATABASE_URL", "RUN_MIGRATIONS",
	"CATALOG_SERVICE_URL", "SALES_SERVICE_URL", "CATALOG_SOURCE", "SYNC_UPSTREAM",
	"RABBITMQ_URL", "BURST_GAP_MS", "MIN_CODE_LENGTH", "NOTIFICATION_TTL_MS",
	"COMMIT_TIMEOUT_MS", "PROBE_INTERVAL_MS", "FORCE_OFFLINE", "SYNC_INTERVAL_MS",
	"SYNC_RATE_PER_SEC", "SYNC_BATCH_SIZE", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"LOG_LEVEL", "LOG_DEVELOPMENT",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c := Load()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 15*time.Second, c.ShutdownTimeout)
	assert.Equal(t, 100*time.Millisecond, c.BurstGap)
	assert.Equal(t, 3, c.MinCodeLength)
	assert.Equal(t, 3*time.Second, c.NotificationTTL)
	assert.Equal(t, 10*time.Second, c.CommitTimeout)
	assert.Equal(t, CatalogSourceHTTP, c.CatalogSource)
	assert.Equal(t, SyncUpstreamHTTP, c.SyncUpstream)
	assert.True(t, c.RunMigrations)
	assert.False(t, c.ForceOffline)
	assert.Equal(t, "info", c.LogLevel)
	assert.Empty(t, c.OTLPEndpoint)
	require.NoError(t, c.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("BURST_GAP_MS", "50")
	t.Setenv("MIN_CODE_LENGTH", "5")
	t.Setenv("COMMIT_TIMEOUT_MS", "2500")
	t.Setenv("CATALOG_SOURCE", "Postgres")
	t.Setenv("SYNC_UPSTREAM", "amqp")
	t.Setenv("FORCE_OFFLINE", "true")
	t.Setenv("SYNC_RATE_PER_SEC", "0.5")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c := Load()

	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, 50*time.Millisecond, c.BurstGap)
	assert.Equal(t, 5, c.MinCodeLength)
	assert.Equal(t, 2500*time.Millisecond, c.CommitTimeout)
	assert.Equal(t, CatalogSourcePostgres, c.CatalogSource)
	assert.Equal(t, SyncUpstreamAMQP, c.SyncUpstream)
	assert.True(t, c.ForceOffline)
	assert.InDelta(t, 0.5, c.SyncRatePerSec, 1e-9)
	assert.Equal(t, "debug", c.LogLevel)
	require.NoError(t, c.Validate())
}

func TestLoadInvalidFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("BURST_GAP_MS", "fast")
	t.Setenv("FORCE_OFFLINE", "maybe")
	t.Setenv("SYNC_RATE_PER_SEC", "lots")

	c := Load()

	assert.Equal(t, 100*time.Millisecond, c.BurstGap)
	assert.False(t, c.ForceOffline)
	assert.InDelta(t, 5.0, c.SyncRatePerSec, 1e-9)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("BURST_GAP_MS", "0")
	t.Setenv("SYNC_BATCH_SIZE", "-1")
	t.Setenv("CATALOG_SOURCE", "ftp")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BURST_GAP_MS")
	assert.Contains(t, err.Error(), "SYNC_BATCH_SIZE")
	assert.Contains(t, err.Error(), "CATALOG_SOURCE")
}
