package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "passthrough", cfg.IdentityMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.AMQPURL)
	assert.False(t, cfg.OTEL.Enabled)
	assert.InDelta(t, 1.0, cfg.OTEL.SampleRatio, 0.0001)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.OTEL.Enabled)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadStaticIdentityRequiresTokens(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "static")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("IDENTITY_TOKENS", "tok-1=alice,tok-2=bob")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tok-1": "alice", "tok-2": "bob"}, cfg.IdentityTokens)
}

func TestLoadRejectsSampleRatioOutOfRange(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")

	_, err := Load()
	require.Error(t, err)
}

func TestParseTokensSkipsMalformedPairs(t *testing.T) {
	tokens := parseTokens("tok-1=alice, ,broken,=bob,tok-2=carol")
	assert.Equal(t, map[string]string{"tok-1": "alice", "tok-2": "carol"}, tokens)
}
