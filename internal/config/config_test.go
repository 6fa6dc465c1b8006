package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.Equal(t, DefaultCommunities, cfg.Communities)
}

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("VALUATOR_API_KEY", "secret")
	t.Setenv("VALUATOR_LOG_LEVEL", "warn")
	t.Setenv("VALUATOR_SOURCE_RATE", "0.5")
	t.Setenv("VALUATOR_COMMUNITIES", " Flipping, ,ThriftStoreHauls ")

	cfg := DefaultConfig()
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	assert.Equal(t, 0.5, cfg.SourceRate)
	assert.Equal(t, []string{"Flipping", "ThriftStoreHauls"}, cfg.Communities)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty db", func(c *Config) { c.DBPath = "" }},
		{"bad mode", func(c *Config) { c.SourceMode = "html" }},
		{"zero post attempts", func(c *Config) { c.PostAttempts = 0 }},
		{"zero fetch attempts", func(c *Config) { c.FetchAttempts = 0 }},
		{"negative delay", func(c *Config) { c.PostDelay = -time.Second }},
		{"zero rate", func(c *Config) { c.SourceRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("T_INT", "12")
	t.Setenv("T_BAD_INT", "twelve")
	t.Setenv("T_BOOL", "true")
	t.Setenv("T_DUR_MIN", "15")
	t.Setenv("T_DUR", "90s")
	t.Setenv("T_FLOAT", "nope")

	assert.Equal(t, 12, GetEnvInt("T_INT", 1))
	assert.Equal(t, 1, GetEnvInt("T_BAD_INT", 1))
	assert.True(t, GetEnvBool("T_BOOL", false))
	assert.Equal(t, 15*time.Minute, GetEnvDuration("T_DUR_MIN", 0))
	assert.Equal(t, 90*time.Second, GetEnvDuration("T_DUR", 0))
	assert.Equal(t, 2.5, GetEnvFloat("T_FLOAT", 2.5))
	assert.Equal(t, "x", GetEnvString("T_UNSET_STRING", "x"))
	assert.Equal(t, []string{"a"}, GetEnvList("T_UNSET_LIST", []string{"a"}))
}
