package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST",
		"AUTO_MOUNT", "SIM_SEED", "ALLOWED_ORIGINS", "TRACE_SAMPLE_RATIO",
	} {
		setEnv(t, k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)
	assert.False(t, cfg.AutoMount)
	assert.Zero(t, cfg.SimSeed)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	setEnv(t, "PORT", "9090")
	setEnv(t, "LOG_FORMAT", "json")
	setEnv(t, "AUTO_MOUNT", "true")
	setEnv(t, "SIM_SEED", "42")
	setEnv(t, "RATE_LIMIT_RPM", "120")
	setEnv(t, "ALLOWED_ORIGINS", "http://localhost:3000, https://guardlens.dev ,")
	setEnv(t, "TRACE_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.AutoMount)
	assert.Equal(t, int64(42), cfg.SimSeed)
	assert.Equal(t, 120, cfg.RateLimitRPM)
	assert.Equal(t, []string{"http://localhost:3000", "https://guardlens.dev"}, cfg.AllowedOrigins)
	assert.Equal(t, 0.25, cfg.TraceSampleRatio)
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t)
	setEnv(t, "PORT", "eighty")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:           "8080",
			Env:            "development",
			LogFormat:      "text",
			RateLimitRPM:   60,
			RateLimitBurst: 10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Port = "70000" }, wantErr: "PORT"},
		{name: "unknown env", mutate: func(c *Config) { c.Env = "qa" }, wantErr: "ENV"},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "zero rpm", mutate: func(c *Config) { c.RateLimitRPM = 0 }, wantErr: "RATE_LIMIT_RPM"},
		{name: "zero burst", mutate: func(c *Config) { c.RateLimitBurst = 0 }, wantErr: "RATE_LIMIT_BURST"},
		{name: "sample ratio above one", mutate: func(c *Config) { c.TraceSampleRatio = 1.5 }, wantErr: "TRACE_SAMPLE_RATIO"},
		{
			name: "wildcard origin in production",
			mutate: func(c *Config) {
				c.Env = "production"
				c.AllowedOrigins = []string{"*"}
			},
			wantErr: "ALLOWED_ORIGINS",
		},
		{
			name: "wildcard origin in development",
			mutate: func(c *Config) {
				c.AllowedOrigins = []string{"*"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvBool(t *testing.T) {
	setEnv(t, "TEST_BOOL", "1")
	setEnv(t, "TEST_BAD_BOOL", "maybe")

	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BAD_BOOL", true))
	assert.False(t, getEnvBool("NONEXISTENT_VAR", false))
}
