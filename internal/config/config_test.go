package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.TokenExpiry != time.Hour {
		t.Fatalf("expected default token expiry 1h, got %s", cfg.TokenExpiry)
	}
	if cfg.Maintenance {
		t.Fatalf("expected maintenance off by default")
	}
	if cfg.LoginRateLimit != 10 {
		t.Fatalf("expected default login rate limit 10, got %d", cfg.LoginRateLimit)
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_PortOverride(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "PORT": "1234"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"MASTER_SECRET":        "x",
		"MAINTENANCE":          "true",
		"STATE_FILE":           "/tmp/state.json",
		"COOKIE_DOMAIN":        "epistolary.app",
		"LOGIN_RATE_LIMIT":     "3",
		"TOKEN_EXPIRY_SECONDS": "60",
		"LOG_LEVEL":            "debug",
		"GIN_MODE":             "debug",
	})
	require.NoError(t, err)
	require.True(t, cfg.Maintenance)
	require.Equal(t, "/tmp/state.json", cfg.StateFile)
	require.Equal(t, "epistolary.app", cfg.CookieDomain)
	require.Equal(t, 3, cfg.LoginRateLimit)
	require.Equal(t, time.Minute, cfg.TokenExpiry)
	require.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	require.Equal(t, "debug", cfg.GinMode)
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	for _, env := range []mapEnv{
		{"MASTER_SECRET": "x", "PORT": "70000"},
		{"MASTER_SECRET": "x", "GIN_MODE": "fast"},
		{"MASTER_SECRET": "x", "MAINTENANCE": "maybe"},
		{"MASTER_SECRET": "x", "LOGIN_RATE_LIMIT": "0"},
		{"MASTER_SECRET": "x", "LOG_LEVEL": "loud"},
		{"MASTER_SECRET": "x", "SENTRY_DSN": "https://key@sentry.example/1"},
	} {
		_, err := LoadConfigFromEnv(env)
		require.Error(t, err, env)
	}
}

func TestLoadClientConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadClientConfigFromEnv(mapEnv{})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/v1", cfg.APIBaseURL)
	require.Equal(t, 5*time.Second, cfg.AlertTimeout)
	require.Zero(t, cfg.CacheStaleTime)
	require.Zero(t, cfg.RequestTimeout)
	require.Zero(t, cfg.RequestRate)
	require.NotEmpty(t, cfg.StorageURL)
	require.False(t, cfg.Sentry.UseSentry())
}

func TestLoadClientConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadClientConfigFromEnv(mapEnv{
		"EPISTOLARY_API_BASE_URL":     "https://api.epistolary.app/v1",
		"EPISTOLARY_STORAGE_URL":      "memory:",
		"EPISTOLARY_ALERT_TIMEOUT":    "2s",
		"EPISTOLARY_CACHE_STALE_TIME": "30s",
		"EPISTOLARY_REQUEST_RATE":     "2.5",
		"EPISTOLARY_REQUEST_TIMEOUT":  "10s",
		"EPISTOLARY_ANALYTICS_ID":     "G-TEST",
		"EPISTOLARY_VERSION_NUMBER":   "1.2.0",
		"EPISTOLARY_GIT_REVISION":     "abc1234",
		"EPISTOLARY_SENTRY_DSN":       "https://key@sentry.example/1",
		"EPISTOLARY_ENVIRONMENT":      "staging",
	})
	require.NoError(t, err)
	require.Equal(t, "https://api.epistolary.app/v1", cfg.APIBaseURL)
	require.Equal(t, "memory:", cfg.StorageURL)
	require.Equal(t, 2*time.Second, cfg.AlertTimeout)
	require.Equal(t, 30*time.Second, cfg.CacheStaleTime)
	require.Equal(t, 2.5, cfg.RequestRate)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Equal(t, "G-TEST", cfg.AnalyticsID)
	require.Equal(t, "abc1234", cfg.GitRevision)
	require.Equal(t, "Epistolary API Client/v1 (1.2.0)", cfg.UserAgent())
	require.True(t, cfg.Sentry.UseSentry())
	require.Equal(t, "staging", cfg.Sentry.Environment)
	require.Equal(t, "epistolary-client@1.2.0", cfg.Sentry.Release)
}

func TestLoadClientConfigFromEnv_Invalid(t *testing.T) {
	for _, env := range []mapEnv{
		{"EPISTOLARY_API_BASE_URL": "localhost"},
		{"EPISTOLARY_ALERT_TIMEOUT": "soon"},
		{"EPISTOLARY_REQUEST_RATE": "-1"},
		{"EPISTOLARY_CONSOLE_LOG": "sometimes"},
	} {
		_, err := LoadClientConfigFromEnv(env)
		require.Error(t, err, env)
	}
}
