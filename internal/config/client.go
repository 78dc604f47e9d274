package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"epistolary-lite/internal/sentry"
	"epistolary-lite/internal/version"
)

const clientPrefix = "EPISTOLARY_"

// ClientConfig configures the Epistolary client. Every variable carries the
// EPISTOLARY_ prefix.
type ClientConfig struct {
	APIBaseURL     string
	Environment    string
	LogLevel       zerolog.Level
	ConsoleLog     bool
	StorageURL     string
	AlertTimeout   time.Duration
	CacheStaleTime time.Duration
	RequestRate    float64
	RequestTimeout time.Duration
	AnalyticsID    string
	VersionNumber  string
	GitRevision    string
	Sentry         sentry.Config
}

func LoadClientConfig() (ClientConfig, error) {
	return LoadClientConfigFromEnv(osEnv{})
}

func LoadClientConfigFromEnv(env Env) (ClientConfig, error) {
	cfg := ClientConfig{
		APIBaseURL:    "http://localhost:8000/v1",
		Environment:   "development",
		LogLevel:      zerolog.WarnLevel,
		StorageURL:    DefaultStorageURL(),
		AlertTimeout:  5 * time.Second,
		VersionNumber: version.Version(),
		GitRevision:   version.GitRevision,
	}

	if raw := env.Getenv(clientPrefix + "API_BASE_URL"); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ClientConfig{}, fmt.Errorf("invalid %sAPI_BASE_URL", clientPrefix)
		}
		cfg.APIBaseURL = raw
	}

	if raw := env.Getenv(clientPrefix + "ENVIRONMENT"); raw != "" {
		cfg.Environment = raw
	}

	var err error
	if cfg.LogLevel, err = parseLevel(env, clientPrefix+"LOG_LEVEL", cfg.LogLevel); err != nil {
		return ClientConfig{}, err
	}
	if cfg.ConsoleLog, err = parseBool(env, clientPrefix+"CONSOLE_LOG"); err != nil {
		return ClientConfig{}, err
	}

	if raw := env.Getenv(clientPrefix + "STORAGE_URL"); raw != "" {
		cfg.StorageURL = raw
	}

	if cfg.AlertTimeout, err = parseDuration(env, clientPrefix+"ALERT_TIMEOUT", cfg.AlertTimeout); err != nil {
		return ClientConfig{}, err
	}
	if cfg.CacheStaleTime, err = parseDuration(env, clientPrefix+"CACHE_STALE_TIME", 0); err != nil {
		return ClientConfig{}, err
	}
	if cfg.RequestTimeout, err = parseDuration(env, clientPrefix+"REQUEST_TIMEOUT", 0); err != nil {
		return ClientConfig{}, err
	}

	if raw := env.Getenv(clientPrefix + "REQUEST_RATE"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate < 0 {
			return ClientConfig{}, fmt.Errorf("invalid %sREQUEST_RATE", clientPrefix)
		}
		cfg.RequestRate = rate
	}

	cfg.AnalyticsID = env.Getenv(clientPrefix + "ANALYTICS_ID")
	if raw := env.Getenv(clientPrefix + "VERSION_NUMBER"); raw != "" {
		cfg.VersionNumber = raw
	}
	if raw := env.Getenv(clientPrefix + "GIT_REVISION"); raw != "" {
		cfg.GitRevision = raw
	}

	cfg.Sentry = sentry.Config{
		DSN:         env.Getenv(clientPrefix + "SENTRY_DSN"),
		Environment: env.Getenv(clientPrefix + "SENTRY_ENVIRONMENT"),
		Release:     fmt.Sprintf("epistolary-client@%s", cfg.VersionNumber),
		SampleRate:  1,
	}
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = cfg.Environment
	}
	if err := cfg.Sentry.Validate(); err != nil {
		return ClientConfig{}, err
	}

	return cfg, nil
}

// UserAgent is the User-Agent the client sends.
func (c ClientConfig) UserAgent() string {
	return fmt.Sprintf("Epistolary API Client/v1 (%s)", c.VersionNumber)
}

// DefaultStorageURL keeps session state in the user's config directory, falling back
// to process memory when there is none.
func DefaultStorageURL() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "memory:"
	}
	return "file:" + filepath.Join(dir, "epistolary", "session.json")
}
