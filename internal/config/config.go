package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"epistolary-lite/internal/sentry"
	"epistolary-lite/internal/version"
)

// Config configures the development API server.
type Config struct {
	Port           int
	MasterSecret   string
	GinMode        string
	TLSCertFile    string
	TLSKeyFile     string
	TokenExpiry    time.Duration
	Maintenance    bool
	StateFile      string
	CookieDomain   string
	LoginRateLimit int
	LogLevel       zerolog.Level
	ConsoleLog     bool
	Sentry         sentry.Config
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// OSEnv reads the process environment.
func OSEnv() Env { return osEnv{} }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:           8000,
		GinMode:        "release",
		TokenExpiry:    time.Hour,
		LoginRateLimit: 10,
		LogLevel:       zerolog.InfoLevel,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		switch raw {
		case "release", "debug", "test":
			cfg.GinMode = raw
		default:
			return Config{}, fmt.Errorf("invalid GIN_MODE %q", raw)
		}
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	var err error
	if cfg.Maintenance, err = parseBool(env, "MAINTENANCE"); err != nil {
		return Config{}, err
	}

	cfg.StateFile = env.Getenv("STATE_FILE")
	cfg.CookieDomain = env.Getenv("COOKIE_DOMAIN")

	if raw := env.Getenv("LOGIN_RATE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT")
		}
		cfg.LoginRateLimit = limit
	}

	if cfg.LogLevel, err = parseLevel(env, "LOG_LEVEL", cfg.LogLevel); err != nil {
		return Config{}, err
	}
	if cfg.ConsoleLog, err = parseBool(env, "CONSOLE_LOG"); err != nil {
		return Config{}, err
	}

	cfg.Sentry = sentry.Config{
		DSN:         env.Getenv("SENTRY_DSN"),
		Environment: env.Getenv("SENTRY_ENVIRONMENT"),
		ServerName:  "epistolary-dev",
		Release:     fmt.Sprintf("epistolary@%s", version.Version()),
		SampleRate:  1,
	}
	if err := cfg.Sentry.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parseBool(env Env, key string) (bool, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseLevel(env Env, key string, fallback zerolog.Level) (zerolog.Level, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s", key)
	}
	return level, nil
}

func parseDuration(env Env, key string, fallback time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
