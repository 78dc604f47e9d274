// Package sentry configures error reporting and reports unexpected failures.
package sentry

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DSN         string
	ServerName  string
	Environment string
	Release     string
	SampleRate  float64
	Debug       bool
}

// UseSentry reports whether a DSN is configured.
func (c Config) UseSentry() bool {
	return c.DSN != ""
}

func (c Config) Validate() error {
	if c.UseSentry() && c.Environment == "" {
		return errors.New("invalid configuration: environment must be configured when Sentry is enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return errors.New("invalid configuration: sample rate must be between 0 and 1")
	}
	return nil
}

func (c Config) ClientOptions() sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              c.DSN,
		Environment:      c.Environment,
		Release:          c.Release,
		ServerName:       c.ServerName,
		AttachStacktrace: true,
		Debug:            c.Debug,
		SampleRate:       c.SampleRate,
	}
}

// Init starts the Sentry client when a DSN is configured. The returned function
// flushes buffered events and is safe to call when Sentry is disabled.
func Init(c Config) (func(), error) {
	if !c.UseSentry() {
		return func() {}, nil
	}
	if err := sentry.Init(c.ClientOptions()); err != nil {
		return func() {}, err
	}
	log.Debug().Str("environment", c.Environment).Str("release", c.Release).Msg("sentry enabled")
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// Report sends err to Sentry, if enabled, and logs it either way.
func Report(err error, msg string) {
	if err == nil {
		return
	}
	log.Error().Err(err).Msg(msg)
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("message", msg)
			hub.CaptureException(err)
		})
	}
}

// Middleware reports the errors attached to requests that end in a server error, and
// recovered panics, tagging each event with tags.
func Middleware(tags map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		if hub.Client() == nil {
			c.Next()
			return
		}

		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTags(tags)
			scope.SetRequest(c.Request)
		})

		defer func() {
			if rec := recover(); rec != nil {
				hub.RecoverWithContext(c.Request.Context(), rec)
				panic(rec)
			}
		}()

		c.Next()

		if c.Writer.Status() >= 500 {
			for _, ginErr := range c.Errors {
				hub.CaptureException(ginErr.Err)
			}
		}
	}
}
