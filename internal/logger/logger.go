// Package logger configures zerolog and provides request logging for gin.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const RequestIDKey = "request_id"

// Configure sets the global level and output. Console output is meant for terminals;
// otherwise every line is a JSON object.
func Configure(level zerolog.Level, console bool) {
	ConfigureWriter(level, console, os.Stderr)
}

func ConfigureWriter(level zerolog.Level, console bool, w io.Writer) {
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// RequestID tags every request with an id, reusing the X-Request-ID header when the
// caller sent one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// GinLogger logs each request once it completes, at warn level for client errors and
// error level for server errors.
func GinLogger(server string) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		status := c.Writer.Status()
		logctx := log.With().
			Strs("errors", c.Errors.Errors()).
			Str("path", path).
			Str("ser_name", server).
			Str("method", c.Request.Method).
			Dur("resp_time", time.Since(started)).
			Int("resp_bytes", c.Writer.Size()).
			Int("status", status).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(RequestIDKey)).
			Logger()

		msg := fmt.Sprintf("%s %s %s %d", server, c.Request.Method, c.Request.URL.Path, status)

		switch {
		case status >= 500:
			logctx.Error().Msg(msg)
		case status >= 400:
			logctx.Warn().Msg(msg)
		default:
			logctx.Info().Msg(msg)
		}
	}
}
