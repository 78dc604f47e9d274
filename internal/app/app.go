// Package app is the headless application: the pages, forms and navigation of the
// Epistolary reading list, driven by the session, the API client and the query cache.
package app

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/alerts"
	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
)

type App struct {
	Session *auth.Manager
	API     *client.Client
	Cache   *cache.Cache
	Alerts  *alerts.Queue
	Router  *Router

	pageSize uint32
}

type Option func(*App)

// WithPageSize sets the number of readings requested per page; zero leaves it to
// the server.
func WithPageSize(size uint32) Option {
	return func(a *App) { a.pageSize = size }
}

func New(session *auth.Manager, api *client.Client, qc *cache.Cache, queue *alerts.Queue, opts ...Option) *App {
	a := &App{
		Session: session,
		API:     api,
		Cache:   qc,
		Alerts:  queue,
		Router:  NewRouter(session),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// unauthorized downgrades the session when the server rejects its credentials so
// the guard sends the user back to the login page. It never raises an alert.
func (a *App) unauthorized(err error) {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return
	}

	log.Debug().Msg("server rejected session credentials")
	if err := a.Session.Clear(); err != nil {
		log.Warn().Err(err).Msg("could not clear session")
	}
	a.Router.Refresh()
}

// guard returns auth.ErrLoginRequired and redirects to the login page unless the
// session is authenticated.
func (a *App) guard() error {
	if _, err := a.Session.Guard(); err != nil {
		a.Router.Refresh()
		return err
	}
	return nil
}
