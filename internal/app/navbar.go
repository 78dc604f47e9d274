package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/model"
)

type Navbar struct {
	app *App
}

func (a *App) Navbar() *Navbar {
	return &Navbar{app: a}
}

// User returns the logged in user, if any.
func (n *Navbar) User() (model.AuthClaims, bool) {
	claims := n.app.Session.Current()
	return claims, !auth.IsAnonymous(&claims)
}

// Logout ends the session on the server and locally, then moves to the login page.
// The local session is cleared even when the server call fails; that failure is
// reported as an alert and returned.
func (n *Navbar) Logout(ctx context.Context) error {
	rep := n.app.API.Logout(ctx)

	if err := n.app.Session.Clear(); err != nil {
		log.Warn().Err(err).Msg("could not clear session")
	}
	n.app.Cache.Reset()
	if _, err := n.app.Router.Navigate(RouteLogin); err != nil {
		return err
	}

	if !rep.OK() {
		n.app.Alerts.Add(rep.Err.Message, model.SeverityWarning, "Logout Failed")
		return rep.Err
	}
	return nil
}
