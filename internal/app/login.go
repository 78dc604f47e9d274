package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/model"
)

type LoginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginPage struct {
	app *App
}

func (a *App) LoginPage() *LoginPage {
	return &LoginPage{app: a}
}

// Submit logs in with form. An invalid form returns a *ValidationError without
// contacting the server. A rejected login adds an alert with the server's message,
// returns the *client.Error and stays on the login page. On success the session is
// set from the access token and the router moves to the home page.
func (p *LoginPage) Submit(ctx context.Context, form LoginForm) (model.AuthClaims, error) {
	form.Username = strings.TrimSpace(form.Username)
	if err := validateForm(&form); err != nil {
		return model.Anonymous(), err
	}

	rep := p.app.API.Login(ctx, &model.LoginRequest{Username: form.Username, Password: form.Password})
	if !rep.OK() {
		p.app.Alerts.Add(rep.Err.Message, model.SeverityError, "")
		return model.Anonymous(), rep.Err
	}

	claims, err := p.app.Session.Login(rep.Value.AccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("could not decode access token")
		p.app.Alerts.Add("could not decode access token", model.SeverityError, "")
		return model.Anonymous(), err
	}

	if auth.IsAnonymous(&claims) {
		// the token had already expired when it arrived
		p.app.Router.Refresh()
		return claims, auth.ErrLoginRequired
	}

	log.Info().Str("username", claims.Username).Msg("logged in")
	p.app.Cache.Reset()
	if _, err := p.app.Router.Navigate(RouteHome); err != nil {
		return claims, err
	}
	return claims, nil
}
