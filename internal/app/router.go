package app

import (
	"context"
	"errors"
	"sync"

	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/hub"
)

type Route string

const (
	RouteHome  Route = "/"
	RouteLogin Route = "/login"
)

var ErrUnknownRoute = errors.New("unknown route")

const routeTopic = "route"

// Router tracks the current route. Protected routes resolve to the login route
// whenever the session is anonymous or expired.
type Router struct {
	mu        sync.Mutex
	session   *auth.Manager
	current   Route
	protected map[Route]bool
	subs      *hub.Hub[string, Route]
}

func NewRouter(session *auth.Manager) *Router {
	r := &Router{
		session:   session,
		current:   RouteHome,
		protected: map[Route]bool{RouteHome: true, RouteLogin: false},
		subs:      hub.New[string, Route](),
	}
	r.Refresh()
	return r
}

// Navigate moves to the route to, or to the login route if to is protected and the
// session does not pass the guard. It returns the route that was entered.
func (r *Router) Navigate(to Route) (Route, error) {
	if _, known := r.protected[to]; !known {
		return r.Current(), ErrUnknownRoute
	}
	return r.enter(r.resolve(to)), nil
}

// Current re-runs the guard on the current route before returning it.
func (r *Router) Current() Route {
	return r.Refresh()
}

// Refresh re-evaluates the guard on the current route.
func (r *Router) Refresh() Route {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	return r.enter(r.resolve(current))
}

// Watch re-runs the guard every time the session changes until ctx is done. The
// session subscription is in place when Watch returns.
func (r *Router) Watch(ctx context.Context) {
	claims, cancel := r.session.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-claims:
				if !ok {
					return
				}
				r.Refresh()
			}
		}
	}()
}

// Subscribe delivers the route every time it changes.
func (r *Router) Subscribe() (<-chan Route, func()) {
	return r.subs.Subscribe(routeTopic, 4)
}

func (r *Router) resolve(to Route) Route {
	if !r.protected[to] {
		return to
	}
	if _, err := r.session.Guard(); err != nil {
		return RouteLogin
	}
	return to
}

func (r *Router) enter(route Route) Route {
	r.mu.Lock()
	changed := r.current != route
	r.current = route
	r.mu.Unlock()

	if changed {
		r.subs.Broadcast(routeTopic, route)
	}
	return route
}
