package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"epistolary-lite/internal/alerts"
	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
	"epistolary-lite/internal/model"
	"epistolary-lite/internal/server"
	"epistolary-lite/internal/storage"
	"epistolary-lite/internal/store"
)

// backend is the development API server with a request counter and an optional gate
// that holds list requests for a page token until released.
type backend struct {
	router   http.Handler
	requests atomic.Int32

	mu   sync.Mutex
	gate chan struct{}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.requests.Add(1)
	if r.URL.Path == "/v1/reading" && r.URL.Query().Get("page_token") != "" {
		b.mu.Lock()
		gate := b.gate
		b.mu.Unlock()
		if gate != nil {
			<-gate
		}
	}
	b.router.ServeHTTP(w, r)
}

func (b *backend) hold() func() {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

type fixture struct {
	app     *App
	area    storage.Storage
	backend *backend
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &backend{router: server.NewRouter(server.Deps{
		Store:       store.New(),
		TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
	})}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	area := storage.NewMemory()
	api, err := client.New(srv.URL+"/v1", client.WithStorage(area))
	require.NoError(t, err)

	rep := api.Register(context.Background(), &model.RegisterRequest{
		FullName: "Alice", Email: "alice@example.com", Username: "alice", Password: "secret",
	})
	require.True(t, rep.OK(), "%v", rep.Err)

	session := auth.NewManager(auth.NewTokenStore(area))
	a := New(session, api, cache.New(cache.WithStaleTime(time.Minute)), alerts.New(0), opts...)
	return &fixture{app: a, area: area, backend: b}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.app.LoginPage().Submit(context.Background(), LoginForm{Username: "alice", Password: "secret"})
	require.NoError(t, err)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, RouteLogin, f.app.Router.Current())

	routes, cancel := f.app.Router.Subscribe()
	defer cancel()

	claims, err := f.app.LoginPage().Submit(context.Background(), LoginForm{Username: " alice ", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.InDelta(t, time.Now().Add(time.Hour).Unix(), claims.Exp, 10)

	require.Equal(t, claims, f.app.Session.Current())
	require.Equal(t, RouteHome, f.app.Router.Current())
	require.Equal(t, RouteHome, <-routes)

	_, err = f.app.HomePage()
	require.NoError(t, err)

	user, ok := f.app.Navbar().User()
	require.True(t, ok)
	require.Equal(t, "alice", user.Username)
	require.Zero(t, f.app.Alerts.Len())
}

func TestLogin_Failure(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.LoginPage().Submit(context.Background(), LoginForm{Username: "alice", Password: "wrong"})
	var apiErr *client.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "invalid credentials", apiErr.Message)

	list := f.app.Alerts.List()
	require.Len(t, list, 1)
	require.Equal(t, "invalid credentials", list[0].Message)
	require.Equal(t, model.SeverityError, list[0].Severity)

	require.Equal(t, RouteLogin, f.app.Router.Current())
	require.True(t, auth.IsAnonymous(ptr(f.app.Session.Current())))
}

func TestLogin_ValidationNeverSent(t *testing.T) {
	f := newFixture(t)
	before := f.backend.requests.Load()

	_, err := f.app.LoginPage().Submit(context.Background(), LoginForm{Username: "alice"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, map[string]string{"password": "password is required"}, verr.Fields)

	require.Equal(t, before, f.backend.requests.Load())
	require.Zero(t, f.app.Alerts.Len())
}

func TestExpiredSession_AutoLogout(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.Equal(t, RouteHome, f.app.Router.Current())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	routes, unsubscribe := f.app.Router.Subscribe()
	defer unsubscribe()
	f.app.Router.Watch(ctx)

	expired := model.AuthClaims{Username: "alice", Exp: time.Now().Add(-10 * time.Second).Unix()}
	require.NoError(t, auth.NewTokenStore(f.area).Write(expired))

	require.Equal(t, model.Anonymous(), f.app.Session.Current())
	require.Equal(t, model.Anonymous(), auth.NewTokenStore(f.area).Read())

	select {
	case route := <-routes:
		require.Equal(t, RouteLogin, route)
	case <-time.After(2 * time.Second):
		t.Fatal("router did not redirect to login")
	}

	_, err := f.app.HomePage()
	require.ErrorIs(t, err, auth.ErrLoginRequired)
	require.Zero(t, f.app.Alerts.Len())
}

func TestServerRejectedSession_Downgrades(t *testing.T) {
	f := newFixture(t)
	// claims that look valid locally but no cookie was ever issued
	claims := model.AuthClaims{Username: "alice", Exp: time.Now().Add(time.Hour).Unix()}
	require.NoError(t, f.app.Session.Set(claims))
	require.Equal(t, RouteHome, f.app.Router.Refresh())

	home, err := f.app.HomePage()
	require.NoError(t, err)

	view, err := home.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, cache.StatusError, view.Status)

	require.Equal(t, model.Anonymous(), f.app.Session.Current())
	require.Equal(t, RouteLogin, f.app.Router.Current())
}

func TestHomePage_Paginates(t *testing.T) {
	f := newFixture(t, WithPageSize(2))
	f.login(t)
	ctx := context.Background()

	form := f.app.CreateReadingForm()
	for _, link := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		_, err := form.Submit(ctx, link)
		require.NoError(t, err)
	}

	home, err := f.app.HomePage()
	require.NoError(t, err)

	first, err := home.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, cache.StatusSuccess, first.Status)
	require.Len(t, first.Data.Readings, 2)
	require.Equal(t, "https://example.com/3", first.Data.Readings[0].Link)
	require.False(t, first.HasPrev())
	require.True(t, first.HasNext())

	release := f.backend.hold()
	defer release()

	view, moved := home.Next(ctx)
	require.True(t, moved)
	require.Equal(t, first.NextToken, home.Token())
	require.True(t, view.IsPreviousData)
	require.True(t, view.IsFetching)
	require.Equal(t, first.Data, view.Data)
	require.False(t, view.HasNext())
	require.False(t, view.HasPrev())

	_, moved = home.Next(ctx)
	require.False(t, moved)

	release()
	second, err := home.Wait(ctx)
	require.NoError(t, err)
	require.False(t, second.IsPreviousData)
	require.Len(t, second.Data.Readings, 1)
	require.Equal(t, "https://example.com/1", second.Data.Readings[0].Link)
	require.True(t, second.HasPrev())
	require.False(t, second.HasNext())

	back, moved := home.Prev(ctx)
	require.True(t, moved)
	back, err = home.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Data.Readings[0].ID, back.Data.Readings[0].ID)
}

func TestCreateReadingForm(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	home, err := f.app.HomePage()
	require.NoError(t, err)
	_, err = home.Load(ctx)
	require.NoError(t, err)

	form := f.app.CreateReadingForm()
	_, err = form.Submit(ctx, "not a url")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "link must be a valid url", verr.Fields["link"])
	require.Zero(t, f.app.Alerts.Len())

	reading, err := form.Submit(ctx, "https://example.com/post")
	require.NoError(t, err)
	require.Equal(t, "example.com/post", reading.Title)

	list := f.app.Alerts.List()
	require.Len(t, list, 1)
	require.Equal(t, "example.com/post was successfully created", list[0].Message)
	require.Equal(t, HeaderReadingCreated, list[0].Header)
	require.Equal(t, model.SeveritySuccess, list[0].Severity)

	snap, ok := f.app.Cache.Peek(home.View().Key)
	require.True(t, ok)
	require.True(t, snap.IsStale)

	_, err = form.Submit(ctx, "https://example.com/post")
	require.Error(t, err)
	list = f.app.Alerts.List()
	require.Len(t, list, 2)
	require.Equal(t, "could not create reading: reading already exists for this link", list[1].Message)
	require.Equal(t, alerts.DefaultHeader, alerts.Header(list[1]))
}

func TestReadingDetail(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	created, err := f.app.CreateReadingForm().Submit(ctx, "https://example.com/post")
	require.NoError(t, err)

	detail, err := f.app.ReadingDetail(created.ID)
	require.NoError(t, err)
	require.Equal(t, cache.NewKey("reading", created.ID), detail.Key())

	reading, err := detail.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, created.ID, reading.ID)

	_, err = detail.Save(ctx, ReadingForm{Title: "  "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "title is required", verr.Fields["title"])

	form := FormFor(reading)
	form.Title = "Renamed"
	form.Started = time.Now().UTC().Truncate(time.Second)
	saved, err := detail.Save(ctx, form)
	require.NoError(t, err)
	require.Equal(t, model.StatusStarted, saved.Status)
	require.Equal(t, "https://example.com/post", saved.Link)

	before := f.backend.requests.Load()
	cached, ok := detail.Reading()
	require.True(t, ok)
	require.Equal(t, "Renamed", cached.Title)
	reading, err = detail.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "Renamed", reading.Title)
	require.Equal(t, before, f.backend.requests.Load())
}

func TestReadingDetail_NotFound(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	detail, err := f.app.ReadingDetail(999)
	require.NoError(t, err)

	_, err = detail.Load(context.Background())
	var apiErr *client.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	snap, ok := f.app.Cache.Peek(detail.Key())
	require.True(t, ok)
	require.Equal(t, cache.StatusError, snap.Status)
	require.Nil(t, snap.Data)
}

func TestNavbar_Logout(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	endpoint := f.app.API.Endpoint("reading")
	require.NotEmpty(t, f.app.API.Jar().Cookies(endpoint))

	require.NoError(t, f.app.Navbar().Logout(ctx))
	require.Equal(t, RouteLogin, f.app.Router.Current())
	require.Equal(t, model.Anonymous(), f.app.Session.Current())
	require.Empty(t, f.app.API.Jar().Cookies(endpoint))

	_, ok := f.app.Navbar().User()
	require.False(t, ok)
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newFixture(t)
	route, err := f.app.Router.Navigate("/settings")
	require.ErrorIs(t, err, ErrUnknownRoute)
	require.Equal(t, RouteLogin, route)

	route, err = f.app.Router.Navigate(RouteHome)
	require.NoError(t, err)
	require.Equal(t, RouteLogin, route)
}

func ptr[T any](v T) *T { return &v }
