package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"epistolary-lite/internal/model"
	"epistolary-lite/internal/storage"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/v1", opts...)
	require.NoError(t, err)
	return c
}

func TestLogin_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/login", r.URL.Path)
		writeJSON(w, http.StatusUnauthorized, model.Reply{Success: false, Error: "invalid credentials"})
	}))

	rep := c.Login(context.Background(), &model.LoginRequest{Username: "alice", Password: "wrong"})
	require.False(t, rep.OK())
	require.Equal(t, &Error{Success: false, Message: "invalid credentials", StatusCode: http.StatusUnauthorized}, rep.Err)
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in model.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "alice", in.Username)
		require.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, model.LoginReply{AccessToken: "tok"})
	}))

	rep := c.Login(context.Background(), &model.LoginRequest{Username: "alice", Password: "secret"})
	require.True(t, rep.OK())
	require.Equal(t, "tok", rep.Value.AccessToken)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base + "/v1")
	require.NoError(t, err)

	rep := c.CreateReading(context.Background(), "https://example.com")
	require.False(t, rep.OK())
	require.Zero(t, rep.Err.StatusCode)
	require.True(t, rep.Err.Transport())
	require.NotEmpty(t, rep.Err.Message)

	_, err = c.ListReadings(context.Background(), nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Zero(t, apiErr.StatusCode)

	require.Equal(t, Offline(), c.Status(context.Background()))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		code int
		body any
		want *model.StatusReply
	}{
		{"ok", http.StatusOK, model.StatusReply{Status: "ok", Uptime: "1m", Version: "1.2.0"}, &model.StatusReply{Status: "ok", Uptime: "1m", Version: "1.2.0"}},
		{"maintenance", http.StatusServiceUnavailable, model.StatusReply{Status: "maintenance", Version: "1.2.0"}, &model.StatusReply{Status: "maintenance", Version: "1.2.0"}},
		{"failure", http.StatusInternalServerError, model.Reply{Error: "boom"}, Offline()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.code, tc.body)
			}))
			require.Equal(t, tc.want, c.Status(context.Background()))
		})
	}
}

func TestListReadings_QueryAndError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page_token") {
		case "tok2":
			writeJSON(w, http.StatusOK, model.Page{Readings: []*model.Reading{{ID: 3, Link: "https://c.example"}}, PrevPageToken: "tok1"})
		default:
			writeJSON(w, http.StatusBadRequest, model.Reply{Error: "invalid page token"})
		}
	}))

	page, err := c.ListReadings(context.Background(), &model.PageQuery{PageToken: "tok2"})
	require.NoError(t, err)
	require.Len(t, page.Readings, 1)
	require.Equal(t, "tok1", page.PrevPageToken)

	_, err = c.ListReadings(context.Background(), &model.PageQuery{PageToken: "bad"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "invalid page token", apiErr.Message)
	require.EqualError(t, err, "[400] invalid page token")
}

func TestFetchReading_NonJSONError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))

	_, err := c.FetchReading(context.Background(), 7)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func TestUpdateReading_OmitsLink(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/v1/reading/4", r.URL.Path)

		var in model.Reading
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Empty(t, in.Link)
		in.Link = "https://a.example"
		writeJSON(w, http.StatusOK, in)
	}))

	rep := c.UpdateReading(context.Background(), &model.Reading{ID: 4, Link: "https://changed.example", Title: "A"})
	require.True(t, rep.OK())
	require.Equal(t, "https://a.example", rep.Value.Link)
	require.Equal(t, "A", rep.Value.Title)
}

func TestJar_PersistsAcrossClients(t *testing.T) {
	area := storage.NewMemory()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "tok", Path: "/", MaxAge: 3600, HttpOnly: true})
		writeJSON(w, http.StatusOK, model.LoginReply{AccessToken: "tok"})
	})
	mux.HandleFunc("/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/reading/1", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("access_token"); err != nil || ck.Value != "tok" {
			writeJSON(w, http.StatusUnauthorized, model.Reply{Error: "login required"})
			return
		}
		writeJSON(w, http.StatusOK, model.Reading{ID: 1, Link: "https://a.example"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	first, err := New(srv.URL+"/v1", WithStorage(area))
	require.NoError(t, err)
	require.True(t, first.Login(context.Background(), &model.LoginRequest{Username: "a", Password: "b"}).OK())

	second, err := New(srv.URL+"/v1", WithStorage(area))
	require.NoError(t, err)
	reading, err := second.FetchReading(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), reading.ID)

	require.True(t, second.Logout(context.Background()).OK())

	third, err := New(srv.URL+"/v1", WithStorage(area))
	require.NoError(t, err)
	_, err = third.FetchReading(context.Background(), 1)
	require.Error(t, err)
}

func TestJar_DropsExpiredOnLoad(t *testing.T) {
	area := storage.NewMemory()
	jar, err := NewJar(area)
	require.NoError(t, err)

	u, _ := url.Parse("http://example.com/v1/login")
	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1", Path: "/", Expires: time.Now().Add(time.Hour)}})

	reloaded, err := NewJar(area)
	require.NoError(t, err)
	require.Len(t, reloaded.Cookies(u), 1)

	later, err := newJar(area, func() time.Time { return time.Now().Add(2 * time.Hour) })
	require.NoError(t, err)
	require.Empty(t, later.Cookies(u))
}

func TestDefaultPath(t *testing.T) {
	require.Equal(t, "/", defaultPath(""))
	require.Equal(t, "/", defaultPath("/login"))
	require.Equal(t, "/v1", defaultPath("/v1/login"))
}

func TestRateLimit(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusOK, model.StatusReply{Status: "ok"})
	}), WithRateLimit(1000, 1))

	for i := 0; i < 3; i++ {
		require.Equal(t, "ok", c.Status(context.Background()).Status)
	}
	require.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, Offline(), c.Status(ctx))
}

func TestNew_RejectsRelativeEndpoint(t *testing.T) {
	_, err := New("/v1")
	require.Error(t, err)
}
