package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head>
  <title>
    Go Concurrency   Patterns
  </title>
  <meta name="description" content="Pipelines and cancellation">
  <link rel="icon" href="/static/icon.png">
</head><body><title>not this</title></body></html>`

func TestParse(t *testing.T) {
	base, _ := url.Parse("https://blog.example/pipelines")
	doc, err := Parse(strings.NewReader(page), base)
	require.NoError(t, err)
	require.Equal(t, "Go Concurrency Patterns", doc.Title)
	require.Equal(t, "Pipelines and cancellation", doc.Description)
	require.Equal(t, "https://blog.example/static/icon.png", doc.Favicon)
}

func TestParse_DefaultFavicon(t *testing.T) {
	base, _ := url.Parse("https://blog.example/a/b")
	doc, err := Parse(strings.NewReader("<title>x</title>"), base)
	require.NoError(t, err)
	require.Equal(t, "https://blog.example/favicon.ico", doc.Favicon)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		require.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := New(time.Second)
	doc, err := f.Fetch(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	require.Equal(t, "Go Concurrency Patterns", doc.Title)
	require.Equal(t, srv.URL+"/post", doc.Link)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	var httpErr HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestFallback(t *testing.T) {
	require.Equal(t, "example.com/post", Fallback("https://example.com/post").Title)
	require.Equal(t, "example.com", Fallback("https://example.com/").Title)
	require.Equal(t, "not a url", Fallback("not a url").Title)
}
