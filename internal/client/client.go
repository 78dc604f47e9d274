// Package client is the HTTP client for the Epistolary v1 API. Mutations resolve to a
// Result; the list and detail reads that feed the query cache return *Error as a Go
// error instead so the cache can hold it as the entry's error state.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"golang.org/x/time/rate"

	"epistolary-lite/internal/model"
	"epistolary-lite/internal/storage"
)

const DefaultUserAgent = "Epistolary API Client/v1"

// Query cache resources fed by ListReadings and FetchReading.
const (
	ReadingsResource = "readings"
	ReadingResource  = "reading"
)

type Client struct {
	endpoint  *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

type Option func(*Client) error

// WithStorage persists the cookie jar into area.
func WithStorage(area storage.Storage) Option {
	return func(c *Client) error {
		jar, err := NewJar(area)
		if err != nil {
			return err
		}
		c.http.Jar = jar
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.http.Timeout = timeout
		return nil
	}
}

// WithRateLimit spaces requests to at most perSecond, allowing bursts of burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) error {
		if perSecond <= 0 {
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		if ua != "" {
			c.userAgent = ua
		}
		return nil
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) error {
		c.http.Transport = rt
		return nil
	}
}

// New creates a client for the API rooted at endpoint, e.g. http://localhost:8000/v1.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("could not parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute url: %q", endpoint)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{endpoint: u, http: &http.Client{}, userAgent: DefaultUserAgent}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.http.Jar == nil {
		jar, err := NewJar(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Endpoint returns the absolute URL of path under the API root.
func (c *Client) Endpoint(path string) *url.URL {
	return c.endpoint.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
}

// Jar exposes the cookie jar so other transports (the live updates socket) can send
// the same credentials.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

func (c *Client) Register(ctx context.Context, in *model.RegisterRequest) Result[struct{}] {
	req, err := c.newRequest(ctx, http.MethodPost, "register", in, nil)
	if err != nil {
		return fail[struct{}](transportError(err))
	}
	if e := c.do(req, nil); e != nil {
		return fail[struct{}](e)
	}
	return succeed(struct{}{})
}

func (c *Client) Login(ctx context.Context, in *model.LoginRequest) Result[*model.LoginReply] {
	req, err := c.newRequest(ctx, http.MethodPost, "login", in, nil)
	if err != nil {
		return fail[*model.LoginReply](transportError(err))
	}

	out := &model.LoginReply{}
	if e := c.do(req, out); e != nil {
		return fail[*model.LoginReply](e)
	}
	return succeed(out)
}

func (c *Client) Logout(ctx context.Context) Result[struct{}] {
	req, err := c.newRequest(ctx, http.MethodPost, "logout", nil, nil)
	if err != nil {
		return fail[struct{}](transportError(err))
	}
	if e := c.do(req, nil); e != nil {
		return fail[struct{}](e)
	}
	return succeed(struct{}{})
}

// ListReadings fetches one page of readings. Failures are returned as *Error.
func (c *Client) ListReadings(ctx context.Context, in *model.PageQuery) (*model.Page, error) {
	var params url.Values
	if in != nil {
		var err error
		if params, err = query.Values(in); err != nil {
			return nil, &Error{Message: fmt.Sprintf("could not encode query params: %s", err)}
		}
	}

	req, err := c.newRequest(ctx, http.MethodGet, "reading", nil, params)
	if err != nil {
		return nil, transportError(err)
	}

	out := &model.Page{}
	if e := c.do(req, out); e != nil {
		return nil, e
	}
	return out, nil
}

func (c *Client) CreateReading(ctx context.Context, link string) Result[*model.Reading] {
	req, err := c.newRequest(ctx, http.MethodPost, "reading", &model.Reading{Link: link}, nil)
	if err != nil {
		return fail[*model.Reading](transportError(err))
	}

	out := &model.Reading{}
	if e := c.do(req, out); e != nil {
		return fail[*model.Reading](e)
	}
	return succeed(out)
}

// FetchReading fetches a single reading. Failures are returned as *Error.
func (c *Client) FetchReading(ctx context.Context, id int64) (*model.Reading, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "reading/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return nil, transportError(err)
	}

	out := &model.Reading{}
	if e := c.do(req, out); e != nil {
		return nil, e
	}
	return out, nil
}

// UpdateReading replaces the editable fields of a reading. The link is never changed
// by the server, so it is not sent.
func (c *Client) UpdateReading(ctx context.Context, in *model.Reading) Result[*model.Reading] {
	body := *in
	body.Link = ""

	req, err := c.newRequest(ctx, http.MethodPut, "reading/"+strconv.FormatInt(in.ID, 10), &body, nil)
	if err != nil {
		return fail[*model.Reading](transportError(err))
	}

	out := &model.Reading{}
	if e := c.do(req, out); e != nil {
		return fail[*model.Reading](e)
	}
	return succeed(out)
}

// Offline is the status reported when the server cannot be reached or answers with
// anything other than 200 or 503.
func Offline() *model.StatusReply {
	return &model.StatusReply{Status: "offline"}
}

// Status reports the server status. A 503 maintenance payload is returned as is; any
// other failure yields the offline status.
func (c *Client) Status(ctx context.Context) *model.StatusReply {
	req, err := c.newRequest(ctx, http.MethodGet, "status", nil, nil)
	if err != nil {
		return Offline()
	}

	out := &model.StatusReply{}
	if e := c.doStatus(req, out, http.StatusServiceUnavailable); e != nil {
		return Offline()
	}
	return out
}
