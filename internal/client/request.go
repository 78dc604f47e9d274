package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	accept      = "application/json"
	contentType = "application/json; charset=utf-8"
)

func (c *Client) newRequest(ctx context.Context, method, path string, data any, params url.Values) (*http.Request, error) {
	endpoint := c.Endpoint(path)
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	var body io.Reader
	if data != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(data); err != nil {
			return nil, fmt.Errorf("could not serialize request data: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do executes req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) *Error {
	return c.doStatus(req, out)
}

// doStatus is do with additional status codes whose body is decoded as a success.
func (c *Client) doStatus(req *http.Request, out any, accepted ...int) *Error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return transportError(err)
		}
	}

	started := time.Now()
	rep, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("request failed")
		return transportError(err)
	}
	defer rep.Body.Close()

	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Int("status", rep.StatusCode).
		Dur("resp_time", time.Since(started)).
		Msg("api request")

	success := rep.StatusCode >= 200 && rep.StatusCode < 300
	for _, code := range accepted {
		if rep.StatusCode == code {
			success = true
		}
	}

	if !success {
		e := &Error{Success: false, StatusCode: rep.StatusCode}
		var reply Error
		if err := json.NewDecoder(rep.Body).Decode(&reply); err == nil && reply.Message != "" {
			e.Message = reply.Message
		} else {
			e.Message = http.StatusText(rep.StatusCode)
		}
		return e
	}

	if out == nil || rep.StatusCode == http.StatusNoContent {
		return nil
	}

	if mt, _, err := mime.ParseMediaType(rep.Header.Get("Content-Type")); err != nil || mt != accept {
		return &Error{Message: fmt.Sprintf("unexpected content type: %q", rep.Header.Get("Content-Type")), StatusCode: rep.StatusCode}
	}
	if err := json.NewDecoder(rep.Body).Decode(out); err != nil {
		return &Error{Message: fmt.Sprintf("could not deserialize response data: %s", err), StatusCode: rep.StatusCode}
	}
	return nil
}
