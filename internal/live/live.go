// Package live keeps the query cache in step with changes made elsewhere by listening
// on the API's updates socket.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
	"epistolary-lite/internal/hub"
	"epistolary-lite/internal/model"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

var ErrUnauthorized = errors.New("live updates require an authenticated session")

type Listener struct {
	url        string
	dialer     *websocket.Dialer
	header     http.Header
	cache      *cache.Cache
	pingPeriod time.Duration
	onUpdate   func(model.Update)
	subs       *hub.Hub[string, model.Update]
}

type Option func(*Listener)

// OnUpdate registers fn to observe every update after it has been applied to the cache.
func OnUpdate(fn func(model.Update)) Option {
	return func(l *Listener) { l.onUpdate = fn }
}

func WithPingPeriod(d time.Duration) Option {
	return func(l *Listener) { l.pingPeriod = d }
}

// New creates a listener on the updates socket of api. The socket authenticates with
// the cookies in api's jar.
func New(api *client.Client, qc *cache.Cache, userAgent string, opts ...Option) *Listener {
	u := api.Endpoint("updates")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}

	l := &Listener{
		url: u.String(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Jar:              api.Jar(),
		},
		header:     header,
		cache:      qc,
		pingPeriod: (pongWait * 9) / 10,
		subs:       hub.New[string, model.Update](),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe delivers every update after it has been applied to the cache.
func (l *Listener) Subscribe() (<-chan model.Update, func()) {
	return l.subs.Subscribe("updates", 8)
}

func (l *Listener) URL() string {
	return l.url
}

// Run applies updates until ctx is done, returning nil, or the socket fails.
func (l *Listener) Run(ctx context.Context) error {
	conn, rep, err := l.dialer.DialContext(ctx, l.url, l.header)
	if err != nil {
		if rep != nil && rep.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("could not connect to %s: %w", l.url, err)
	}
	defer conn.Close()
	log.Debug().Str("url", l.url).Msg("live updates connected")

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(l.pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := write(model.Update{Type: "ping"}); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("live updates: %w", err)
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		l.handle(data)
	}
}

func (l *Listener) handle(data []byte) {
	var msg model.Update
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Msg("could not parse live update")
		return
	}
	if msg.Type != "update" {
		return
	}

	switch msg.Event {
	case model.EventReadingCreated:
		l.cache.Invalidate(client.ReadingsResource)
	case model.EventReadingUpdated:
		reading := &model.Reading{}
		if err := json.Unmarshal(msg.Body, reading); err != nil || reading.ID == 0 {
			log.Debug().Err(err).Msg("could not parse updated reading")
			return
		}
		l.cache.SetData(cache.NewKey(client.ReadingResource, reading.ID), reading)
		l.cache.Invalidate(client.ReadingsResource)
	default:
		log.Debug().Str("event", msg.Event).Msg("ignoring unknown live update")
		return
	}

	log.Debug().Str("event", msg.Event).Msg("live update applied")
	if l.onUpdate != nil {
		l.onUpdate(msg)
	}
	l.subs.Broadcast("updates", msg)
}
