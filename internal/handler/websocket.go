package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/hub"
	"epistolary-lite/internal/middleware"
	"epistolary-lite/internal/model"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Publisher fans reading events out to the update sockets of a user.
type Publisher struct {
	Hub *hub.Hub[string, []byte]
}

func NewPublisher() *Publisher {
	return &Publisher{Hub: hub.New[string, []byte]()}
}

// Publish is a no-op on a nil Publisher.
func (p *Publisher) Publish(username, event string, body any) {
	if p == nil || p.Hub == nil {
		return
	}

	data, err := json.Marshal(body)
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("could not marshal update")
		return
	}

	out, _ := json.Marshal(model.Update{Type: "update", Event: event, Body: data})
	p.Hub.Broadcast(username, out)
}

type UpdatesHandler struct {
	Updates *Publisher
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes data frames; gorilla connections allow one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *UpdatesHandler) Serve(c *gin.Context) {
	username, ok := middleware.UsernameFromContext(c)
	if !ok {
		errorReply(c, http.StatusUnauthorized, "this endpoint requires authentication")
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := &hub.Connection[string, []byte]{Key: username, Writer: &wsWriter{conn: ws}}
	h.Updates.Hub.Register(conn)
	defer func() {
		h.Updates.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(64 * 1024)
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	log.Debug().Str("username", username).Msg("updates socket connected")
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("username", username).Msg("updates socket closed")
			return
		}

		var msg model.Update
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type == "ping" {
			out, _ := json.Marshal(model.Update{Type: "pong"})
			_ = conn.Writer.Write(out)
		}
	}
}
