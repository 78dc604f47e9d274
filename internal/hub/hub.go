// Package hub fans messages out to the connections registered under a key.
package hub

import "sync"

type Writer[T any] interface {
	Write(message T) error
	Close() error
}

type Connection[K comparable, T any] struct {
	Key    K
	Writer Writer[T]
}

type Hub[K comparable, T any] struct {
	mu          sync.RWMutex
	connections map[K]map[*Connection[K, T]]struct{}
}

func New[K comparable, T any]() *Hub[K, T] {
	return &Hub[K, T]{connections: make(map[K]map[*Connection[K, T]]struct{})}
}

func (h *Hub[K, T]) Register(conn *Connection[K, T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.Key] == nil {
		h.connections[conn.Key] = make(map[*Connection[K, T]]struct{})
	}
	h.connections[conn.Key][conn] = struct{}{}
}

func (h *Hub[K, T]) Unregister(conn *Connection[K, T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.Key]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.Key)
	}
}

// Count reports how many connections are registered under key.
func (h *Hub[K, T]) Count(key K) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[key])
}

// Broadcast writes message to every connection under key. Connections whose writer
// fails are closed and unregistered.
func (h *Hub[K, T]) Broadcast(key K, message T) {
	h.mu.RLock()
	set := h.connections[key]
	conns := make([]*Connection[K, T], 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection[K, T]
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

// Subscribe registers a channel-backed connection under key. The returned cancel
// function unregisters it and closes the channel.
func (h *Hub[K, T]) Subscribe(key K, buffer int) (<-chan T, func()) {
	sub := NewSubscription[T](buffer)
	conn := &Connection[K, T]{Key: key, Writer: sub}
	h.Register(conn)

	var once sync.Once
	return sub.C(), func() {
		once.Do(func() {
			h.Unregister(conn)
			_ = sub.Close()
		})
	}
}
