package hub

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("subscription closed")

// Subscription is a Writer that delivers into a buffered channel without blocking the
// broadcaster. When the buffer is full the oldest pending message is dropped so a slow
// reader always ends up holding the latest one.
type Subscription[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

func NewSubscription[T any](buffer int) *Subscription[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscription[T]{ch: make(chan T, buffer)}
}

func (s *Subscription[T]) C() <-chan T { return s.ch }

func (s *Subscription[T]) Write(message T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for {
		select {
		case s.ch <- message:
			return nil
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *Subscription[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}
