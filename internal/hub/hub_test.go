package hub

import (
	"errors"
	"testing"
)

type testWriter struct {
	writes int
	fail   bool
	closed bool
}

func (w *testWriter) Write(message []byte) error {
	w.writes++
	if w.fail {
		return errTest
	}
	return nil
}

func (w *testWriter) Close() error {
	w.closed = true
	return nil
}

var errTest = errors.New("test")

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New[string, []byte]()
	w1 := &testWriter{}
	c1 := &Connection[string, []byte]{Key: "u", Writer: w1}

	h.Register(c1)
	h.Broadcast("u", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected 1 write, got %d", w1.writes)
	}

	h.Unregister(c1)
	h.Broadcast("u", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected no more writes, got %d", w1.writes)
	}
	if h.Count("u") != 0 {
		t.Fatalf("expected no connections left")
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New[string, []byte]()
	w1 := &testWriter{fail: true}
	c1 := &Connection[string, []byte]{Key: "u", Writer: w1}
	h.Register(c1)

	h.Broadcast("u", []byte("x"))
	h.Broadcast("u", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected only 1 write before removal, got %d", w1.writes)
	}
	if !w1.closed {
		t.Fatalf("expected failed writer to be closed")
	}
}

func TestHub_BroadcastIsScopedToKey(t *testing.T) {
	h := New[string, []byte]()
	a, b := &testWriter{}, &testWriter{}
	h.Register(&Connection[string, []byte]{Key: "a", Writer: a})
	h.Register(&Connection[string, []byte]{Key: "b", Writer: b})

	h.Broadcast("a", []byte("x"))
	if a.writes != 1 || b.writes != 0 {
		t.Fatalf("expected only a to receive, got a=%d b=%d", a.writes, b.writes)
	}
}

func TestHub_SubscribeKeepsLatest(t *testing.T) {
	h := New[string, int]()
	ch, cancel := h.Subscribe("k", 1)

	h.Broadcast("k", 1)
	h.Broadcast("k", 2)
	if got := <-ch; got != 2 {
		t.Fatalf("expected latest message 2, got %d", got)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	if h.Count("k") != 0 {
		t.Fatalf("expected subscription unregistered")
	}
}
