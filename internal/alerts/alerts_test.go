package alerts

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"epistolary-lite/internal/model"
)

func messages(alerts []model.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Message)
	}
	return out
}

func waitForLen(t *testing.T, q *Queue, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for q.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d alerts, got %d", n, q.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueue_AddDefaultsAndOrder(t *testing.T) {
	q := New(0)

	first := q.Add("one", "", "")
	second := q.Add("two", model.SeveritySuccess, "Reading Created")
	if second <= first {
		t.Fatalf("expected increasing ids, got %d then %d", first, second)
	}

	list := q.List()
	if got := messages(list); !slices.Equal(got, []string{"one", "two"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if list[0].Severity != model.SeverityError {
		t.Fatalf("expected default severity error, got %q", list[0].Severity)
	}
	if Header(list[0]) != DefaultHeader {
		t.Fatalf("expected default header, got %q", Header(list[0]))
	}
	if Header(list[1]) != "Reading Created" {
		t.Fatalf("expected custom header, got %q", Header(list[1]))
	}
}

func TestQueue_DismissKeepsOrderAndNeverReusesIDs(t *testing.T) {
	q := New(0)
	a := q.Error("a")
	b := q.Error("b")
	c := q.Error("c")

	q.Dismiss(b)
	q.Dismiss(b)
	q.Dismiss(999)
	if got := messages(q.List()); !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("unexpected alerts after dismiss: %v", got)
	}

	q.Dismiss(c)
	d := q.Error("d")
	if d <= c || d == a {
		t.Fatalf("id %d reused or out of order (a=%d c=%d)", d, a, c)
	}
	if got := messages(q.List()); !slices.Equal(got, []string{"a", "d"}) {
		t.Fatalf("unexpected alerts: %v", got)
	}
}

func TestQueue_AutoExpiry(t *testing.T) {
	q := New(20 * time.Millisecond)
	defer q.Close()

	q.Error("expires")
	if q.Len() != 1 {
		t.Fatalf("expected 1 alert, got %d", q.Len())
	}
	waitForLen(t, q, 0)
}

func TestQueue_ManualDismissBeforeExpiry(t *testing.T) {
	q := New(50 * time.Millisecond)
	defer q.Close()

	id := q.Error("gone")
	keep := q.Error("later")
	q.Dismiss(id)
	if got := messages(q.List()); !slices.Equal(got, []string{"later"}) {
		t.Fatalf("unexpected alerts: %v", got)
	}

	waitForLen(t, q, 0)
	q.Dismiss(keep)
}

func TestQueue_Subscribe(t *testing.T) {
	q := New(0)
	ch, cancel := q.Subscribe()
	defer cancel()

	q.Error("x")
	if got := messages(<-ch); !slices.Equal(got, []string{"x"}) {
		t.Fatalf("unexpected broadcast: %v", got)
	}
}

func TestQueue_SubscribeEndsOnFinalList(t *testing.T) {
	q := New(0)
	ch, cancel := q.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := q.Error(fmt.Sprintf("alert %d", i))
			if i%2 == 0 {
				q.Dismiss(id)
			}
		}(i)
	}
	wg.Wait()

	var last []model.Alert
	for drained := false; !drained; {
		select {
		case list := <-ch:
			last = list
		default:
			drained = true
		}
	}

	if got, want := messages(last), messages(q.List()); !slices.Equal(got, want) {
		t.Fatalf("last broadcast %v does not match final list %v", got, want)
	}
}
