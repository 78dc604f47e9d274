// Package alerts holds the transient notifications shown to the user.
package alerts

import (
	"sync"
	"time"

	"epistolary-lite/internal/hub"
	"epistolary-lite/internal/model"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultHeader  = "An Error Occurred"
)

// Queue is an insertion-ordered list of alerts. Ids increase strictly and are never
// reused; each alert removes itself after the display timeout unless dismissed first.
type Queue struct {
	mu sync.Mutex
	// notify orders broadcasts the same way mu orders changes.
	notify  sync.Mutex
	nextID  int64
	alerts  []*model.Alert
	timers  map[int64]*time.Timer
	timeout time.Duration
	now     func() time.Time
	subs    *hub.Hub[string, []model.Alert]
}

func New(timeout time.Duration) *Queue {
	if timeout < 0 {
		timeout = 0
	}
	return &Queue{
		timers:  make(map[int64]*time.Timer),
		timeout: timeout,
		now:     time.Now,
		subs:    hub.New[string, []model.Alert](),
	}
}

// Add appends an alert and returns its id. Severity defaults to error. A zero timeout
// disables auto-expiry.
func (q *Queue) Add(message string, severity model.Severity, header string) int64 {
	if severity == "" {
		severity = model.SeverityError
	}

	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.alerts = append(q.alerts, &model.Alert{
		ID:       id,
		Message:  message,
		Severity: severity,
		Header:   header,
		Created:  q.now(),
	})
	if q.timeout > 0 {
		q.timers[id] = time.AfterFunc(q.timeout, func() { q.Dismiss(id) })
	}
	q.publishUnlock()
	return id
}

// Error is Add with error severity and the default header.
func (q *Queue) Error(message string) int64 {
	return q.Add(message, model.SeverityError, "")
}

// Dismiss removes the alert with id. Unknown ids are ignored.
func (q *Queue) Dismiss(id int64) {
	q.mu.Lock()
	idx := -1
	for i, a := range q.alerts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return
	}

	q.alerts = append(q.alerts[:idx], q.alerts[idx+1:]...)
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	q.publishUnlock()
}

// publishUnlock releases q.mu and broadcasts the current list before any later change
// can broadcast its own.
func (q *Queue) publishUnlock() {
	list := q.listLocked()
	q.notify.Lock()
	q.mu.Unlock()
	defer q.notify.Unlock()
	q.subs.Broadcast("alerts", list)
}

// List returns a copy of the alerts in display order.
func (q *Queue) List() []model.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.listLocked()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.alerts)
}

// Subscribe delivers the full alert list after every change.
func (q *Queue) Subscribe() (<-chan []model.Alert, func()) {
	return q.subs.Subscribe("alerts", 4)
}

// Close stops every pending expiry timer.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) listLocked() []model.Alert {
	out := make([]model.Alert, 0, len(q.alerts))
	for _, a := range q.alerts {
		out = append(out, *a)
	}
	return out
}

// Header returns the header to render for a, falling back to DefaultHeader.
func Header(a model.Alert) string {
	if a.Header == "" {
		return DefaultHeader
	}
	return a.Header
}
