// Package cache is a keyed query cache for list and detail reads. Entries are served
// stale while they revalidate in the background, every key has at most one loader in
// flight, and failed loads are recorded rather than retried.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"epistolary-lite/internal/hub"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Key identifies an entry, e.g. ("readings", pageToken) or ("reading", "42").
type Key struct {
	Resource      string
	Discriminator string
}

func NewKey(resource string, discriminator any) Key {
	return Key{Resource: resource, Discriminator: fmt.Sprint(discriminator)}
}

func (k Key) String() string {
	return k.Resource + "/" + k.Discriminator
}

type Snapshot struct {
	Key        Key
	Status     Status
	Data       any
	Err        error
	IsFetching bool
	IsStale    bool
	FetchedAt  time.Time
}

// Value returns the snapshot data as a T.
func Value[T any](s Snapshot) (T, bool) {
	v, ok := s.Data.(T)
	return v, ok
}

type Loader func(ctx context.Context) (any, error)

type entry struct {
	status      Status
	data        any
	err         error
	fetchedAt   time.Time
	invalidated bool
	fetching    bool
	gen         uint64
	done        chan struct{}
}

type Cache struct {
	mu sync.Mutex
	// notify is taken before mu is released so broadcasts leave in the order the
	// changes were made.
	notify    sync.Mutex
	gen       uint64
	entries   map[Key]*entry
	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
	subs      *hub.Hub[string, Snapshot]
}

type Option func(*Cache)

// WithStaleTime sets how long a successful entry is served without revalidating.
// The default of zero revalidates on every fetch.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]*entry),
		now:     time.Now,
		subs:    hub.New[string, Snapshot](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the current snapshot for key without blocking. A missing, stale or
// failed entry starts loader in the background unless a load for key is already in
// flight; a fresh entry is returned as is.
//
// The loader runs detached from ctx's cancellation so that moving on to another key
// never aborts a request that is already out.
func (c *Cache) Fetch(ctx context.Context, key Key, loader Loader) Snapshot {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{status: StatusPending}
		c.entries[key] = e
	}

	start := !e.fetching && !c.freshLocked(e)
	if start {
		c.startLocked(ctx, key, e, loader)
	}
	snap := e.snapshot(key)
	if !start {
		c.mu.Unlock()
		return snap
	}
	c.publishUnlock(key.Resource, snap)
	return snap
}

// Load is Fetch that blocks until the entry holds a result when it has none yet.
// Stale data is returned immediately while it revalidates.
func (c *Cache) Load(ctx context.Context, key Key, loader Loader) (Snapshot, error) {
	for {
		snap := c.Fetch(ctx, key, loader)
		if snap.Status == StatusSuccess || !snap.IsFetching {
			return snap, nil
		}

		snap, err := c.Wait(ctx, key)
		if err != nil {
			return snap, err
		}
		// pending here means the load was abandoned by an invalidation
		if snap.Status != StatusPending {
			return snap, nil
		}
	}
}

// Wait blocks until key has no load in flight.
func (c *Cache) Wait(ctx context.Context, key Key) (Snapshot, error) {
	for {
		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok {
			c.mu.Unlock()
			return Snapshot{Key: key, Status: StatusPending}, nil
		}
		if !e.fetching {
			snap := e.snapshot(key)
			c.mu.Unlock()
			return snap, nil
		}
		done := e.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// Peek returns the snapshot for key without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(key), true
}

// SetData overwrites the entry for key with a successful result. A load in flight for
// key is abandoned and its result will not be applied.
func (c *Cache) SetData(key Key, data any) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	c.abandonLocked(key, e)
	e.status = StatusSuccess
	e.data = data
	e.err = nil
	e.fetchedAt = c.now()
	e.invalidated = false
	c.publishUnlock(key.Resource, e.snapshot(key))
}

// Invalidate marks every entry of resource stale so the next fetch goes to the server.
// Loads in flight for those entries are abandoned.
func (c *Cache) Invalidate(resource string) {
	c.mu.Lock()
	var snaps []Snapshot
	for key, e := range c.entries {
		if key.Resource != resource {
			continue
		}
		c.abandonLocked(key, e)
		e.invalidated = true
		snaps = append(snaps, e.snapshot(key))
	}
	log.Debug().Str("resource", resource).Int("entries", len(snaps)).Msg("cache invalidated")
	c.publishUnlock(resource, snaps...)
}

// Remove drops the entry for key.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.abandonLocked(key, e)
		delete(c.entries, key)
	}
}

// Reset drops every entry, abandoning loads in flight.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		c.abandonLocked(key, e)
	}
	c.entries = make(map[Key]*entry)
}

// Subscribe delivers a snapshot every time an entry of resource changes, in the order
// the changes were made. A slow subscriber only keeps the latest snapshots.
func (c *Cache) Subscribe(resource string) (<-chan Snapshot, func()) {
	return c.subs.Subscribe(resource, 16)
}

func (c *Cache) freshLocked(e *entry) bool {
	if e.status != StatusSuccess || e.invalidated || c.staleTime <= 0 {
		return false
	}
	return c.now().Sub(e.fetchedAt) < c.staleTime
}

func (c *Cache) startLocked(ctx context.Context, key Key, e *entry, loader Loader) {
	c.gen++
	e.gen = c.gen
	e.fetching = true
	e.done = make(chan struct{})
	gen := e.gen
	detached := context.WithoutCancel(ctx)

	go func() {
		data, err, _ := c.group.Do(key.String(), func() (any, error) {
			return loader(detached)
		})
		c.resolve(key, gen, data, err)
	}()
}

func (c *Cache) resolve(key Key, gen uint64, data any, err error) {
	c.mu.Lock()
	// Generations are unique across the cache, so a load started before the entry
	// was removed or reset never matches its replacement.
	e, ok := c.entries[key]
	if !ok || e.gen != gen || !e.fetching {
		c.mu.Unlock()
		log.Debug().Str("key", key.String()).Msg("discarding abandoned load")
		return
	}

	if err != nil {
		e.status = StatusError
		e.data = nil
		e.err = err
	} else {
		e.status = StatusSuccess
		e.data = data
		e.err = nil
		e.invalidated = false
	}
	e.fetchedAt = c.now()
	e.fetching = false
	close(e.done)
	c.publishUnlock(key.Resource, e.snapshot(key))
}

// publishUnlock releases c.mu and broadcasts snaps ahead of any later change.
func (c *Cache) publishUnlock(resource string, snaps ...Snapshot) {
	c.notify.Lock()
	c.mu.Unlock()
	defer c.notify.Unlock()

	for _, snap := range snaps {
		c.subs.Broadcast(resource, snap)
	}
}

// abandonLocked detaches the in-flight load of e, if any, and wakes its waiters.
func (c *Cache) abandonLocked(key Key, e *entry) {
	if e.fetching {
		c.group.Forget(key.String())
		e.fetching = false
		close(e.done)
		if e.status == StatusPending {
			e.invalidated = true
		}
	}
	c.gen++
	e.gen = c.gen
}

func (e *entry) snapshot(key Key) Snapshot {
	return Snapshot{
		Key:        key,
		Status:     e.status,
		Data:       e.data,
		Err:        e.err,
		IsFetching: e.fetching,
		IsStale:    e.invalidated,
		FetchedAt:  e.fetchedAt,
	}
}
