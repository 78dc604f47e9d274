package cache

import (
	"context"
	"sync"
)

// Paged is implemented by page payloads that carry cursors to their neighbours.
type Paged interface {
	PageTokens() (prev, next string)
}

// PageView is what a paginated view renders. While a newly selected page loads, Data
// keeps the last page that loaded successfully and IsPreviousData is set.
type PageView[P Paged] struct {
	Key            Key
	Status         Status
	Data           P
	HasData        bool
	Err            error
	IsFetching     bool
	IsPreviousData bool
	PrevToken      string
	NextToken      string
}

// HasPrev reports whether the previous page can be requested right now.
func (v PageView[P]) HasPrev() bool {
	return v.PrevToken != "" && !v.IsFetching
}

// HasNext reports whether the next page can be requested right now.
func (v PageView[P]) HasNext() bool {
	return v.NextToken != "" && !v.IsFetching
}

// Pager walks a paginated resource one page token at a time. Only the entry for the
// current token is ever rendered, so a page that resolves after the user has moved on
// lands in its own entry and is never shown in place of the current one.
type Pager[P Paged] struct {
	cache    *Cache
	resource string
	load     func(ctx context.Context, token string) (P, error)

	mu      sync.Mutex
	token   string
	last    P
	hasLast bool
}

func NewPager[P Paged](c *Cache, resource string, load func(ctx context.Context, token string) (P, error)) *Pager[P] {
	return &Pager[P]{cache: c, resource: resource, load: load}
}

func (p *Pager[P]) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *Pager[P]) Key() Key {
	return NewKey(p.resource, p.Token())
}

// SetPage switches to token and starts fetching it. The returned view keeps showing
// the previous page until the new one resolves.
func (p *Pager[P]) SetPage(ctx context.Context, token string) PageView[P] {
	p.remember(p.Key())

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	p.cache.Fetch(ctx, NewKey(p.resource, token), p.loader(token))
	return p.View()
}

// Next moves to the next page if the current view allows it.
func (p *Pager[P]) Next(ctx context.Context) (PageView[P], bool) {
	view := p.View()
	if !view.HasNext() {
		return view, false
	}
	return p.SetPage(ctx, view.NextToken), true
}

// Prev moves to the previous page if the current view allows it.
func (p *Pager[P]) Prev(ctx context.Context) (PageView[P], bool) {
	view := p.View()
	if !view.HasPrev() {
		return view, false
	}
	return p.SetPage(ctx, view.PrevToken), true
}

// Load fetches the current page, waiting for it when nothing is cached yet. If the
// page changes while waiting, the view for the new page is returned.
func (p *Pager[P]) Load(ctx context.Context) (PageView[P], error) {
	token := p.Token()
	if _, err := p.cache.Load(ctx, NewKey(p.resource, token), p.loader(token)); err != nil {
		return PageView[P]{}, err
	}
	return p.View(), nil
}

// Wait blocks until the current page has no load in flight.
func (p *Pager[P]) Wait(ctx context.Context) (PageView[P], error) {
	if _, err := p.cache.Wait(ctx, p.Key()); err != nil {
		return PageView[P]{}, err
	}
	return p.View(), nil
}

// Subscribe delivers the cache snapshots of the paginated resource; call View on each
// to get what should be rendered.
func (p *Pager[P]) Subscribe() (<-chan Snapshot, func()) {
	return p.cache.Subscribe(p.resource)
}

func (p *Pager[P]) View() PageView[P] {
	key := p.Key()
	snap, ok := p.cache.Peek(key)
	view := PageView[P]{Key: key, Status: StatusPending}
	if ok {
		view.Status = snap.Status
		view.Err = snap.Err
		view.IsFetching = snap.IsFetching
	}

	if ok && snap.Status == StatusSuccess {
		if data, isPage := Value[P](snap); isPage {
			p.keep(data)
			view.Data = data
			view.HasData = true
			view.PrevToken, view.NextToken = data.PageTokens()
			return view
		}
	}

	if view.Status == StatusPending {
		p.mu.Lock()
		if p.hasLast {
			view.Data = p.last
			view.HasData = true
			view.IsPreviousData = true
		}
		p.mu.Unlock()
	}
	return view
}

func (p *Pager[P]) remember(key Key) {
	snap, ok := p.cache.Peek(key)
	if !ok || snap.Status != StatusSuccess {
		return
	}
	if data, isPage := Value[P](snap); isPage {
		p.keep(data)
	}
}

func (p *Pager[P]) keep(data P) {
	p.mu.Lock()
	p.last = data
	p.hasLast = true
	p.mu.Unlock()
}

func (p *Pager[P]) loader(token string) Loader {
	return func(ctx context.Context) (any, error) {
		return p.load(ctx, token)
	}
}
