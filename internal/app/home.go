package app

import (
	"context"

	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
	"epistolary-lite/internal/model"
)

// HomePage lists the user's readings one page at a time.
type HomePage struct {
	app   *App
	pager *cache.Pager[*model.Page]
}

// HomePage returns auth.ErrLoginRequired, redirecting to the login page, unless the
// session is authenticated.
func (a *App) HomePage() (*HomePage, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}

	h := &HomePage{app: a}
	h.pager = cache.NewPager(a.Cache, client.ReadingsResource, h.list)
	return h, nil
}

func (h *HomePage) list(ctx context.Context, token string) (*model.Page, error) {
	page, err := h.app.API.ListReadings(ctx, &model.PageQuery{PageToken: token, PageSize: h.app.pageSize})
	if err != nil {
		h.app.unauthorized(err)
		return nil, err
	}
	return page, nil
}

// Load fetches the current page, waiting for it if nothing is cached yet.
func (h *HomePage) Load(ctx context.Context) (cache.PageView[*model.Page], error) {
	if err := h.app.guard(); err != nil {
		return cache.PageView[*model.Page]{}, err
	}
	return h.pager.Load(ctx)
}

// SetPage switches to the page with token without waiting for it to load.
func (h *HomePage) SetPage(ctx context.Context, token string) cache.PageView[*model.Page] {
	return h.pager.SetPage(ctx, token)
}

// Next and Prev report false when navigation is disabled: there is no token in that
// direction or the current page is still loading.
func (h *HomePage) Next(ctx context.Context) (cache.PageView[*model.Page], bool) {
	return h.pager.Next(ctx)
}

func (h *HomePage) Prev(ctx context.Context) (cache.PageView[*model.Page], bool) {
	return h.pager.Prev(ctx)
}

func (h *HomePage) Wait(ctx context.Context) (cache.PageView[*model.Page], error) {
	return h.pager.Wait(ctx)
}

func (h *HomePage) View() cache.PageView[*model.Page] {
	return h.pager.View()
}

func (h *HomePage) Subscribe() (<-chan cache.Snapshot, func()) {
	return h.pager.Subscribe()
}

func (h *HomePage) Token() string {
	return h.pager.Token()
}
