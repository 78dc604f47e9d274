package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
	"epistolary-lite/internal/model"
)

const (
	HeaderReadingCreated = "Reading Created"
	HeaderReadingUpdated = "Reading Updated"
)

type CreateReadingForm struct {
	app *App
}

type createReadingInput struct {
	Link string `json:"link" validate:"required,http_url"`
}

func (a *App) CreateReadingForm() *CreateReadingForm {
	return &CreateReadingForm{app: a}
}

// Submit adds link to the reading list. On success every cached list page is
// invalidated and a success alert is added; on failure an error alert is added and
// the *client.Error returned.
func (f *CreateReadingForm) Submit(ctx context.Context, link string) (*model.Reading, error) {
	in := createReadingInput{Link: strings.TrimSpace(link)}
	if err := validateForm(&in); err != nil {
		return nil, err
	}
	if err := f.app.guard(); err != nil {
		return nil, err
	}

	rep := f.app.API.CreateReading(ctx, in.Link)
	if !rep.OK() {
		f.app.unauthorized(rep.Err)
		f.app.Alerts.Add(fmt.Sprintf("could not create reading: %s", rep.Err.Message), model.SeverityError, "")
		return nil, rep.Err
	}

	f.app.Cache.Invalidate(client.ReadingsResource)
	f.app.Alerts.Add(fmt.Sprintf("%s was successfully created", rep.Value.Title), model.SeveritySuccess, HeaderReadingCreated)
	return rep.Value, nil
}

// ReadingForm holds the editable fields of a reading.
type ReadingForm struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	Archived    time.Time `json:"archived"`
}

// FormFor returns the editable fields of r.
func FormFor(r *model.Reading) ReadingForm {
	return ReadingForm{
		Title:       r.Title,
		Description: r.Description,
		Started:     r.Started.Time,
		Finished:    r.Finished.Time,
		Archived:    r.Archived.Time,
	}
}

// ReadingDetail shows a single reading, cached under ("reading", id).
type ReadingDetail struct {
	app *App
	id  int64
	key cache.Key
}

func (a *App) ReadingDetail(id int64) (*ReadingDetail, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	return &ReadingDetail{app: a, id: id, key: cache.NewKey(client.ReadingResource, id)}, nil
}

func (d *ReadingDetail) Key() cache.Key {
	return d.key
}

func (d *ReadingDetail) loader(ctx context.Context) (any, error) {
	r, err := d.app.API.FetchReading(ctx, d.id)
	if err != nil {
		d.app.unauthorized(err)
		return nil, err
	}
	return r, nil
}

// Load returns the cached reading, fetching it when missing. A failed fetch is held
// as the entry's error and only retried when Load is called again.
func (d *ReadingDetail) Load(ctx context.Context) (*model.Reading, error) {
	if err := d.app.guard(); err != nil {
		return nil, err
	}

	snap, err := d.app.Cache.Load(ctx, d.key, d.loader)
	if err != nil {
		return nil, err
	}
	if snap.Status == cache.StatusError {
		return nil, snap.Err
	}
	r, _ := cache.Value[*model.Reading](snap)
	return r, nil
}

// Reading returns the cached reading without fetching.
func (d *ReadingDetail) Reading() (*model.Reading, bool) {
	snap, ok := d.app.Cache.Peek(d.key)
	if !ok {
		return nil, false
	}
	return cache.Value[*model.Reading](snap)
}

// Save updates the reading with form. The detail entry is overwritten with the
// server's copy and the list pages are invalidated; nothing is refetched.
func (d *ReadingDetail) Save(ctx context.Context, form ReadingForm) (*model.Reading, error) {
	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)
	if err := validateForm(&form); err != nil {
		return nil, err
	}
	if err := d.app.guard(); err != nil {
		return nil, err
	}

	rep := d.app.API.UpdateReading(ctx, &model.Reading{
		ID:          d.id,
		Title:       form.Title,
		Description: form.Description,
		Started:     model.Timestamp{Time: form.Started},
		Finished:    model.Timestamp{Time: form.Finished},
		Archived:    model.Timestamp{Time: form.Archived},
	})
	if !rep.OK() {
		d.app.unauthorized(rep.Err)
		d.app.Alerts.Add(fmt.Sprintf("could not update reading: %s", rep.Err.Message), model.SeverityError, "")
		return nil, rep.Err
	}

	d.app.Cache.SetData(d.key, rep.Value)
	d.app.Cache.Invalidate(client.ReadingsResource)
	d.app.Alerts.Add(fmt.Sprintf("%s was updated", rep.Value.Title), model.SeveritySuccess, HeaderReadingUpdated)
	return rep.Value, nil
}
