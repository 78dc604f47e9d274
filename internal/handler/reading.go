package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/fetch"
	"epistolary-lite/internal/model"
	"epistolary-lite/internal/pagination"
	"epistolary-lite/internal/store"
)

const fetchTimeout = 10 * time.Second

type ReadingHandler struct {
	Store   *store.Store
	Fetcher fetch.Fetcher
	Updates *Publisher
}

func (h *ReadingHandler) List(c *gin.Context) {
	var query model.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		errorReply(c, http.StatusBadRequest, "could not parse page query")
		return
	}

	user, ok := currentUser(c, h.Store)
	if !ok {
		return
	}

	var cursor *pagination.Cursor
	if query.PageToken != "" {
		var err error
		if cursor, err = pagination.Parse(query.PageToken); err != nil {
			errorReply(c, http.StatusBadRequest, err.Error())
			return
		}
	} else if query.PageSize > pagination.MaximumPageSize {
		errorReply(c, http.StatusBadRequest, pagination.ErrPageSizeTooLarge.Error())
		return
	} else {
		cursor = pagination.New(0, 0, query.PageSize)
	}

	readings, prev, next := h.Store.ListReadings(user.ID, cursor)
	out := &model.Page{Readings: make([]*model.Reading, 0, len(readings))}
	for i := range readings {
		out.Readings = append(out.Readings, &readings[i])
	}

	var err error
	if prev != nil {
		if out.PrevPageToken, err = prev.PageToken(); err != nil {
			internalError(c, err, "could not fetch readings")
			return
		}
	}
	if next != nil {
		if out.NextPageToken, err = next.PageToken(); err != nil {
			internalError(c, err, "could not fetch readings")
			return
		}
	}

	c.JSON(http.StatusOK, out)
}

func (h *ReadingHandler) Create(c *gin.Context) {
	var in model.Reading
	if err := c.ShouldBindJSON(&in); err != nil {
		errorReply(c, http.StatusBadRequest, "could not parse reading input")
		return
	}

	in.Link = strings.TrimSpace(in.Link)
	if in.Link == "" {
		errorReply(c, http.StatusBadRequest, "link required to create reading")
		return
	}

	if in.ID != 0 || in.Title != "" || in.Description != "" || in.Favicon != "" {
		errorReply(c, http.StatusBadRequest, "reading can only be created with a link")
		return
	}

	if u, err := url.Parse(in.Link); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errorReply(c, http.StatusBadRequest, "link must be an http or https url")
		return
	}

	user, ok := currentUser(c, h.Store)
	if !ok {
		return
	}

	doc := h.describe(c.Request.Context(), in.Link)
	reading, err := h.Store.CreateReading(user.ID, model.Reading{
		Link:        in.Link,
		Title:       doc.Title,
		Description: doc.Description,
		Favicon:     doc.Favicon,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			errorReply(c, http.StatusBadRequest, "reading already exists for this link")
			return
		}
		internalError(c, err, "could not create reading")
		return
	}

	h.Updates.Publish(user.Username, model.EventReadingCreated, &reading)
	c.JSON(http.StatusCreated, &reading)
}

// describe fetches the metadata of link, falling back to a title derived from the
// link when the page cannot be fetched.
func (h *ReadingHandler) describe(ctx context.Context, link string) *fetch.Document {
	if h.Fetcher == nil {
		return fetch.Fallback(link)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	doc, err := h.Fetcher.Fetch(ctx, link)
	if err != nil {
		log.Warn().Err(err).Str("link", link).Msg("could not fetch reading metadata")
		return fetch.Fallback(link)
	}
	if doc.Title == "" {
		doc.Title = fetch.Fallback(link).Title
	}
	return doc
}

func (h *ReadingHandler) Fetch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("readingID"), 10, 64)
	if err != nil {
		errorReply(c, http.StatusNotFound, "reading not found")
		return
	}

	user, ok := currentUser(c, h.Store)
	if !ok {
		return
	}

	reading, err := h.Store.FetchReading(user.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorReply(c, http.StatusNotFound, "reading not found")
			return
		}
		internalError(c, err, "could not process request")
		return
	}

	c.JSON(http.StatusOK, &reading)
}

// Update replaces the title, description and timestamps of a reading. The title is
// required and the link cannot be changed.
func (h *ReadingHandler) Update(c *gin.Context) {
	var in model.Reading
	if err := c.ShouldBindJSON(&in); err != nil {
		errorReply(c, http.StatusBadRequest, "could not parse reading input")
		return
	}

	id, err := strconv.ParseInt(c.Param("readingID"), 10, 64)
	if err != nil {
		errorReply(c, http.StatusNotFound, "reading not found")
		return
	}

	if in.ID == 0 {
		in.ID = id
	}
	if in.ID != id {
		errorReply(c, http.StatusBadRequest, "id must match endpoint")
		return
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		errorReply(c, http.StatusBadRequest, "title is required on update")
		return
	}

	user, ok := currentUser(c, h.Store)
	if !ok {
		return
	}

	reading, err := h.Store.UpdateReading(user.ID, in)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorReply(c, http.StatusNotFound, "reading not found")
			return
		}
		internalError(c, err, "could not update reading")
		return
	}

	h.Updates.Publish(user.Username, model.EventReadingUpdated, &reading)
	c.JSON(http.StatusOK, &reading)
}
