package store

import (
	"sort"

	"epistolary-lite/internal/model"
	"epistolary-lite/internal/pagination"
)

// CreateReading adds a reading of in.Link for userID. Each user can queue a link once.
func (s *Store) CreateReading(userID int64, in model.Reading) (model.Reading, error) {
	s.mu.Lock()
	if _, exists := s.readingsByUser[userID][in.Link]; exists {
		s.mu.Unlock()
		return model.Reading{}, ErrAlreadyExists
	}

	now := model.Timestamp{Time: s.now()}
	r := model.Reading{
		ID:          s.seq.next(seqReadings),
		Link:        in.Link,
		Title:       in.Title,
		Description: in.Description,
		Favicon:     in.Favicon,
		Created:     now,
		Modified:    now,
	}
	r.Status = r.DeriveStatus()
	s.putReadingLocked(readingRecord{UserID: userID, Reading: r})
	persist := s.persistLocked()
	s.mu.Unlock()

	persist()
	return r, nil
}

func (s *Store) FetchReading(userID, id int64) (model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.readingsByID[id]
	if !ok || rec.UserID != userID {
		return model.Reading{}, ErrNotFound
	}
	return rec.Reading, nil
}

// UpdateReading replaces the editable fields of a reading: title, description and the
// started, finished and archived timestamps. The link never changes.
func (s *Store) UpdateReading(userID int64, in model.Reading) (model.Reading, error) {
	s.mu.Lock()
	rec, ok := s.readingsByID[in.ID]
	if !ok || rec.UserID != userID {
		s.mu.Unlock()
		return model.Reading{}, ErrNotFound
	}

	r := rec.Reading
	r.Title = in.Title
	r.Description = in.Description
	r.Started = in.Started
	r.Finished = in.Finished
	r.Archived = in.Archived
	r.Status = r.DeriveStatus()
	r.Modified = model.Timestamp{Time: s.now()}
	rec.Reading = r
	s.readingsByID[r.ID] = rec
	persist := s.persistLocked()
	s.mu.Unlock()

	persist()
	return r, nil
}

// ListReadings returns the page of userID's readings selected by cursor, newest first,
// with the cursors of the neighbouring pages when they exist.
func (s *Store) ListReadings(userID int64, cursor *pagination.Cursor) (page []model.Reading, prev, next *pagination.Cursor) {
	if cursor == nil {
		cursor = pagination.New(0, 0, 0)
	}
	size := int(cursor.Size)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.readingsByUser[userID]))
	for _, id := range s.readingsByUser[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	var lo, hi int
	switch {
	case cursor.End != 0:
		lo = sort.Search(len(ids), func(i int) bool { return ids[i] < cursor.End })
		hi = min(lo+size, len(ids))
	case cursor.Start != 0:
		hi = sort.Search(len(ids), func(i int) bool { return ids[i] <= cursor.Start })
		lo = max(hi-size, 0)
	default:
		hi = min(size, len(ids))
	}

	page = make([]model.Reading, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		page = append(page, s.readingsByID[id].Reading)
	}

	if len(page) > 0 {
		if lo > 0 {
			prev = pagination.After(page[0].ID, cursor.Size)
		}
		if hi < len(ids) {
			next = pagination.Before(page[len(page)-1].ID, cursor.Size)
		}
	}
	return page, prev, next
}

func (s *Store) putReadingLocked(rec readingRecord) {
	s.readingsByID[rec.Reading.ID] = rec
	if s.readingsByUser[rec.UserID] == nil {
		s.readingsByUser[rec.UserID] = make(map[string]int64)
	}
	s.readingsByUser[rec.UserID][rec.Reading.Link] = rec.Reading.ID
}
