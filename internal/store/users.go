package store

import (
	"strings"

	"epistolary-lite/internal/model"
)

// CreateUser stores a new user. Password must already be hashed.
func (s *Store) CreateUser(fullName, email, username, passwordHash string) (model.User, error) {
	username = strings.TrimSpace(username)

	s.mu.Lock()
	if _, taken := s.userIDByUsername[username]; taken {
		s.mu.Unlock()
		return model.User{}, ErrUsernameTaken
	}

	now := s.now()
	u := model.User{
		ID:       s.seq.next(seqUsers),
		FullName: fullName,
		Email:    email,
		Username: username,
		Password: passwordHash,
		Created:  now,
	}
	s.usersByID[u.ID] = u
	s.userIDByUsername[u.Username] = u.ID
	persist := s.persistLocked()
	s.mu.Unlock()

	persist()
	return u, nil
}

func (s *Store) UserByUsername(username string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByUsername[username]
	if !ok {
		return model.User{}, false
	}
	return s.usersByID[id], true
}

func (s *Store) TouchUser(id int64) {
	s.mu.Lock()
	u, ok := s.usersByID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	u.LastSeen = s.now()
	s.usersByID[id] = u
	persist := s.persistLocked()
	s.mu.Unlock()

	persist()
}
