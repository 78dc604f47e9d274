// Package store is the in-memory state of the development API server, optionally
// snapshotted to a JSON file after every change.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUsernameTaken = errors.New("username already taken")
)

const (
	seqUsers     = "users"
	seqReadings  = "readings"
	stateVersion = 1
)

type Store struct {
	mu sync.RWMutex

	stateFile string
	persistMu sync.Mutex
	now       func() time.Time

	usersByID        map[int64]model.User
	userIDByUsername map[string]int64

	readingsByID   map[int64]readingRecord
	readingsByUser map[int64]map[string]int64 // userID -> link -> reading id

	seq *seqGenerator
}

type readingRecord struct {
	UserID  int64         `json:"user_id"`
	Reading model.Reading `json:"reading"`
}

type Options struct {
	StateFile string
	Now       func() time.Time
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		stateFile:        opts.StateFile,
		now:              opts.Now,
		usersByID:        make(map[int64]model.User),
		userIDByUsername: make(map[string]int64),
		readingsByID:     make(map[int64]readingRecord),
		readingsByUser:   make(map[int64]map[string]int64),
		seq:              newSeqGenerator(),
	}
	if s.now == nil {
		s.now = time.Now
	}

	if s.stateFile != "" {
		if err := s.loadFromFile(s.stateFile); err != nil {
			log.Warn().Err(err).Str("path", s.stateFile).Msg("state persistence: load failed")
		}
	}
	return s
}

type persistedStateFile struct {
	Version  int             `json:"version"`
	Users    []model.User    `json:"users"`
	Readings []readingRecord `json:"readings"`
	SavedAt  int64           `json:"savedAt"`
}

func (s *Store) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedStateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != stateVersion {
		return fmt.Errorf("unsupported state version %d", file.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range file.Users {
		if u.ID == 0 || u.Username == "" {
			continue
		}
		s.usersByID[u.ID] = u
		s.userIDByUsername[u.Username] = u.ID
		s.seq.advance(seqUsers, u.ID)
	}
	for _, r := range file.Readings {
		if r.Reading.ID == 0 || r.UserID == 0 {
			continue
		}
		s.putReadingLocked(r)
		s.seq.advance(seqReadings, r.Reading.ID)
	}
	return nil
}

func (s *Store) snapshotLocked() persistedStateFile {
	file := persistedStateFile{
		Version:  stateVersion,
		Users:    make([]model.User, 0, len(s.usersByID)),
		Readings: make([]readingRecord, 0, len(s.readingsByID)),
	}
	for _, u := range s.usersByID {
		file.Users = append(file.Users, u)
	}
	for _, r := range s.readingsByID {
		file.Readings = append(file.Readings, r)
	}
	sort.Slice(file.Users, func(i, j int) bool { return file.Users[i].ID < file.Users[j].ID })
	sort.Slice(file.Readings, func(i, j int) bool { return file.Readings[i].Reading.ID < file.Readings[j].Reading.ID })
	return file
}

// persistLocked snapshots the state while the write lock is held and writes it out
// after the caller releases the lock.
func (s *Store) persistLocked() func() {
	if s.stateFile == "" {
		return func() {}
	}
	file := s.snapshotLocked()
	return func() { s.persistSnapshot(file) }
}

func (s *Store) persistSnapshot(file persistedStateFile) {
	path := s.stateFile
	if path == "" {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("state persistence: mkdir failed")
		return
	}

	file.SavedAt = time.Now().UnixMilli()
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("state persistence: marshal failed")
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		log.Error().Err(err).Msg("state persistence: create temp failed")
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		log.Error().Err(err).Msg("state persistence: chmod temp failed")
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		log.Error().Err(err).Msg("state persistence: write temp failed")
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		log.Error().Err(err).Msg("state persistence: sync temp failed")
		return
	}
	if err := tmp.Close(); err != nil {
		log.Error().Err(err).Msg("state persistence: close temp failed")
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		log.Error().Err(err).Msg("state persistence: rename failed")
		return
	}
}
