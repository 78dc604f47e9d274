package storage

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
)

const fileVersion = 1

// File keeps the storage area in memory and rewrites a JSON snapshot on every change.
// Snapshots are written to a temp file, synced and renamed into place so a reader
// never sees a torn document.
type File struct {
	mu     sync.RWMutex
	path   string
	values map[string]string

	persistMu sync.Mutex
}

type persistedFile struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
	SavedAt int64             `json:"savedAt"`
}

// OpenFile loads the storage area at path. A missing or empty file is an empty area;
// a corrupt file is logged and ignored so the area starts empty.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}
	if err := f.load(); err != nil {
		if errors.Is(err, errUnsupportedVersion) {
			return nil, err
		}
		log.Warn().Err(err).Str("path", path).Msg("storage file unreadable, starting empty")
	}
	return f, nil
}

var errUnsupportedVersion = errors.New("unsupported storage file version")

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != fileVersion {
		return fmt.Errorf("%w: %d", errUnsupportedVersion, file.Version)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range file.Values {
		f.values[k] = v
	}
	return nil
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	f.values[key] = value
	snapshot := f.snapshotLocked()
	f.mu.Unlock()
	return f.persist(snapshot)
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	if _, ok := f.values[key]; !ok {
		f.mu.Unlock()
		return nil
	}
	delete(f.values, key)
	snapshot := f.snapshotLocked()
	f.mu.Unlock()
	return f.persist(snapshot)
}

func (f *File) Close() error { return nil }

// Keys returns the stored keys in sorted order.
func (f *File) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *File) snapshotLocked() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f *File) persist(values map[string]string) error {
	f.persistMu.Lock()
	defer f.persistMu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(persistedFile{Version: fileVersion, Values: values, SavedAt: time.Now().UnixMilli()}, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}
