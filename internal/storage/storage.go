// Package storage provides the key/value storage area that backs client-side session
// state. It plays the part of browser session storage: one value per fixed key,
// readable synchronously after every write.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownScheme = errors.New("unknown storage scheme")

// Storage is a string key/value area. Implementations must make every Set visible to
// the next Get and must never expose a partially written value.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open creates a storage area from a URL of the form memory:, file:<path> or sqlite:<path>.
func Open(rawURL string) (Storage, error) {
	scheme, path, _ := strings.Cut(rawURL, ":")
	switch scheme {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		if path == "" {
			return nil, errors.New("file storage requires a path")
		}
		f, err := OpenFile(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "sqlite":
		if path == "" {
			return nil, errors.New("sqlite storage requires a path")
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}
