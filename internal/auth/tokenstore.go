package auth

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/model"
	"epistolary-lite/internal/storage"
)

// StorageKey is the storage area key holding the serialized claims.
const StorageKey = "epistolaryAuthUser"

// TokenStore persists the current claim set in a storage area.
type TokenStore struct {
	mu   sync.Mutex
	area storage.Storage
}

func NewTokenStore(area storage.Storage) *TokenStore {
	return &TokenStore{area: area}
}

// Read returns the stored claims, or the anonymous sentinel when the area is empty,
// unreadable or holds something that does not parse.
func (s *TokenStore) Read() model.AuthClaims {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *TokenStore) readLocked() model.AuthClaims {
	raw, ok, err := s.area.Get(StorageKey)
	if err != nil {
		log.Warn().Err(err).Msg("token store read failed")
		return model.Anonymous()
	}
	if !ok || raw == "" {
		return model.Anonymous()
	}

	var claims model.AuthClaims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil || claims.Username == "" {
		return model.Anonymous()
	}
	return claims
}

func (s *TokenStore) Write(claims model.AuthClaims) error {
	data, err := json.Marshal(claims)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.area.Set(StorageKey, string(data))
}

func (s *TokenStore) Clear() error {
	return s.Write(model.Anonymous())
}
