package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"epistolary-lite/internal/hub"
	"epistolary-lite/internal/model"
)

var ErrLoginRequired = errors.New("login required")

const sessionTopic = "session"

// Manager owns the session held in a TokenStore. Every observation goes through
// Current, which downgrades expired claims to the anonymous sentinel before anyone
// gets to look at them.
type Manager struct {
	mu sync.Mutex
	// notify is taken before mu is released so subscribers see changes in order.
	notify sync.Mutex
	store  *TokenStore
	now    func() time.Time
	last   model.AuthClaims
	subs   *hub.Hub[string, model.AuthClaims]
}

func NewManager(store *TokenStore) *Manager {
	return NewManagerWithNow(store, time.Now)
}

func NewManagerWithNow(store *TokenStore, now func() time.Time) *Manager {
	return &Manager{
		store: store,
		now:   now,
		last:  model.Anonymous(),
		subs:  hub.New[string, model.AuthClaims](),
	}
}

// IsAnonymous reports whether claims is absent or exactly the anonymous sentinel.
func IsAnonymous(claims *model.AuthClaims) bool {
	return claims == nil || *claims == model.Anonymous()
}

// IsExpired reports whether claims is absent or its expiry has been reached at now.
// Expiry is carried in seconds and compared in milliseconds.
func IsExpired(claims *model.AuthClaims, now time.Time) bool {
	if claims == nil {
		return true
	}
	return now.UnixMilli() >= claims.Exp*1000
}

func (m *Manager) Current() model.AuthClaims {
	m.mu.Lock()
	claims := m.store.Read()
	if !IsAnonymous(&claims) && IsExpired(&claims, m.now()) {
		log.Debug().Str("username", claims.Username).Msg("session expired, downgrading to anonymous")
		if err := m.store.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear expired session")
		}
		claims = model.Anonymous()
	}
	changed := m.observeLocked(claims)
	m.publishUnlock(changed, claims)
	return claims
}

// Set stores claims. Anonymous or already expired claims are replaced by the anonymous
// sentinel rather than rejected.
func (m *Manager) Set(claims model.AuthClaims) error {
	m.mu.Lock()
	var err error
	if IsAnonymous(&claims) || IsExpired(&claims, m.now()) {
		claims = model.Anonymous()
		err = m.store.Clear()
	} else {
		err = m.store.Write(claims)
	}
	changed := err == nil && m.observeLocked(claims)
	m.publishUnlock(changed, claims)
	return err
}

func (m *Manager) publishUnlock(changed bool, claims model.AuthClaims) {
	if !changed {
		m.mu.Unlock()
		return
	}
	m.notify.Lock()
	m.mu.Unlock()
	defer m.notify.Unlock()
	m.subs.Broadcast(sessionTopic, claims)
}

func (m *Manager) Clear() error {
	return m.Set(model.Anonymous())
}

// Login decodes an access token and makes its claims the current session.
func (m *Manager) Login(token string) (model.AuthClaims, error) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return model.Anonymous(), err
	}
	if err := m.Set(claims); err != nil {
		return model.Anonymous(), err
	}
	return m.Current(), nil
}

// Guard returns ErrLoginRequired unless the current session is authenticated.
func (m *Manager) Guard() (model.AuthClaims, error) {
	claims := m.Current()
	if IsAnonymous(&claims) || IsExpired(&claims, m.now()) {
		return claims, ErrLoginRequired
	}
	return claims, nil
}

// Subscribe delivers the claims every time the observed session changes, including
// passive downgrades.
func (m *Manager) Subscribe() (<-chan model.AuthClaims, func()) {
	return m.subs.Subscribe(sessionTopic, 4)
}

func (m *Manager) observeLocked(claims model.AuthClaims) bool {
	if claims == m.last {
		return false
	}
	m.last = claims
	return true
}
