package client

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"epistolary-lite/internal/storage"
)

// CookieStorageKey is the storage area key holding the persisted cookie jar.
const CookieStorageKey = "epistolaryCookies"

// Jar is a cookie jar that mirrors every cookie it accepts into a storage area, so a
// new process picks up the session cookies a previous one was given.
type Jar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	area    storage.Storage
	now     func() time.Time
	entries map[string]map[string]persistedCookie
}

type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func (pc persistedCookie) id() string {
	return pc.Name + ";" + pc.Domain + ";" + pc.Path
}

func NewJar(area storage.Storage) (*Jar, error) {
	return newJar(area, time.Now)
}

func newJar(area storage.Storage, now func() time.Time) (*Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	j := &Jar{jar: jar, area: area, now: now, entries: make(map[string]map[string]persistedCookie)}
	if area != nil {
		j.load()
	}
	return j, nil
}

func (j *Jar) load() {
	raw, found, err := j.area.Get(CookieStorageKey)
	if err != nil || !found || raw == "" {
		return
	}

	var entries map[string]map[string]persistedCookie
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable cookie jar")
		return
	}

	now := j.now()
	for origin, cookies := range entries {
		base, err := url.Parse(origin)
		if err != nil {
			continue
		}
		for id, pc := range cookies {
			if !pc.Expires.IsZero() && !pc.Expires.After(now) {
				continue
			}
			if j.entries[origin] == nil {
				j.entries[origin] = make(map[string]persistedCookie)
			}
			j.entries[origin][id] = pc

			u := *base
			u.Path = pc.Path
			j.jar.SetCookies(&u, []*http.Cookie{pc.cookie()})
		}
	}
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if j.area == nil {
		return
	}

	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
	now := j.now()

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		pc := persistedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if pc.Path == "" || !strings.HasPrefix(pc.Path, "/") {
			pc.Path = defaultPath(u.Path)
		}
		if c.MaxAge > 0 {
			pc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		if c.MaxAge < 0 || (!pc.Expires.IsZero() && !pc.Expires.After(now)) {
			delete(j.entries[origin], pc.id())
			continue
		}
		if j.entries[origin] == nil {
			j.entries[origin] = make(map[string]persistedCookie)
		}
		j.entries[origin][pc.id()] = pc
	}
	if len(j.entries[origin]) == 0 {
		delete(j.entries, origin)
	}

	data, err := json.Marshal(j.entries)
	if err != nil {
		log.Warn().Err(err).Msg("could not serialize cookie jar")
		return
	}
	if err := j.area.Set(CookieStorageKey, string(data)); err != nil {
		log.Warn().Err(err).Msg("could not persist cookie jar")
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// defaultPath is the cookie path a server gets when it omits the attribute.
func defaultPath(path string) string {
	if path == "" || path[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(path, "/")
	if i == 0 {
		return "/"
	}
	return path[:i]
}

func (pc persistedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     pc.Name,
		Value:    pc.Value,
		Path:     pc.Path,
		Domain:   pc.Domain,
		Expires:  pc.Expires,
		Secure:   pc.Secure,
		HttpOnly: pc.HttpOnly,
	}
}
