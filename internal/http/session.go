package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"cassa/internal/cache"
	"cassa/internal/filter"
)

const sessionCookieName = "cassa_session"

// FilterStore keeps each browser session's date filter in memory. Entries
// expire after ttl without use; nothing is persisted.
type FilterStore struct {
	cache *cache.LRUCache[filter.Descriptor]
	loc   *time.Location
	ttl   time.Duration
}

func NewFilterStore(maxSessions int, ttl time.Duration, loc *time.Location) *FilterStore {
	if loc == nil {
		loc = time.UTC
	}
	return &FilterStore{
		cache: cache.NewLRUCache[filter.Descriptor](maxSessions, ttl, cache.WithSliding()),
		loc:   loc,
		ttl:   ttl,
	}
}

func (s *FilterStore) Cache() *cache.LRUCache[filter.Descriptor] { return s.cache }

func storeKey(session string, userID int64) string {
	return fmt.Sprintf("%s|%d|%s", session, userID, filter.StorageKey)
}

// Get returns the session's descriptor, or the default one when the
// session has none yet.
func (s *FilterStore) Get(r *http.Request, userID int64) filter.Descriptor {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if d, ok := s.cache.Get(storeKey(c.Value, userID)); ok {
			return d
		}
	}
	d := filter.Default()
	d.Location = s.loc
	return d
}

// Put replaces the session's descriptor, starting a session if the
// request carries none.
func (s *FilterStore) Put(w http.ResponseWriter, r *http.Request, userID int64, d filter.Descriptor) {
	session := s.session(w, r)
	d.Location = s.loc
	s.cache.Set(storeKey(session, userID), d)
}

func (s *FilterStore) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
