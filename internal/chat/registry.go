package chat

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Registry tracks live sessions. A session ends when it is deleted or when it
// has not been touched for the TTL.
type Registry struct {
	sessions *cache.Cache
	now      func() time.Time
}

// NewRegistry creates a registry. ttl <= 0 keeps sessions until deleted.
func NewRegistry(ttl time.Duration) *Registry {
	cleanup := ttl / 2
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &Registry{
		sessions: cache.New(ttl, cleanup),
		now:      time.Now,
	}
}

// Create starts a new session.
func (r *Registry) Create() *Session {
	s := NewSession(r.now())
	r.sessions.Set(s.ID, s, cache.DefaultExpiration)
	return s
}

// Get returns the session and extends its lifetime.
func (r *Registry) Get(id string) (*Session, bool) {
	x, found := r.sessions.Get(id)
	if !found {
		return nil, false
	}
	s := x.(*Session)
	r.sessions.Set(id, s, cache.DefaultExpiration)
	return s, true
}

// Delete ends a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	if _, found := r.sessions.Get(id); !found {
		return false
	}
	r.sessions.Delete(id)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return r.sessions.ItemCount()
}
