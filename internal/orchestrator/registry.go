package orchestrator

import (
	"sync"

	"github.com/sqlbridge/sqlbridge/internal/dbconn"
)

// ConnRegistry remembers the custom connection profile a session supplied,
// so follow-up requests in the same session reach the same backend without
// resending credentials.
type ConnRegistry struct {
	mu       sync.RWMutex
	profiles map[string]dbconn.Profile
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{profiles: make(map[string]dbconn.Profile)}
}

func (r *ConnRegistry) Put(session string, profile dbconn.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[session] = profile
}

func (r *ConnRegistry) Get(session string) (dbconn.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[session]
	return profile, ok
}

func (r *ConnRegistry) Delete(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, session)
}
