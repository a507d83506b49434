package gateway

import (
	"sync"

	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/pkg/location"
)

// SessionRegistry tracks live sessions and which identity each is bound to
type SessionRegistry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	byIdentity map[location.Identity]map[string]*Session
	metrics    *metrics.Metrics
}

// NewSessionRegistry creates a new session registry. m may be nil.
func NewSessionRegistry(m *metrics.Metrics) *SessionRegistry {
	return &SessionRegistry{
		sessions:   make(map[string]*Session),
		byIdentity: make(map[location.Identity]map[string]*Session),
		metrics:    m,
	}
}

// Add tracks a new, unauthenticated session
func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return
	}
	r.sessions[s.ID] = s
	r.metrics.SessionOpened()
}

// Bind binds s to id. A session that was already bound moves to the new
// identity; the last successful auth wins.
func (r *SessionRegistry) Bind(s *Session, id location.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; !exists {
		r.sessions[s.ID] = s
		r.metrics.SessionOpened()
	}

	if prev, ok := s.Identity(); ok {
		r.removeIndex(prev, s.ID)
	}

	s.setIdentity(id)
	set, ok := r.byIdentity[id]
	if !ok {
		set = make(map[string]*Session)
		r.byIdentity[id] = set
	}
	set[s.ID] = s
}

// Unbind forgets s and closes it, discarding anything still queued
func (r *SessionRegistry) Unbind(s *Session) {
	r.mu.Lock()
	_, exists := r.sessions[s.ID]
	if exists {
		delete(r.sessions, s.ID)
		if id, ok := s.Identity(); ok {
			r.removeIndex(id, s.ID)
		}
		r.metrics.SessionClosed()
	}
	r.mu.Unlock()

	s.Close()
}

// removeIndex must be called with r.mu held
func (r *SessionRegistry) removeIndex(id location.Identity, sessionID string) {
	set, ok := r.byIdentity[id]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.byIdentity, id)
	}
}

// SessionsFor returns the sessions currently bound to id
func (r *SessionRegistry) SessionsFor(id location.Identity) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byIdentity[id]
	out := make([]*Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// Get retrieves a session by ID
func (r *SessionRegistry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[sessionID]
	return s, exists
}

// All returns every tracked session
func (r *SessionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of tracked sessions
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// AuthenticatedCount returns the number of sessions bound to an identity
func (r *SessionRegistry) AuthenticatedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.byIdentity {
		n += len(set)
	}
	return n
}

// Infos describes every tracked session
func (r *SessionRegistry) Infos() []SessionInfo {
	sessions := r.All()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}
