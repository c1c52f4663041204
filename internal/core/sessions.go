// ABOUTME: SessionRegistry keys chat memory by session and serializes queries per session
// ABOUTME: Callers own the registry; there is no process-wide instance
package core

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harper/wellrag/internal/config"
)

// Session is one conversation
type Session struct {
	ID        string
	Memory    *ChatMemory
	CreatedAt time.Time

	mu sync.Mutex
}

// SessionRegistry holds live sessions
type SessionRegistry struct {
	mu       sync.Mutex
	cfg      config.MemoryConfig
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry(cfg config.MemoryConfig) *SessionRegistry {
	return &SessionRegistry{cfg: cfg, sessions: make(map[string]*Session)}
}

// Acquire returns the session for id, creating it if needed, locked for exclusive use.
// An empty id starts a new session. Call release when the query is done.
func (r *SessionRegistry) Acquire(id string) (s *Session, release func()) {
	s = r.get(id)
	s.mu.Lock()
	return s, s.mu.Unlock
}

func (r *SessionRegistry) get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id, Memory: NewChatMemory(r.cfg), CreatedAt: time.Now().UTC()}
		r.sessions[id] = s
	}
	return s
}

// Reset clears a session's memory. Reports whether the session existed.
func (r *SessionRegistry) Reset(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memory.Reset()
	return true
}

// End removes a session. Reports whether it existed.
func (r *SessionRegistry) End(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// IDs lists live session ids, sorted
func (r *SessionRegistry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
