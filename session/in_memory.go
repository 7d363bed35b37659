package session

import (
	"sync"

	"github.com/hupe1980/tracebench/core"
)

// InMemoryStore is a volatile ContextStore implementation keeping contexts in
// a process local map. Safe for concurrent access. Unlike a snapshotting
// store, GetOrCreate hands out the live *core.Context so that writes made by
// one holder (a tool-call handler flipping the authenticated flag) are
// observed by every other holder of the same session.
type InMemoryStore struct {
	mu       sync.Mutex
	contexts map[string]*core.Context
}

// NewInMemoryStore constructs an empty in-memory context store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{contexts: make(map[string]*core.Context)}
}

// GetOrCreate returns the context for the session, creating it lazily on
// first reference. Repeated calls with the same id return the same instance.
func (s *InMemoryStore) GetOrCreate(sessionID string) *core.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.contexts[sessionID]; ok {
		return sc
	}
	sc := core.NewContext(sessionID)
	s.contexts[sessionID] = sc
	return sc
}

// ClearAll drops every session. Used between independent test runs; must not
// be called while any session has an in-flight turn.
func (s *InMemoryStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = make(map[string]*core.Context)
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}
