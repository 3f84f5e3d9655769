package agent

import (
	"sort"
	"sync"

	"github.com/soyeahso/steve/internal/domain"
)

// SessionStore keeps the checkpointed ConversationState of every thread for
// the lifetime of the process.
type SessionStore struct {
	mu     sync.Mutex
	states map[string]domain.ConversationState
	locks  map[string]*sync.Mutex
}

// NewSessionStore creates an empty in-memory store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		states: make(map[string]domain.ConversationState),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Lock serializes turns on one thread. Call the returned func to release.
func (s *SessionStore) Lock(threadID string) func() {
	s.mu.Lock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load returns a deep copy of the thread's state and whether it existed.
func (s *SessionStore) Load(threadID string) (domain.ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[threadID]
	if !ok {
		return domain.ConversationState{}, false
	}
	return st.Clone(), true
}

// Save replaces the thread's checkpoint with a copy of st.
func (s *SessionStore) Save(threadID string, st domain.ConversationState) {
	cp := st.Clone()
	s.mu.Lock()
	s.states[threadID] = cp
	s.mu.Unlock()
}

// Len returns the number of checkpointed threads.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Threads returns the checkpointed thread ids, sorted.
func (s *SessionStore) Threads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
