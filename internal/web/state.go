package web

import (
	"sync"
	"time"

	"github.com/justestif/go-spotify-history/internal/auth"
)

const (
	stateCookieName = "oauth_state"
	stateTTL        = 5 * time.Minute
)

// StateStore tracks OAuth state values issued by /auth/login. Each value is
// accepted once, within stateTTL of being issued.
type StateStore struct {
	mu     sync.Mutex
	issued map[string]time.Time
	now    func() time.Time
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		issued: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Issue creates and remembers a new state value.
func (s *StateStore) Issue() string {
	state := auth.NewState()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune()
	s.issued[state] = s.now()
	return state
}

// Consume reports whether state was issued and is still fresh. It forgets the
// value either way.
func (s *StateStore) Consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuedAt, ok := s.issued[state]
	if !ok {
		return false
	}
	delete(s.issued, state)
	return s.now().Sub(issuedAt) <= stateTTL
}

// Len returns the number of outstanding states.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issued)
}

// prune drops expired states. Callers hold mu.
func (s *StateStore) prune() {
	now := s.now()
	for state, issuedAt := range s.issued {
		if now.Sub(issuedAt) > stateTTL {
			delete(s.issued, state)
		}
	}
}
