package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session: not found")

// Store is an in-memory session store, safe for concurrent use.
// Sessions are lost on restart; nothing in them is meant to outlive one.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*State
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire ttl after their last save.
// A zero ttl disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*State),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new anonymous session.
func (s *Store) Create(ctx context.Context) (*State, error) {
	st := New(uuid.NewString(), s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[st.ID] = st.clone()
	return st, nil
}

// Get returns a copy of the session with id.
func (s *Store) Get(ctx context.Context, id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.sessions[id]
	if !exists || s.expired(st) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return st.clone(), nil
}

// Save stores a copy of st, replacing the previous version.
func (s *Store) Save(ctx context.Context, st *State) error {
	if st.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := st.clone()
	c.UpdatedAt = s.now()
	s.sessions[st.ID] = c
	return nil
}

// Delete removes the session with id. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.sessions {
		if s.expired(st) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) expired(st *State) bool {
	return s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl
}
