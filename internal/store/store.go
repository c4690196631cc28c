// Package store keeps planner sessions and user preferences.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campuspulse/internal/domain"
)

// Store is the in-process session store. Sessions are copied in and out so
// callers never share state with the map.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session

	staleAfter time.Duration
}

func New(staleAfter time.Duration) *Store {
	return &Store{
		sessions:   make(map[string]*domain.Session),
		staleAfter: staleAfter,
	}
}

func (s *Store) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.UpdatedAt = time.Now()
	s.sessions[session.ID] = clone(&session)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, notFound(id)
	}
	return *clone(session), nil
}

// Update applies fn to the stored session under the write lock. The session
// is left untouched when fn returns an error.
func (s *Store) Update(_ context.Context, id string, fn func(*domain.Session) error) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, notFound(id)
	}

	updated := clone(existing)
	if err := fn(updated); err != nil {
		return domain.Session{}, err
	}
	updated.UpdatedAt = time.Now()
	s.sessions[id] = updated
	return *clone(updated), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// PruneStale drops sessions idle for longer than staleAfter and returns
// their ids.
func (s *Store) PruneStale() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.staleAfter)
	var pruned []string

	for id, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			pruned = append(pruned, id)
			delete(s.sessions, id)
		}
	}

	return pruned
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func clone(s *domain.Session) *domain.Session {
	c := *s
	if s.Layers != nil {
		c.Layers = append([]string(nil), s.Layers...)
	}
	return &c
}

func notFound(id string) error {
	return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
}
