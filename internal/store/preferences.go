package store

import (
	"context"
	"sync"

	"campuspulse/internal/domain"
)

// Preferences persists per-user planner settings. Users that never saved
// any get domain.DefaultPreferences.
type Preferences interface {
	GetPreferences(ctx context.Context, userID string) (domain.Preferences, error)
	PutPreferences(ctx context.Context, prefs domain.Preferences) error
	Close() error
}

type MemoryPreferences struct {
	mu    sync.RWMutex
	prefs map[string]domain.Preferences
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{prefs: make(map[string]domain.Preferences)}
}

func (m *MemoryPreferences) GetPreferences(_ context.Context, userID string) (domain.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return domain.DefaultPreferences(userID), nil
}

func (m *MemoryPreferences) PutPreferences(_ context.Context, prefs domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[prefs.UserID] = prefs
	return nil
}

func (m *MemoryPreferences) Close() error { return nil }
