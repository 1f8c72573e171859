package memory

import (
	"context"
	"sync"

	"github.com/forestplant/backend/internal/orders/domain"
)

// Store is an in-memory identity directory for local development and tests.
type Store struct {
	mu    sync.RWMutex
	users map[string]domain.UserProfile
}

// NewStore creates an in-memory identity store seeded with the given users.
func NewStore(users ...domain.UserProfile) *Store {
	s := &Store{users: make(map[string]domain.UserProfile, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// Put adds or replaces a user profile.
func (s *Store) Put(user domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// FindByID returns the user profile, or (nil, nil) when unknown.
func (s *Store) FindByID(_ context.Context, id string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copy := user
	return &copy, nil
}
