package identity

import (
	"context"
	"sync"

	"trialgate/pkg/platform/sentinel"
)

// InMemoryStore keeps actors in process memory.
type InMemoryStore struct {
	mu     sync.Mutex
	actors map[string]*Actor
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{actors: make(map[string]*Actor)}
}

func (s *InMemoryStore) Create(_ context.Context, a *Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.actors[a.Username]; exists {
		return sentinel.ErrDuplicate
	}
	clone := *a
	s.actors[a.Username] = &clone
	return nil
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *InMemoryStore) Execute(_ context.Context, username string,
	validate func(*Actor) error, mutate func(*Actor)) (*Actor, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := *a
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.actors[username] = &working

	clone := working
	return &clone, nil
}
