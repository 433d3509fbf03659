package ledger

import (
	"context"
	"sync"
	"time"

	id "trialgate/pkg/domain"
)

// InMemoryStore keeps ledger events in append order. Suitable for tests and
// single-process deployments; the PostgreSQL store is the durable option.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
	latest map[id.ParticipantID]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{latest: make(map[id.ParticipantID]time.Time)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ParticipantID != "" {
		if last, ok := s.latest[event.ParticipantID]; ok && event.RecordedAt.Before(last) {
			event.RecordedAt = last
		}
		s.latest[event.ParticipantID] = event.RecordedAt
	}
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByParticipant(_ context.Context, participantID id.ParticipantID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.ParticipantID == participantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListBySite(_ context.Context, site id.SiteCode) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.Site == site {
			out = append(out, e)
		}
	}
	return out, nil
}
