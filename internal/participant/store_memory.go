package participant

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// InMemoryStore keeps participant records in process memory. Mutations are
// serialized per record: Execute holds the record's own mutex across validate
// and mutate, so a losing concurrent transition observes the winner's state.
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[id.ParticipantID]*Participant
	locks      map[id.ParticipantID]*sync.Mutex
	seq        int
	siteCounts map[id.SiteCode]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:    make(map[id.ParticipantID]*Participant),
		locks:      make(map[id.ParticipantID]*sync.Mutex),
		siteCounts: make(map[id.SiteCode]int),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		s.seq++
		p.ID = id.FormatParticipantID(s.seq)
	}
	if _, exists := s.records[p.ID]; exists {
		return sentinel.ErrDuplicate
	}
	if p.Label == "" {
		s.siteCounts[p.Site]++
		p.Label = fmt.Sprintf("%s%03d", p.Site, s.siteCounts[p.Site])
	}

	clone := *p
	s.records[p.ID] = &clone
	s.locks[p.ID] = &sync.Mutex{}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, participantID id.ParticipantID) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.records[participantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *InMemoryStore) ListBySite(_ context.Context, site id.SiteCode) ([]*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Participant
	for _, p := range s.records {
		if p.Site == site {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, participantID id.ParticipantID,
	validate func(*Participant) error, mutate func(*Participant)) (*Participant, error) {

	s.mu.RLock()
	lock, ok := s.locks[participantID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	p := s.records[participantID]
	s.mu.RUnlock()

	working := *p
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)

	s.mu.Lock()
	s.records[participantID] = &working
	s.mu.Unlock()

	clone := working
	return &clone, nil
}
