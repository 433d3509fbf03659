package supply

import (
	"context"
	"sort"
	"sync"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// InMemoryStore keeps the supply chain in process memory. The compound
// mutations (Raise, Arrive, ExecutePack) run under one store-wide mutex:
// inventory volumes are small and a single lock makes the
// pack/consignment/arrival triple trivially atomic.
type InMemoryStore struct {
	mu           sync.RWMutex
	packs        map[id.PackID]*Pack
	consignments map[id.ConsignmentID]*Consignment
	byPack       map[id.PackID]id.ConsignmentID
	arrivals     map[id.PackID]*Arrival
	seq          int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		packs:        make(map[id.PackID]*Pack),
		consignments: make(map[id.ConsignmentID]*Consignment),
		byPack:       make(map[id.PackID]id.ConsignmentID),
		arrivals:     make(map[id.PackID]*Arrival),
	}
}

func (s *InMemoryStore) CreatePack(_ context.Context, p *Pack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packs[p.ID]; exists {
		return sentinel.ErrDuplicate
	}
	clone := *p
	s.packs[p.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindPack(_ context.Context, packID id.PackID) (*Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.packs[packID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *InMemoryStore) ListAvailablePacks(_ context.Context, site id.SiteCode) ([]*Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Pack
	for _, p := range s.packs {
		if p.Site == site && p.Status == PackAvailable {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) ExecutePack(_ context.Context, packID id.PackID,
	validate func(*Pack) error, mutate func(*Pack)) (*Pack, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.packs[packID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := *p
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.packs[packID] = &working

	clone := working
	return &clone, nil
}

func (s *InMemoryStore) Raise(_ context.Context, packID id.PackID,
	validate func(*Pack) error, build func(*Pack) *Consignment) (*Consignment, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.packs[packID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if _, consigned := s.byPack[packID]; consigned {
		return nil, sentinel.ErrConflict
	}

	working := *p
	if err := validate(&working); err != nil {
		return nil, err
	}

	c := build(&working)
	if c.ID == "" {
		s.seq++
		c.ID = id.FormatConsignmentID(s.seq)
	}

	s.packs[packID] = &working
	clone := *c
	s.consignments[c.ID] = &clone
	s.byPack[packID] = c.ID

	out := clone
	return &out, nil
}

func (s *InMemoryStore) Arrive(_ context.Context, packID id.PackID, site id.SiteCode,
	build func(*Consignment, *Pack) *Arrival) (*Arrival, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	conID, ok := s.byPack[packID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := s.consignments[conID]
	if c.Site != site {
		// Consignments for other sites read as absent; existence must not
		// leak across site boundaries.
		return nil, sentinel.ErrNotFound
	}
	if existing, arrived := s.arrivals[packID]; arrived {
		clone := *existing
		return &clone, sentinel.ErrDuplicate
	}

	p := s.packs[packID]
	workingPack := *p
	workingCon := *c

	a := build(&workingCon, &workingPack)

	s.packs[packID] = &workingPack
	clone := *a
	s.arrivals[packID] = &clone

	out := clone
	return &out, nil
}

func (s *InMemoryStore) ListPending(_ context.Context, site id.SiteCode) ([]*Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Consignment
	for _, c := range s.consignments {
		if site != "" && c.Site != site {
			continue
		}
		if _, arrived := s.arrivals[c.PackID]; arrived {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) ReferencesSite(_ context.Context, site id.SiteCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.consignments {
		if c.Site == site {
			return true, nil
		}
	}
	return false, nil
}
