package provisioning

import (
	"context"
	"sort"
	"sync"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// SiteMemoryStore keeps site definitions in process memory.
type SiteMemoryStore struct {
	mu    sync.RWMutex
	sites map[id.SiteCode]*Site
}

func NewSiteMemoryStore() *SiteMemoryStore {
	return &SiteMemoryStore{sites: make(map[id.SiteCode]*Site)}
}

func (s *SiteMemoryStore) Upsert(_ context.Context, site *Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *site
	s.sites[site.Code] = &clone
	return nil
}

func (s *SiteMemoryStore) Find(_ context.Context, code id.SiteCode) (*Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.sites[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *site
	return &clone, nil
}

func (s *SiteMemoryStore) List(_ context.Context) ([]*Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Site, 0, len(s.sites))
	for _, site := range s.sites {
		clone := *site
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *SiteMemoryStore) Delete(_ context.Context, code id.SiteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sites[code]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sites, code)
	return nil
}

// CodeMemoryStore keeps registration codes in process memory. Consume is
// delete-on-read under the store lock, so two concurrent registrations can
// never both succeed on one code.
type CodeMemoryStore struct {
	mu    sync.Mutex
	codes map[string]id.Role
}

func NewCodeMemoryStore() *CodeMemoryStore {
	return &CodeMemoryStore{codes: make(map[string]id.Role)}
}

func (s *CodeMemoryStore) Add(_ context.Context, code RegistrationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[code.Code]; exists {
		return sentinel.ErrDuplicate
	}
	s.codes[code.Code] = code.Role
	return nil
}

func (s *CodeMemoryStore) Consume(_ context.Context, code string) (id.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.codes[code]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	delete(s.codes, code)
	return role, nil
}
