package identity

import (
	"context"
	"sync"
)

// StaticService is an in-memory Service and Directory, used by tests and by
// deployments that provision accounts from configuration instead of a full
// identity backend.
type StaticService struct {
	mu           sync.RWMutex
	idsByName    map[string]uint64
	namesByID    map[uint64]string
	capabilities map[uint64]map[string]struct{}
	hidden       map[uint64]struct{}
	wikiNames    map[string]string
	recentIPs    map[uint64][]string
}

func NewStaticService() *StaticService {
	return &StaticService{
		idsByName:    make(map[string]uint64),
		namesByID:    make(map[uint64]string),
		capabilities: make(map[uint64]map[string]struct{}),
		hidden:       make(map[uint64]struct{}),
		wikiNames:    make(map[string]string),
		recentIPs:    make(map[uint64][]string),
	}
}

func (s *StaticService) AddAccount(id uint64, name string, capabilities ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idsByName[name] = id
	s.namesByID[id] = name
	caps := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		caps[c] = struct{}{}
	}
	s.capabilities[id] = caps
}

func (s *StaticService) GrantCapability(id uint64, capability string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capabilities[id] == nil {
		s.capabilities[id] = make(map[string]struct{})
	}
	s.capabilities[id][capability] = struct{}{}
}

func (s *StaticService) HideAccount(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[id] = struct{}{}
}

func (s *StaticService) AddWiki(id, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wikiNames[id] = displayName
}

func (s *StaticService) SetRecentIPs(id uint64, ips ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentIPs[id] = append([]string(nil), ips...)
}

func (s *StaticService) HasCapability(_ context.Context, accountID uint64, capability string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.capabilities[accountID][capability]
	return ok
}

func (s *StaticService) ResolveAccountID(_ context.Context, name string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idsByName[name]
	return id, ok
}

func (s *StaticService) DisplayName(_ context.Context, accountID uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.namesByID[accountID]
	return name, ok
}

func (s *StaticService) IsHidden(_ context.Context, accountID uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hidden[accountID]
	return ok
}

func (s *StaticService) WikiDisplayName(_ context.Context, wikiID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.wikiNames[wikiID]; ok {
		return name
	}
	return wikiID
}

func (s *StaticService) RecentIPs(_ context.Context, accountID uint64, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ips := s.recentIPs[accountID]
	if limit > 0 && len(ips) > limit {
		ips = ips[:limit]
	}
	return append([]string(nil), ips...), nil
}
