package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process demos.
type MemoryStore struct {
	mu      sync.RWMutex
	domains map[string]DomainRegistration
	perms   map[ChannelPermission]struct{}
	routes  map[string]RoutingRule
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		domains: make(map[string]DomainRegistration),
		perms:   make(map[ChannelPermission]struct{}),
		routes:  make(map[string]RoutingRule),
	}
}

// UpsertDomain registers or updates a domain.
func (s *MemoryStore) UpsertDomain(ctx context.Context, reg DomainRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[reg.DomainID] = reg
	return nil
}

// GetDomain returns the registration for a domain id.
func (s *MemoryStore) GetDomain(ctx context.Context, domainID string) (*DomainRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.domains[domainID]
	if !ok {
		return nil, ErrDomainNotFound
	}
	return &reg, nil
}

// ListDomains returns all registered domains, ordered by id.
func (s *MemoryStore) ListDomains(ctx context.Context) ([]DomainRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DomainRegistration, 0, len(s.domains))
	for _, reg := range s.domains {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DomainID < out[j].DomainID
	})
	return out, nil
}

// UpsertChannelPermission allows a sender into an owner's channel.
func (s *MemoryStore) UpsertChannelPermission(ctx context.Context, perm ChannelPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[perm] = struct{}{}
	return nil
}

// HasChannelPermission reports whether sender may publish to owner.
func (s *MemoryStore) HasChannelPermission(ctx context.Context, ownerDomainID, senderDomainID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.perms[ChannelPermission{OwnerDomainID: ownerDomainID, SenderDomainID: senderDomainID}]
	return ok, nil
}

// ListChannelPermissions returns all permission entries.
func (s *MemoryStore) ListChannelPermissions(ctx context.Context) ([]ChannelPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChannelPermission, 0, len(s.perms))
	for perm := range s.perms {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OwnerDomainID != out[j].OwnerDomainID {
			return out[i].OwnerDomainID < out[j].OwnerDomainID
		}
		return out[i].SenderDomainID < out[j].SenderDomainID
	})
	return out, nil
}

// UpsertRoutingRule creates or updates a discriminator route.
func (s *MemoryStore) UpsertRoutingRule(ctx context.Context, rule RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[rule.Discriminator] = rule
	return nil
}

// ResolveRoute returns the routing rule for a discriminator.
func (s *MemoryStore) ResolveRoute(ctx context.Context, discriminator string) (*RoutingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.routes[discriminator]
	if !ok {
		return nil, ErrRouteNotFound
	}
	return &rule, nil
}
