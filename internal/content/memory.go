package content

import (
	"context"
	"sync"

	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// MemoryStore is an in-process Store for tests and local development. It
// computes real content addresses so addressing behavior matches the gateway.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[domain.Address][]byte
	labels  map[domain.Address]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[domain.Address][]byte),
		labels:  make(map[domain.Address]string),
	}
}

func (s *MemoryStore) Put(_ context.Context, data []byte, opts ...PutOption) (domain.Address, error) {
	addr, err := ComputeAddress(data)
	if err != nil {
		return "", err
	}
	options := applyOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[addr]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.objects[addr] = stored
	}
	if options.label != "" {
		s.labels[addr] = options.label
	}
	return addr, nil
}

func (s *MemoryStore) Get(_ context.Context, addr domain.Address) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[addr]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "object %s not found", addr)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Unpin(_ context.Context, addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, addr)
	delete(s.labels, addr)
	return nil
}

// Len reports how many distinct objects are stored (test helper).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Label returns the label recorded for an address (test helper).
func (s *MemoryStore) Label(addr domain.Address) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels[addr]
}
