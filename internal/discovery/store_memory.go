package discovery

import (
	"context"
	"sync"

	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// MemoryPointerStore is a process-local pointer cell for tests and single
// instance development.
type MemoryPointerStore struct {
	mu      sync.Mutex
	current domain.Address
}

func NewMemoryPointerStore() *MemoryPointerStore {
	return &MemoryPointerStore{}
}

func (s *MemoryPointerStore) Current(_ context.Context) (domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *MemoryPointerStore) CompareAndSwap(_ context.Context, old, next domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != old {
		return dErrors.Newf(dErrors.CodePointerConflict,
			"registry pointer moved: expected %s, found %s", orUnset(old), orUnset(s.current))
	}
	s.current = next
	return nil
}

func orUnset(a domain.Address) string {
	if a.IsZero() {
		return "(unset)"
	}
	return a.String()
}
