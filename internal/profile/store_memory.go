package profile

import (
	"context"
	"sync"

	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// MemoryCheckpointStore keeps checkpoints in process memory. Used in tests and
// single-instance development; resume across restarts needs the Postgres store.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[domain.DID]Checkpoint
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: make(map[domain.DID]Checkpoint)}
}

func (s *MemoryCheckpointStore) Save(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.DID] = cp
	return nil
}

func (s *MemoryCheckpointStore) Load(_ context.Context, did domain.DID) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[did]
	if !ok {
		return Checkpoint{}, dErrors.Newf(dErrors.CodeNotFound, "no checkpoint for %s", did)
	}
	return cp, nil
}

func (s *MemoryCheckpointStore) Clear(_ context.Context, did domain.DID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, did)
	return nil
}
