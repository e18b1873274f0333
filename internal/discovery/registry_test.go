package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"didhub/internal/content"
	dom "didhub/internal/domain"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
	"didhub/pkg/platform/audit"
)

type RegistrySuite struct {
	suite.Suite
	pointer  *MemoryPointerStore
	store    *content.MemoryStore
	auditor  *audit.MemoryPublisher
	registry *Registry
	ctx      context.Context
}

func (s *RegistrySuite) SetupTest() {
	s.pointer = NewMemoryPointerStore()
	s.store = content.NewMemoryStore()
	s.auditor = audit.NewMemoryPublisher()
	s.ctx = context.Background()

	registry, err := New(s.pointer, s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.auditor),
	)
	s.Require().NoError(err)
	s.registry = registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func entryFor(n int) dom.RegistryEntry {
	addr := common.BytesToAddress([]byte(fmt.Sprintf("identity-%03d", n)))
	return dom.RegistryEntry{
		DID:       domain.NewDID("sepolia", addr),
		Timestamp: time.Date(2026, 8, 1, 0, 0, n, 0, time.UTC),
	}
}

func (s *RegistrySuite) TestAppendAndList() {
	s.Run("an empty registry lists nothing", func() {
		entries, err := s.registry.List(s.ctx)
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Run("appended entries come back in order", func() {
		for i := 0; i < 3; i++ {
			_, err := s.registry.Append(s.ctx, entryFor(i))
			s.Require().NoError(err)
		}

		entries, err := s.registry.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		for i, entry := range entries {
			s.Equal(entryFor(i).DID, entry.DID)
		}
	})

	s.Run("each append moves the pointer to a new address", func() {
		first, err := s.registry.Append(s.ctx, entryFor(10))
		s.Require().NoError(err)
		second, err := s.registry.Append(s.ctx, entryFor(11))
		s.Require().NoError(err)
		s.NotEqual(first, second)

		current, err := s.pointer.Current(s.ctx)
		s.Require().NoError(err)
		s.Equal(second, current)
	})

	s.Run("appends are audited", func() {
		entry := entryFor(20)
		_, err := s.registry.Append(s.ctx, entry)
		s.Require().NoError(err)

		events := s.auditor.Events()
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(audit.ActionRegistryAppended, last.Action)
		s.Equal(entry.DID.String(), last.DID)
	})
}

func (s *RegistrySuite) TestSupersededObjectsReleased() {
	s.Run("only the newest registry object stays pinned", func() {
		_, err := s.registry.Append(s.ctx, entryFor(0))
		s.Require().NoError(err)
		s.Equal(1, s.store.Len())

		latest, err := s.registry.Append(s.ctx, entryFor(1))
		s.Require().NoError(err)
		s.Equal(1, s.store.Len())

		_, err = s.store.Get(s.ctx, latest)
		s.NoError(err)
	})
}

func (s *RegistrySuite) TestConcurrentAppends() {
	s.Run("no entry is lost under contention", func() {
		const writers = 20
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.registry.Append(s.ctx, entryFor(i))
				s.NoError(err)
			}(i)
		}
		wg.Wait()

		entries, err := s.registry.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(entries, writers)

		seen := make(map[domain.DID]bool, writers)
		for _, entry := range entries {
			seen[entry.DID] = true
		}
		s.Len(seen, writers)
	})
}

func (s *RegistrySuite) TestConflictRetry() {
	s.Run("a lost pointer race is retried transparently", func() {
		flaky := &conflictOnce{inner: s.pointer}
		registry, err := New(flaky, s.store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		s.Require().NoError(err)

		_, err = registry.Append(s.ctx, entryFor(0))
		s.Require().NoError(err)
		s.GreaterOrEqual(flaky.casCalls.Load(), int32(2))

		entries, err := registry.List(s.ctx)
		s.Require().NoError(err)
		s.Len(entries, 1)
	})

	s.Run("a conflict that never resolves surfaces after the budget", func() {
		registry, err := New(alwaysConflict{}, s.store,
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			WithMaxRetries(2),
		)
		s.Require().NoError(err)

		_, err = registry.Append(s.ctx, entryFor(0))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePointerConflict))
	})
}

func (s *RegistrySuite) TestFind() {
	s.Run("returns the newest entry for a DID", func() {
		entry := entryFor(0)
		older := entry
		older.Profile = domain.Address("")
		_, err := s.registry.Append(s.ctx, older)
		s.Require().NoError(err)

		profileAddr, err := s.store.Put(s.ctx, []byte("profile record"))
		s.Require().NoError(err)
		newer := entry
		newer.Profile = profileAddr
		_, err = s.registry.Append(s.ctx, newer)
		s.Require().NoError(err)

		found, err := s.registry.Find(s.ctx, entry.DID)
		s.Require().NoError(err)
		s.Equal(profileAddr, found.Profile)
	})

	s.Run("unknown DIDs are not found", func() {
		_, err := s.registry.Find(s.ctx, entryFor(99).DID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// conflictOnce fails the first CompareAndSwap with a pointer conflict, then
// delegates to the real store.
type conflictOnce struct {
	inner    PointerStore
	casCalls atomic.Int32
}

func (c *conflictOnce) Current(ctx context.Context) (domain.Address, error) {
	return c.inner.Current(ctx)
}

func (c *conflictOnce) CompareAndSwap(ctx context.Context, old, next domain.Address) error {
	if c.casCalls.Add(1) == 1 {
		return dErrors.New(dErrors.CodePointerConflict, "injected conflict")
	}
	return c.inner.CompareAndSwap(ctx, old, next)
}

// alwaysConflict loses every race.
type alwaysConflict struct{}

func (alwaysConflict) Current(context.Context) (domain.Address, error) {
	return "", nil
}

func (alwaysConflict) CompareAndSwap(context.Context, domain.Address, domain.Address) error {
	return dErrors.New(dErrors.CodePointerConflict, "injected conflict")
}
