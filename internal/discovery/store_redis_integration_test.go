//go:build integration

package discovery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"didhub/internal/content"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
	"didhub/pkg/testutil/containers"
)

type RedisPointerSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisPointerStore
	ctx   context.Context
}

func (s *RedisPointerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisPointerSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.store = NewRedisPointerStore(s.redis.Client, "didhub:test:registry:latest")
}

func TestRedisPointerSuite(t *testing.T) {
	suite.Run(t, new(RedisPointerSuite))
}

func (s *RedisPointerSuite) addr(payload string) domain.Address {
	addr, err := content.ComputeAddress([]byte(payload))
	s.Require().NoError(err)
	return addr
}

func (s *RedisPointerSuite) TestCompareAndSwap() {
	s.Run("an unset slot reads as the zero address", func() {
		current, err := s.store.Current(s.ctx)
		s.Require().NoError(err)
		s.True(current.IsZero())
	})

	s.Run("swaps from the zero address", func() {
		next := s.addr("v1")
		s.Require().NoError(s.store.CompareAndSwap(s.ctx, "", next))

		current, err := s.store.Current(s.ctx)
		s.Require().NoError(err)
		s.Equal(next, current)
	})

	s.Run("rejects a swap keyed on a stale address", func() {
		v1, v2 := s.addr("v1"), s.addr("v2")
		s.Require().NoError(s.store.CompareAndSwap(s.ctx, "", v1))

		err := s.store.CompareAndSwap(s.ctx, "", v2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePointerConflict))

		current, err := s.store.Current(s.ctx)
		s.Require().NoError(err)
		s.Equal(v1, current)
	})
}

func (s *RedisPointerSuite) TestConcurrentSwaps() {
	s.Run("exactly one of many racing swaps wins", func() {
		const racers = 10
		var wg sync.WaitGroup
		errs := make([]error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.store.CompareAndSwap(s.ctx, "", s.addr(string(rune('a'+i))))
			}(i)
		}
		wg.Wait()

		var wins int
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				s.True(dErrors.HasCode(err, dErrors.CodePointerConflict))
			}
		}
		s.Equal(1, wins)
	})
}

func (s *RedisPointerSuite) TestRegistryOnRedis() {
	s.Run("appends through the shared pointer", func() {
		store := content.NewMemoryStore()
		registry, err := New(s.store, store)
		s.Require().NoError(err)

		for i := 0; i < 5; i++ {
			_, err := registry.Append(s.ctx, entryFor(i))
			s.Require().NoError(err)
		}
		entries, err := registry.List(s.ctx)
		s.Require().NoError(err)
		s.Len(entries, 5)
	})
}
