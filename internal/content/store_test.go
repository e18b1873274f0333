package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "didhub/pkg/domain-errors"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) TestPutAndGet() {
	s.Run("round-trips a payload", func() {
		payload := []byte(`{"hello":"world"}`)
		addr, err := s.store.Put(s.ctx, payload)
		s.Require().NoError(err)
		s.Require().False(addr.IsZero())

		got, err := s.store.Get(s.ctx, addr)
		s.Require().NoError(err)
		s.Equal(payload, got)
	})

	s.Run("returns not found for unknown address", func() {
		addr, err := ComputeAddress([]byte("never stored"))
		s.Require().NoError(err)

		_, err = s.store.Get(s.ctx, addr)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MemoryStoreSuite) TestIdempotence() {
	s.Run("identical payloads map to one address and one object", func() {
		payload := []byte("same bytes")

		first, err := s.store.Put(s.ctx, payload)
		s.Require().NoError(err)
		second, err := s.store.Put(s.ctx, payload)
		s.Require().NoError(err)

		s.Equal(first, second)
		s.Equal(1, s.store.Len())
	})

	s.Run("different payloads map to different addresses", func() {
		a, err := s.store.Put(s.ctx, []byte("payload a"))
		s.Require().NoError(err)
		b, err := s.store.Put(s.ctx, []byte("payload b"))
		s.Require().NoError(err)
		s.NotEqual(a, b)
	})
}

func (s *MemoryStoreSuite) TestLabels() {
	s.Run("records the upload label", func() {
		addr, err := s.store.Put(s.ctx, []byte("labeled"), WithLabel("profile-did:ethr:sepolia:0xabc.json"))
		s.Require().NoError(err)
		s.Equal("profile-did:ethr:sepolia:0xabc.json", s.store.Label(addr))
	})

	s.Run("label never affects the address", func() {
		plain, err := s.store.Put(s.ctx, []byte("identical"))
		s.Require().NoError(err)
		labeled, err := s.store.Put(s.ctx, []byte("identical"), WithLabel("x.json"))
		s.Require().NoError(err)
		s.Equal(plain, labeled)
	})
}

func (s *MemoryStoreSuite) TestUnpin() {
	s.Run("releases the object", func() {
		addr, err := s.store.Put(s.ctx, []byte("ephemeral"))
		s.Require().NoError(err)

		s.Require().NoError(s.store.Unpin(s.ctx, addr))
		_, err = s.store.Get(s.ctx, addr)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unpinning an unknown address is a no-op", func() {
		addr, err := ComputeAddress([]byte("ghost"))
		s.Require().NoError(err)
		s.NoError(s.store.Unpin(s.ctx, addr))
	})
}
