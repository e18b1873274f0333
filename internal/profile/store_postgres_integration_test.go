//go:build integration

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	dom "didhub/internal/domain"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
	"didhub/pkg/testutil/containers"
)

type PostgresCheckpointSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresCheckpointStore
	ctx   context.Context
}

func (s *PostgresCheckpointSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.ctx = context.Background()
	s.store = NewPostgresCheckpointStore(s.pg.Pool)
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresCheckpointSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(s.ctx, "TRUNCATE profile_checkpoints")
	s.Require().NoError(err)
}

func TestPostgresCheckpointSuite(t *testing.T) {
	suite.Run(t, new(PostgresCheckpointSuite))
}

func (s *PostgresCheckpointSuite) sample() Checkpoint {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return Checkpoint{
		DID:        domain.NewDID("sepolia", common.BytesToAddress([]byte("checkpoint-test"))),
		Step:       StepStoreDocument,
		Attributes: map[string]string{"displayName": "Alice"},
		Services: []dom.Service{{
			ID:              "#inbox",
			Type:            "MessagingService",
			ServiceEndpoint: "https://inbox.example.com",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresCheckpointSuite) TestSaveAndLoad() {
	s.Run("round-trips a checkpoint", func() {
		cp := s.sample()
		s.Require().NoError(s.store.Save(s.ctx, cp))

		loaded, err := s.store.Load(s.ctx, cp.DID)
		s.Require().NoError(err)
		s.Equal(cp.DID, loaded.DID)
		s.Equal(cp.Step, loaded.Step)
		s.Equal(cp.Attributes, loaded.Attributes)
		s.Equal(cp.Services, loaded.Services)
		s.True(cp.CreatedAt.Equal(loaded.CreatedAt))
	})

	s.Run("saving again advances the step in place", func() {
		cp := s.sample()
		s.Require().NoError(s.store.Save(s.ctx, cp))

		cp.Step = StepStoreProfile
		cp.ProfileAddress = domain.Address("bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy")
		cp.UpdatedAt = cp.UpdatedAt.Add(time.Minute)
		s.Require().NoError(s.store.Save(s.ctx, cp))

		loaded, err := s.store.Load(s.ctx, cp.DID)
		s.Require().NoError(err)
		s.Equal(StepStoreProfile, loaded.Step)
		s.Equal(cp.ProfileAddress, loaded.ProfileAddress)
	})

	s.Run("loading an unknown DID is not found", func() {
		_, err := s.store.Load(s.ctx, domain.NewDID("sepolia", common.BytesToAddress([]byte("unknown"))))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PostgresCheckpointSuite) TestClear() {
	s.Run("removes the checkpoint", func() {
		cp := s.sample()
		s.Require().NoError(s.store.Save(s.ctx, cp))
		s.Require().NoError(s.store.Clear(s.ctx, cp.DID))

		_, err := s.store.Load(s.ctx, cp.DID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("clearing an absent checkpoint is a no-op", func() {
		s.NoError(s.store.Clear(s.ctx, s.sample().DID))
	})
}
