package resolver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"didhub/internal/content"
	dom "didhub/internal/domain"
	"didhub/internal/ledger"
	mockcontent "didhub/mocks/content"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	ledger     *ledger.MemoryLedger
	controller *ledger.Controller
	store      *content.MemoryStore
	resolver   *Resolver
	ctx        context.Context
}

func (s *ResolverSuite) SetupTest() {
	s.ledger = ledger.NewMemoryLedger()
	s.store = content.NewMemoryStore()
	s.ctx = context.Background()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	controller, err := ledger.New(s.ledger, "sepolia", ledger.WithLogger(log), ledger.WithPollInterval(time.Millisecond))
	s.Require().NoError(err)
	s.controller = controller

	resolver, err := New(controller, s.store, WithLogger(log))
	s.Require().NoError(err)
	s.resolver = resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) createIdentity() (*ledger.Signer, domain.DID) {
	signer := newSigner(s.T())
	did, _, err := s.controller.CreateIdentity(s.ctx, signer)
	s.Require().NoError(err)
	return signer, did
}

func (s *ResolverSuite) TestResolve() {
	s.Run("unknown identities are not resolvable", func() {
		did := domain.NewDID("sepolia", newSigner(s.T()).Address())
		_, err := s.resolver.Resolve(s.ctx, did)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownIdentity))
	})

	s.Run("a fresh identity resolves to its controller-only document", func() {
		signer, did := s.createIdentity()

		doc, err := s.resolver.Resolve(s.ctx, did)
		s.Require().NoError(err)
		s.Equal(did.String(), doc.ID)
		s.Equal(did.String(), doc.Controller)
		s.Equal("1", doc.VersionID)
		s.Require().Len(doc.VerificationMethod, 1)
		s.Contains(doc.VerificationMethod[0].BlockchainAccountID, signer.Address().Hex())
		s.Empty(doc.Service)
	})

	s.Run("the version id tracks the sequence number", func() {
		signer, did := s.createIdentity()
		_, err := s.controller.AddDelegate(s.ctx, signer, did, newSigner(s.T()).Address(), "veriKey", time.Hour, false)
		s.Require().NoError(err)

		doc, err := s.resolver.Resolve(s.ctx, did)
		s.Require().NoError(err)
		s.Equal("2", doc.VersionID)
	})

	s.Run("active sigAuth delegates land in authentication", func() {
		signer, did := s.createIdentity()
		authDelegate := newSigner(s.T()).Address()
		plainDelegate := newSigner(s.T()).Address()

		_, err := s.controller.AddDelegate(s.ctx, signer, did, authDelegate, dom.RoleAuthenticator, time.Hour, false)
		s.Require().NoError(err)
		_, err = s.controller.AddDelegate(s.ctx, signer, did, plainDelegate, "veriKey", time.Hour, false)
		s.Require().NoError(err)

		doc, err := s.resolver.Resolve(s.ctx, did)
		s.Require().NoError(err)
		s.Len(doc.VerificationMethod, 3)
		s.Len(doc.Authentication, 2)
	})
}

func (s *ResolverSuite) TestAugmentationPrecedence() {
	s.Run("off-chain fields merge, on-chain facts win", func() {
		signer, did := s.createIdentity()

		aug := dom.DocumentAugmentation{
			// Attempts to shadow on-chain facts must be ignored.
			ID:          "did:ethr:sepolia:0x0000000000000000000000000000000000000bad",
			Controller:  "did:ethr:sepolia:0x0000000000000000000000000000000000000bad",
			AlsoKnownAs: []string{"https://example.com/~alice"},
			Service: []dom.Service{{
				ID:              did.String() + "#files",
				Type:            "FileStorage",
				ServiceEndpoint: "https://files.example.com",
			}},
			Updated: "2026-08-01T10:00:00Z",
		}
		payload, err := json.Marshal(aug)
		s.Require().NoError(err)
		addr, err := s.store.Put(s.ctx, payload)
		s.Require().NoError(err)
		_, err = s.controller.SetDocumentRef(s.ctx, signer, did, addr)
		s.Require().NoError(err)

		doc, err := s.resolver.Resolve(s.ctx, did)
		s.Require().NoError(err)
		s.Equal(did.String(), doc.ID)
		s.Equal(did.String(), doc.Controller)
		s.Equal([]string{"https://example.com/~alice"}, doc.AlsoKnownAs)
		s.Require().Len(doc.Service, 1)
		s.Equal("FileStorage", doc.Service[0].Type)
		s.Equal("2026-08-01T10:00:00Z", doc.Updated)
	})
}

func (s *ResolverSuite) TestDocumentUnavailable() {
	s.Run("a failed content fetch degrades, keeping ledger facts", func() {
		signer, did := s.createIdentity()
		addr, err := content.ComputeAddress([]byte("anchored but unreachable"))
		s.Require().NoError(err)
		_, err = s.controller.SetDocumentRef(s.ctx, signer, did, addr)
		s.Require().NoError(err)

		ctrl := gomock.NewController(s.T())
		store := mockcontent.NewMockStore(ctrl)
		store.EXPECT().Get(gomock.Any(), addr).
			Return(nil, dErrors.New(dErrors.CodeInternal, "gateway unreachable"))

		resolver, err := New(s.controller, store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		s.Require().NoError(err)

		doc, err := resolver.Resolve(s.ctx, did)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDocumentUnavailable))
		// The ledger-derived portion is still returned.
		s.Equal(did.String(), doc.ID)
		s.Equal("2", doc.VersionID)
	})
}

func (s *ResolverSuite) TestResolutionTimeout() {
	s.Run("a stalled ledger read is reported distinctly", func() {
		resolver, err := New(stalledReader{}, s.store,
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			WithLedgerWindow(20*time.Millisecond),
		)
		s.Require().NoError(err)

		did := domain.NewDID("sepolia", newSigner(s.T()).Address())
		_, err = resolver.Resolve(s.ctx, did)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeResolutionTimeout))
	})
}

// stalledReader blocks until the bounded ledger window expires.
type stalledReader struct{}

func (stalledReader) Record(ctx context.Context, _ domain.DID) (dom.OwnershipRecord, error) {
	<-ctx.Done()
	return dom.OwnershipRecord{}, ctx.Err()
}

func newSigner(t *testing.T) *ledger.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return ledger.NewSigner(key)
}
