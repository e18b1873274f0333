// Package ledger issues state-changing operations against the on-chain
// ownership registry and waits for their finality. All mutations are
// two-phase: submission yields a pending reference, and success is only
// reported once finality is observed.
package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	dom "didhub/internal/domain"
	"didhub/pkg/domain"
)

// TxRef identifies a submitted mutation while finality is pending.
type TxRef struct {
	ID   string      `json:"id"`
	Hash common.Hash `json:"hash"`
}

// TxState is the ledger's answer to a finality poll. Sequence is filled by
// the controller after commit, not by the client.
type TxState struct {
	Status domain.FinalityStatus
	Reason string
}

// Client abstracts the registry contract. The production implementation talks
// to an RPC endpoint through the bound DIDRegistry contract; the in-memory
// implementation backs unit tests and local development.
type Client interface {
	// Reads. Owner is the zero address for unregistered identities.
	IdentityOwner(ctx context.Context, identity common.Address) (common.Address, error)
	Changed(ctx context.Context, identity common.Address) (uint64, error)
	Delegates(ctx context.Context, identity common.Address) ([]dom.Delegate, error)
	DocumentRef(ctx context.Context, identity common.Address) (string, error)

	// Submissions. These return as soon as the ledger accepts the
	// transaction; finality is observed separately via TxStatus.
	SubmitRegister(ctx context.Context, signer *Signer) (TxRef, error)
	SubmitAddDelegate(ctx context.Context, signer *Signer, identity, delegate common.Address, role string, validTo time.Time, ownerBound bool) (TxRef, error)
	SubmitRevokeDelegate(ctx context.Context, signer *Signer, identity, delegate common.Address) (TxRef, error)
	SubmitChangeOwner(ctx context.Context, signer *Signer, identity, newOwner common.Address, expectedSeq uint64) (TxRef, error)
	SubmitSetDocumentRef(ctx context.Context, signer *Signer, identity common.Address, ref string) (TxRef, error)

	// TxStatus reports Pending until the transaction is buried under the
	// configured number of confirmations, then Committed or Rejected.
	TxStatus(ctx context.Context, ref TxRef) (TxState, error)
}

// Reader is the read-only subset the resolver needs.
type Reader interface {
	IdentityOwner(ctx context.Context, identity common.Address) (common.Address, error)
	Changed(ctx context.Context, identity common.Address) (uint64, error)
	Delegates(ctx context.Context, identity common.Address) ([]dom.Delegate, error)
	DocumentRef(ctx context.Context, identity common.Address) (string, error)
}
