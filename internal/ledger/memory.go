package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	dom "didhub/internal/domain"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// MemoryLedger is an in-process Client for tests and local development. It
// mirrors contract semantics: mutations are serialized in mine order, the
// sequence number bumps on every mutation, and a ChangeOwner whose expected
// sequence lost a race is rejected.
//
// By default transactions mine immediately. SetAutoMine(false) holds
// submissions in a queue so tests can stage concurrent writers against the
// same starting sequence number before releasing them with MineAll.
type MemoryLedger struct {
	mu       sync.Mutex
	records  map[common.Address]*memRecord
	txs      map[common.Hash]*memTx
	queue    []*memTx
	autoMine bool
}

type memRecord struct {
	owner     common.Address
	seq       uint64
	delegates []dom.Delegate
	docRef    string
}

type memTx struct {
	ref   TxRef
	state TxState
	apply func() TxState
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records:  make(map[common.Address]*memRecord),
		txs:      make(map[common.Hash]*memTx),
		autoMine: true,
	}
}

// SetAutoMine toggles immediate mining of submissions.
func (l *MemoryLedger) SetAutoMine(auto bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoMine = auto
}

// QueuedCount reports how many submissions await mining (test helper).
func (l *MemoryLedger) QueuedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// MineAll applies every queued transaction in submission order.
func (l *MemoryLedger) MineAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range l.queue {
		tx.state = tx.apply()
	}
	l.queue = nil
}

func (l *MemoryLedger) IdentityOwner(_ context.Context, identity common.Address) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[identity]
	if !ok {
		return common.Address{}, nil
	}
	return rec.owner, nil
}

func (l *MemoryLedger) Changed(_ context.Context, identity common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[identity]
	if !ok {
		return 0, nil
	}
	return rec.seq, nil
}

func (l *MemoryLedger) Delegates(_ context.Context, identity common.Address) ([]dom.Delegate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[identity]
	if !ok {
		return nil, nil
	}
	out := make([]dom.Delegate, len(rec.delegates))
	copy(out, rec.delegates)
	return out, nil
}

func (l *MemoryLedger) DocumentRef(_ context.Context, identity common.Address) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[identity]
	if !ok {
		return "", nil
	}
	return rec.docRef, nil
}

func (l *MemoryLedger) SubmitRegister(_ context.Context, signer *Signer) (TxRef, error) {
	owner := signer.Address()
	return l.enqueue(func() TxState {
		if _, exists := l.records[owner]; exists {
			return TxState{Status: domain.StatusRejected, Reason: "identity already registered"}
		}
		l.records[owner] = &memRecord{owner: owner, seq: 1}
		return TxState{Status: domain.StatusCommitted}
	}), nil
}

func (l *MemoryLedger) SubmitAddDelegate(_ context.Context, signer *Signer, identity, delegate common.Address, role string, validTo time.Time, ownerBound bool) (TxRef, error) {
	caller := signer.Address()
	return l.enqueue(func() TxState {
		rec, state := l.authorized(identity, caller)
		if rec == nil {
			return state
		}
		updated := false
		for i := range rec.delegates {
			if rec.delegates[i].Key == delegate {
				rec.delegates[i] = dom.Delegate{Key: delegate, Role: role, Expiry: validTo, OwnerBound: ownerBound}
				updated = true
				break
			}
		}
		if !updated {
			rec.delegates = append(rec.delegates, dom.Delegate{Key: delegate, Role: role, Expiry: validTo, OwnerBound: ownerBound})
		}
		rec.seq++
		return TxState{Status: domain.StatusCommitted}
	}), nil
}

func (l *MemoryLedger) SubmitRevokeDelegate(_ context.Context, signer *Signer, identity, delegate common.Address) (TxRef, error) {
	caller := signer.Address()
	return l.enqueue(func() TxState {
		rec, state := l.authorized(identity, caller)
		if rec == nil {
			return state
		}
		for i := range rec.delegates {
			if rec.delegates[i].Key == delegate && !rec.delegates[i].Revoked {
				rec.delegates[i].Revoked = true
				rec.seq++
				return TxState{Status: domain.StatusCommitted}
			}
		}
		return TxState{Status: domain.StatusRejected, Reason: "delegate not active"}
	}), nil
}

func (l *MemoryLedger) SubmitChangeOwner(_ context.Context, signer *Signer, identity, newOwner common.Address, expectedSeq uint64) (TxRef, error) {
	caller := signer.Address()
	return l.enqueue(func() TxState {
		rec, state := l.authorized(identity, caller)
		if rec == nil {
			return state
		}
		if rec.seq != expectedSeq {
			return TxState{Status: domain.StatusRejected, Reason: "sequence mismatch"}
		}
		rec.owner = newOwner
		for i := range rec.delegates {
			if rec.delegates[i].OwnerBound {
				rec.delegates[i].Revoked = true
			}
		}
		rec.seq++
		return TxState{Status: domain.StatusCommitted}
	}), nil
}

func (l *MemoryLedger) SubmitSetDocumentRef(_ context.Context, signer *Signer, identity common.Address, ref string) (TxRef, error) {
	caller := signer.Address()
	return l.enqueue(func() TxState {
		rec, state := l.authorized(identity, caller)
		if rec == nil {
			return state
		}
		rec.docRef = ref
		rec.seq++
		return TxState{Status: domain.StatusCommitted}
	}), nil
}

func (l *MemoryLedger) TxStatus(_ context.Context, ref TxRef) (TxState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[ref.Hash]
	if !ok {
		return TxState{}, dErrors.Newf(dErrors.CodeNotFound, "unknown transaction %s", ref.ID)
	}
	return tx.state, nil
}

// authorized returns the record when caller is its current owner, or nil and
// the rejection state the contract would produce.
func (l *MemoryLedger) authorized(identity, caller common.Address) (*memRecord, TxState) {
	rec, ok := l.records[identity]
	if !ok {
		return nil, TxState{Status: domain.StatusRejected, Reason: "identity not registered"}
	}
	if rec.owner != caller {
		return nil, TxState{Status: domain.StatusRejected, Reason: "caller is not owner"}
	}
	return rec, TxState{}
}

func (l *MemoryLedger) enqueue(apply func() TxState) TxRef {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.NewString()
	ref := TxRef{ID: id, Hash: crypto.Keccak256Hash([]byte(id))}
	tx := &memTx{ref: ref, state: TxState{Status: domain.StatusPending}, apply: apply}
	l.txs[ref.Hash] = tx

	if l.autoMine {
		tx.state = tx.apply()
	} else {
		l.queue = append(l.queue, tx)
	}
	return ref
}
