package domain

// FinalityStatus is the explicit state machine for two-phase ledger writes.
// A mutation is Submitted the moment the ledger accepts it, Pending while
// finality is awaited, and exactly one of Committed/Rejected/Superseded once
// finality is observed. Success is never reported before finality.
type FinalityStatus string

const (
	StatusSubmitted FinalityStatus = "submitted"
	StatusPending   FinalityStatus = "pending"
	StatusCommitted FinalityStatus = "committed"
	StatusRejected  FinalityStatus = "rejected"
	// StatusSuperseded means a concurrent mutation won the sequence race;
	// the losing caller must re-read before retrying.
	StatusSuperseded FinalityStatus = "superseded"
	// StatusAlreadyRevoked reports the idempotent no-op outcome of revoking a
	// delegate that was not active, distinctly from a fresh revocation.
	StatusAlreadyRevoked FinalityStatus = "already_revoked"
)

// Terminal reports whether the status will never change again.
func (s FinalityStatus) Terminal() bool {
	switch s {
	case StatusCommitted, StatusRejected, StatusSuperseded, StatusAlreadyRevoked:
		return true
	}
	return false
}
