package domain

import (
	"time"

	pkgdomain "didhub/pkg/domain"
)

// Receipt describes the outcome of a state-changing ledger operation.
type Receipt struct {
	// Ref identifies the submission; callers poll with it while Pending.
	Ref    string                   `json:"ref"`
	Status pkgdomain.FinalityStatus `json:"status"`
	// Sequence is the ownership record's change-sequence number after the
	// mutation committed; zero otherwise.
	Sequence   uint64    `json:"sequence,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}
