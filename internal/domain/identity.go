package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	pkgdomain "didhub/pkg/domain"
)

// OwnershipRecord is the authoritative on-chain state for one identity.
// It is read fresh on every resolve; nothing here is cached across
// ownership-changing operations.
type OwnershipRecord struct {
	Identity pkgdomain.DID
	Owner    common.Address
	// Sequence increases on every mutation of the record, giving callers a
	// total order over ownership changes for this identity.
	Sequence  uint64
	Delegates []Delegate
	// DocumentRef optionally points at an off-chain document augmentation.
	DocumentRef pkgdomain.Address
}

// Delegate is a key holder granted a scoped, time-bounded capability over an
// identity by its owner.
type Delegate struct {
	Key    common.Address
	Role   string
	Expiry time.Time
	// OwnerBound delegates are invalidated when ownership changes.
	OwnerBound bool
	Revoked    bool
}

// ActiveAt evaluates delegate validity at the given instant. Expiry flips a
// delegate inactive without any further chain write.
func (d Delegate) ActiveAt(now time.Time) bool {
	return !d.Revoked && now.Before(d.Expiry)
}

// DelegateStatus is the read-only answer to a delegate validity check.
type DelegateStatus struct {
	Active bool      `json:"active"`
	Role   string    `json:"role,omitempty"`
	Expiry time.Time `json:"expiry,omitempty"`
}
