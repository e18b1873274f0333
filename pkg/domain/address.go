package domain

import (
	"github.com/ipfs/go-cid"

	dErrors "didhub/pkg/domain-errors"
)

// Address locates an immutable byte payload in the content network.
// Invariant: the value is a valid CID; identical payloads always map to the
// same Address (content addressing).
type Address string

// ParseAddress constructs an Address from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or not a CID.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "content address cannot be empty")
	}
	if _, err := cid.Decode(s); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid content address")
	}
	return Address(s), nil
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}
