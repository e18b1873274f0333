package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "didhub/pkg/domain-errors"
)

// DID is a decentralized identifier of the form did:ethr:<network>:<address>.
// Invariant: the address segment is a checksummed 20-byte hex address.
//
// Usage: construct via ParseDID at trust boundaries or NewDID from known-good
// parts; direct casting bypasses validation.
type DID string

const didMethod = "ethr"

// NewDID builds a DID from a network name and an on-chain identity address.
func NewDID(network string, identity common.Address) DID {
	return DID(fmt.Sprintf("did:%s:%s:%s", didMethod, network, identity.Hex()))
}

// ParseDID constructs a DID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, uses an unsupported
// method, or carries a malformed address segment.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did cannot be empty")
	}
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != "did" {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "malformed did %q", s)
	}
	if parts[1] != didMethod {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported did method %q", parts[1])
	}
	if !common.IsHexAddress(parts[3]) {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid identity address %q", parts[3])
	}
	return DID(fmt.Sprintf("did:%s:%s:%s", didMethod, parts[2], common.HexToAddress(parts[3]).Hex())), nil
}

// Network returns the network segment of the DID.
func (d DID) Network() string {
	parts := strings.Split(string(d), ":")
	if len(parts) != 4 {
		return ""
	}
	return parts[2]
}

// Identity returns the on-chain address the DID names.
func (d DID) Identity() common.Address {
	parts := strings.Split(string(d), ":")
	if len(parts) != 4 {
		return common.Address{}
	}
	return common.HexToAddress(parts[3])
}

// IsZero reports whether the DID is unset.
func (d DID) IsZero() bool {
	return d == ""
}

func (d DID) String() string {
	return string(d)
}
