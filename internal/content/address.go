package content

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// ComputeAddress derives the CIDv1 (raw codec, sha2-256) for a payload.
// The address is computed locally so Put can verify the gateway's answer and
// Get can verify payload integrity without trusting the transport.
func ComputeAddress(data []byte) (domain.Address, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "hashing payload")
	}
	return domain.Address(cid.NewCidV1(cid.Raw, mh).String()), nil
}

// Verify checks that data hashes to addr.
func Verify(addr domain.Address, data []byte) error {
	computed, err := ComputeAddress(data)
	if err != nil {
		return err
	}
	if computed != addr {
		return dErrors.Newf(dErrors.CodeDocumentUnavailable,
			"payload digest mismatch: want %s, got %s", addr, computed)
	}
	return nil
}
