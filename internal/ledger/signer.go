package ledger

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	dErrors "didhub/pkg/domain-errors"
)

// Signer wraps caller-owned key material for the duration of one call.
// The core never persists it; content and registry state only ever hold the
// derived address.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner wraps an in-memory private key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// SignerFromHex parses a hex-encoded secp256k1 private key.
func SignerFromHex(hexKey string) (*Signer, error) {
	if hexKey == "" {
		return nil, dErrors.New(dErrors.CodeSignerUnavailable, "no signing key supplied")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid signing key")
	}
	return &Signer{key: key}, nil
}

// Address derives the key holder's on-chain address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// TransactOpts builds EIP-155 signing options for one transaction.
func (s *Signer) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}
