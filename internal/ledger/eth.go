package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"didhub/contracts/registry"
	dom "didhub/internal/domain"
	"didhub/internal/platform/config"
	"didhub/pkg/domain"
)

// EthClient implements Client against a deployed DIDRegistry contract.
type EthClient struct {
	eth           *ethclient.Client
	registry      *registry.Registry
	chainID       *big.Int
	confirmations uint64
	callTimeout   time.Duration
}

// DialEth connects to the configured RPC endpoint and binds the registry
// contract. The chain ID is cross-checked against configuration so a
// misconfigured endpoint fails at startup, not at first signature.
func DialEth(ctx context.Context, cfg config.Ledger) (*EthClient, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain id mismatch: endpoint reports %d, config says %d", chainID, cfg.ChainID)
	}
	reg, err := registry.NewRegistry(common.HexToAddress(cfg.RegistryAddress), eth)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("bind registry contract: %w", err)
	}
	return &EthClient{
		eth:           eth,
		registry:      reg,
		chainID:       chainID,
		confirmations: cfg.Confirmations,
		callTimeout:   cfg.CallTimeout,
	}, nil
}

// Close releases the RPC connection.
func (c *EthClient) Close() {
	c.eth.Close()
}

func (c *EthClient) callOpts(ctx context.Context) (*bind.CallOpts, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	return &bind.CallOpts{Context: ctx}, cancel
}

func (c *EthClient) IdentityOwner(ctx context.Context, identity common.Address) (common.Address, error) {
	opts, cancel := c.callOpts(ctx)
	defer cancel()
	return c.registry.IdentityOwner(opts, identity)
}

func (c *EthClient) Changed(ctx context.Context, identity common.Address) (uint64, error) {
	opts, cancel := c.callOpts(ctx)
	defer cancel()
	changed, err := c.registry.Changed(opts, identity)
	if err != nil {
		return 0, err
	}
	return changed.Uint64(), nil
}

func (c *EthClient) Delegates(ctx context.Context, identity common.Address) ([]dom.Delegate, error) {
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	count, err := c.registry.DelegateCount(opts, identity)
	if err != nil {
		return nil, err
	}
	n := count.Int64()
	delegates := make([]dom.Delegate, 0, n)
	for i := int64(0); i < n; i++ {
		data, err := c.registry.DelegateAt(opts, identity, big.NewInt(i))
		if err != nil {
			return nil, err
		}
		delegates = append(delegates, dom.Delegate{
			Key:        data.Key,
			Role:       roleFromBytes(data.Role),
			Expiry:     time.Unix(data.ValidTo.Int64(), 0).UTC(),
			OwnerBound: data.OwnerBound,
			Revoked:    data.Revoked,
		})
	}
	return delegates, nil
}

func (c *EthClient) DocumentRef(ctx context.Context, identity common.Address) (string, error) {
	opts, cancel := c.callOpts(ctx)
	defer cancel()
	return c.registry.DocumentRef(opts, identity)
}

func (c *EthClient) SubmitRegister(ctx context.Context, signer *Signer) (TxRef, error) {
	return c.submit(ctx, signer, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.registry.RegisterIdentity(opts)
	})
}

func (c *EthClient) SubmitAddDelegate(ctx context.Context, signer *Signer, identity, delegate common.Address, role string, validTo time.Time, ownerBound bool) (TxRef, error) {
	return c.submit(ctx, signer, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.registry.AddDelegate(opts, identity, delegate, roleToBytes(role), big.NewInt(validTo.Unix()), ownerBound)
	})
}

func (c *EthClient) SubmitRevokeDelegate(ctx context.Context, signer *Signer, identity, delegate common.Address) (TxRef, error) {
	return c.submit(ctx, signer, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.registry.RevokeDelegate(opts, identity, delegate)
	})
}

func (c *EthClient) SubmitChangeOwner(ctx context.Context, signer *Signer, identity, newOwner common.Address, expectedSeq uint64) (TxRef, error) {
	return c.submit(ctx, signer, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.registry.ChangeOwner(opts, identity, newOwner, new(big.Int).SetUint64(expectedSeq))
	})
}

func (c *EthClient) SubmitSetDocumentRef(ctx context.Context, signer *Signer, identity common.Address, ref string) (TxRef, error) {
	return c.submit(ctx, signer, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.registry.SetDocumentRef(opts, identity, ref)
	})
}

func (c *EthClient) submit(ctx context.Context, signer *Signer, send func(*bind.TransactOpts) (*types.Transaction, error)) (TxRef, error) {
	opts, err := signer.TransactOpts(c.chainID)
	if err != nil {
		return TxRef{}, err
	}
	opts.Context = ctx
	tx, err := send(opts)
	if err != nil {
		return TxRef{}, err
	}
	return TxRef{ID: uuid.NewString(), Hash: tx.Hash()}, nil
}

// TxStatus reports Pending until the transaction is mined and buried under
// the configured confirmation depth. A mined-but-reverted transaction is
// Rejected; classification of Superseded happens in the controller, which
// knows the expected sequence.
func (c *EthClient) TxStatus(ctx context.Context, ref TxRef) (TxState, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, ref.Hash)
	if errors.Is(err, ethereum.NotFound) {
		return TxState{Status: domain.StatusPending}, nil
	}
	if err != nil {
		return TxState{}, err
	}

	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return TxState{}, err
	}
	if head < receipt.BlockNumber.Uint64()+c.confirmations {
		return TxState{Status: domain.StatusPending}, nil
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return TxState{Status: domain.StatusRejected, Reason: "transaction reverted"}, nil
	}
	return TxState{Status: domain.StatusCommitted}, nil
}

func roleToBytes(role string) [32]byte {
	var out [32]byte
	copy(out[:], role)
	return out
}

func roleFromBytes(raw [32]byte) string {
	return string(bytes.TrimRight(raw[:], "\x00"))
}
