// Package registry is a thin Go binding for the DIDRegistry contract.
// Hand-rolled rather than abigen-generated: the contract surface is small and
// a typed wrapper around bind.BoundContract keeps the diff reviewable when the
// contract changes.
package registry

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RegistryABI is the input ABI of the deployed DIDRegistry contract.
const RegistryABI = `[
  {"type":"function","name":"identityOwner","stateMutability":"view","inputs":[{"name":"identity","type":"address"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"changed","stateMutability":"view","inputs":[{"name":"identity","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"documentRef","stateMutability":"view","inputs":[{"name":"identity","type":"address"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"delegateCount","stateMutability":"view","inputs":[{"name":"identity","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"delegateAt","stateMutability":"view","inputs":[{"name":"identity","type":"address"},{"name":"index","type":"uint256"}],"outputs":[{"name":"key","type":"address"},{"name":"role","type":"bytes32"},{"name":"validTo","type":"uint256"},{"name":"ownerBound","type":"bool"},{"name":"revoked","type":"bool"}]},
  {"type":"function","name":"registerIdentity","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"addDelegate","stateMutability":"nonpayable","inputs":[{"name":"identity","type":"address"},{"name":"delegate","type":"address"},{"name":"role","type":"bytes32"},{"name":"validity","type":"uint256"},{"name":"ownerBound","type":"bool"}],"outputs":[]},
  {"type":"function","name":"revokeDelegate","stateMutability":"nonpayable","inputs":[{"name":"identity","type":"address"},{"name":"delegate","type":"address"}],"outputs":[]},
  {"type":"function","name":"changeOwner","stateMutability":"nonpayable","inputs":[{"name":"identity","type":"address"},{"name":"newOwner","type":"address"},{"name":"expectedChanged","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"setDocumentRef","stateMutability":"nonpayable","inputs":[{"name":"identity","type":"address"},{"name":"ref","type":"string"}],"outputs":[]},
  {"type":"event","name":"DIDOwnerChanged","inputs":[{"name":"identity","type":"address","indexed":true},{"name":"owner","type":"address","indexed":false},{"name":"previousChange","type":"uint256","indexed":false}]},
  {"type":"event","name":"DIDDelegateChanged","inputs":[{"name":"identity","type":"address","indexed":true},{"name":"delegate","type":"address","indexed":false},{"name":"role","type":"bytes32","indexed":false},{"name":"validTo","type":"uint256","indexed":false}]}
]`

// DelegateData mirrors the delegateAt return tuple.
type DelegateData struct {
	Key        common.Address
	Role       [32]byte
	ValidTo    *big.Int
	OwnerBound bool
	Revoked    bool
}

// Registry wraps a deployed DIDRegistry contract instance.
type Registry struct {
	contract *bind.BoundContract
}

// NewRegistry binds to a deployed contract at the given address.
func NewRegistry(address common.Address, backend bind.ContractBackend) (*Registry, error) {
	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, err
	}
	return &Registry{contract: bind.NewBoundContract(address, parsed, backend, backend, backend)}, nil
}

func (r *Registry) IdentityOwner(opts *bind.CallOpts, identity common.Address) (common.Address, error) {
	var out []interface{}
	err := r.contract.Call(opts, &out, "identityOwner", identity)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (r *Registry) Changed(opts *bind.CallOpts, identity common.Address) (*big.Int, error) {
	var out []interface{}
	err := r.contract.Call(opts, &out, "changed", identity)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (r *Registry) DocumentRef(opts *bind.CallOpts, identity common.Address) (string, error) {
	var out []interface{}
	err := r.contract.Call(opts, &out, "documentRef", identity)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (r *Registry) DelegateCount(opts *bind.CallOpts, identity common.Address) (*big.Int, error) {
	var out []interface{}
	err := r.contract.Call(opts, &out, "delegateCount", identity)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (r *Registry) DelegateAt(opts *bind.CallOpts, identity common.Address, index *big.Int) (DelegateData, error) {
	var out []interface{}
	err := r.contract.Call(opts, &out, "delegateAt", identity, index)
	if err != nil {
		return DelegateData{}, err
	}
	return DelegateData{
		Key:        *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Role:       *abi.ConvertType(out[1], new([32]byte)).(*[32]byte),
		ValidTo:    *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		OwnerBound: *abi.ConvertType(out[3], new(bool)).(*bool),
		Revoked:    *abi.ConvertType(out[4], new(bool)).(*bool),
	}, nil
}

func (r *Registry) RegisterIdentity(opts *bind.TransactOpts) (*types.Transaction, error) {
	return r.contract.Transact(opts, "registerIdentity")
}

func (r *Registry) AddDelegate(opts *bind.TransactOpts, identity, delegate common.Address, role [32]byte, validity *big.Int, ownerBound bool) (*types.Transaction, error) {
	return r.contract.Transact(opts, "addDelegate", identity, delegate, role, validity, ownerBound)
}

func (r *Registry) RevokeDelegate(opts *bind.TransactOpts, identity, delegate common.Address) (*types.Transaction, error) {
	return r.contract.Transact(opts, "revokeDelegate", identity, delegate)
}

func (r *Registry) ChangeOwner(opts *bind.TransactOpts, identity, newOwner common.Address, expectedChanged *big.Int) (*types.Transaction, error) {
	return r.contract.Transact(opts, "changeOwner", identity, newOwner, expectedChanged)
}

func (r *Registry) SetDocumentRef(opts *bind.TransactOpts, identity common.Address, ref string) (*types.Transaction, error) {
	return r.contract.Transact(opts, "setDocumentRef", identity, ref)
}
