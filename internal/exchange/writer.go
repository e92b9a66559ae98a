package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

// Writer submits exchange and token transactions signed by opts.
type Writer struct {
	backend  bind.ContractBackend
	deployer bind.DeployBackend
	opts     *bind.TransactOpts
	exchange common.Address
	contract *bind.BoundContract
}

// NewWriter binds the exchange contract for transactions.
func NewWriter(backend bind.ContractBackend, deployer bind.DeployBackend, opts *bind.TransactOpts, exchange common.Address) (*Writer, error) {
	if opts == nil {
		return nil, fmt.Errorf("transact opts are nil")
	}
	parsed, err := ExchangeABI()
	if err != nil {
		return nil, fmt.Errorf("parse exchange abi: %w", err)
	}
	return &Writer{
		backend:  backend,
		deployer: deployer,
		opts:     opts,
		exchange: exchange,
		contract: bind.NewBoundContract(exchange, parsed, backend, backend, backend),
	}, nil
}

// From returns the signing account.
func (w *Writer) From() common.Address {
	return w.opts.From
}

// Approve lets the exchange pull amount of token from the signer.
func (w *Writer) Approve(ctx context.Context, token common.Address, amount *big.Int) (*types.Transaction, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	tokenContract := bind.NewBoundContract(token, parsed, w.backend, w.backend, w.backend)
	return tokenContract.Transact(w.txOpts(ctx), "approve", w.exchange, amount)
}

// DepositToken moves approved tokens into the exchange.
func (w *Writer) DepositToken(ctx context.Context, token common.Address, amount *big.Int) (*types.Transaction, error) {
	return w.contract.Transact(w.txOpts(ctx), "depositToken", token, amount)
}

// WithdrawToken moves tokens out of the exchange.
func (w *Writer) WithdrawToken(ctx context.Context, token common.Address, amount *big.Int) (*types.Transaction, error) {
	return w.contract.Transact(w.txOpts(ctx), "withdrawToken", token, amount)
}

// MakeOrder creates an order giving amountGive of tokenGive for amountGet of tokenGet.
func (w *Writer) MakeOrder(ctx context.Context, tokenGet common.Address, amountGet *big.Int, tokenGive common.Address, amountGive *big.Int) (*types.Transaction, error) {
	return w.contract.Transact(w.txOpts(ctx), "makeOrder", tokenGet, amountGet, tokenGive, amountGive)
}

// CancelOrder cancels one of the signer's open orders.
func (w *Writer) CancelOrder(ctx context.Context, id *big.Int) (*types.Transaction, error) {
	return w.contract.Transact(w.txOpts(ctx), "cancelOrder", id)
}

// FillOrder takes an open order.
func (w *Writer) FillOrder(ctx context.Context, id *big.Int) (*types.Transaction, error) {
	return w.contract.Transact(w.txOpts(ctx), "fillOrder", id)
}

// WaitMined blocks until tx is included and fails on a reverted receipt.
func (w *Writer) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, w.deployer, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

func (w *Writer) txOpts(ctx context.Context) *bind.TransactOpts {
	opts := *w.opts
	opts.Context = ctx
	return &opts
}
