// Package orchestrator issues user-initiated exchange transactions and keeps
// the account's balance sheet in step with them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexScope/internal/chain"
	"dexScope/internal/metrics"
	"dexScope/internal/model"
	"dexScope/internal/units"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrUnknownToken  = errors.New("token is not part of the active pair")
)

// Exchange is the write and balance surface of the exchange contract.
type Exchange interface {
	From() common.Address
	WalletBalance(ctx context.Context, token, user common.Address) (*big.Int, error)
	ExchangeBalance(ctx context.Context, token, user common.Address) (*big.Int, error)
	Approve(ctx context.Context, token common.Address, amount *big.Int) (*types.Transaction, error)
	DepositToken(ctx context.Context, token common.Address, amount *big.Int) (*types.Transaction, error)
	WithdrawToken(ctx context.Context, token common.Address, amount *big.Int) (*types.Transaction, error)
	MakeOrder(ctx context.Context, tokenGet common.Address, amountGet *big.Int, tokenGive common.Address, amountGive *big.Int) (*types.Transaction, error)
	CancelOrder(ctx context.Context, id *big.Int) (*types.Transaction, error)
	FillOrder(ctx context.Context, id *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// BalanceLoader reads both pair tokens' wallet and exchange balances.
type BalanceLoader interface {
	LoadBalances(ctx context.Context, pair model.TokenPair, account common.Address) (model.BalanceSheet, error)
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Orchestrator runs one transaction flow at a time.
type Orchestrator struct {
	cfg      Config
	exchange Exchange
	balances BalanceLoader
	pair     model.TokenPair
	logger   *zap.Logger

	mu    sync.Mutex
	state model.TransactionState
	sheet model.BalanceSheet
}

func New(cfg Config, exchange Exchange, balances BalanceLoader, pair model.TokenPair, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	return &Orchestrator{cfg: cfg, exchange: exchange, balances: balances, pair: pair, logger: logger}
}

// State returns the state of the most recent transaction flow.
func (o *Orchestrator) State() model.TransactionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	state := o.state
	state.TxHashes = append([]string(nil), o.state.TxHashes...)
	return state
}

// Balances returns the balance sheet loaded after the last flow.
func (o *Orchestrator) Balances() model.BalanceSheet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sheet
}

// Transfer deposits or withdraws amount of token. A deposit approves the
// exchange and then deposits, waiting for each transaction to be mined
// before sending the next. Balances are reloaded when the flow ends.
func (o *Orchestrator) Transfer(ctx context.Context, direction model.TransactionType, token common.Address, amount *big.Int) (model.TransactionState, error) {
	if direction != model.TxDeposit && direction != model.TxWithdraw {
		return model.TransactionState{}, fmt.Errorf("unsupported transfer direction %q", direction)
	}
	o.begin(direction)
	defer o.reloadBalances(ctx)

	if amount == nil || amount.Sign() <= 0 {
		return o.fail(ErrInvalidAmount)
	}
	if token != o.pair.Token0.Address && token != o.pair.Token1.Address {
		return o.fail(ErrUnknownToken)
	}

	account := o.exchange.From()
	if direction == model.TxDeposit {
		if err := o.requireBalance(ctx, "wallet", o.exchange.WalletBalance, token, account, amount); err != nil {
			return o.fail(err)
		}
		if err := o.send(ctx, "approve", func(ctx context.Context) (*types.Transaction, error) {
			return o.exchange.Approve(ctx, token, amount)
		}); err != nil {
			return o.fail(err)
		}
		if err := o.send(ctx, "deposit", func(ctx context.Context) (*types.Transaction, error) {
			return o.exchange.DepositToken(ctx, token, amount)
		}); err != nil {
			return o.fail(err)
		}
		return o.succeed()
	}

	if err := o.requireBalance(ctx, "exchange", o.exchange.ExchangeBalance, token, account, amount); err != nil {
		return o.fail(err)
	}
	if err := o.send(ctx, "withdraw", func(ctx context.Context) (*types.Transaction, error) {
		return o.exchange.WithdrawToken(ctx, token, amount)
	}); err != nil {
		return o.fail(err)
	}
	return o.succeed()
}

// MakeOrder places an order for amount of token0 at price token1 per token0.
// A buy gives token1 for token0; a sell gives token0 for token1.
func (o *Orchestrator) MakeOrder(ctx context.Context, side model.OrderType, amount, price decimal.Decimal) (model.TransactionState, error) {
	o.begin(model.TxMakeOrder)
	defer o.reloadBalances(ctx)

	if !amount.IsPositive() || !price.IsPositive() {
		return o.fail(ErrInvalidAmount)
	}
	token0Amount := units.FromDecimal(amount, o.pair.Token0.Decimals)
	token1Amount := units.FromDecimal(amount.Mul(price), o.pair.Token1.Decimals)
	if token0Amount.Sign() <= 0 || token1Amount.Sign() <= 0 {
		return o.fail(ErrInvalidAmount)
	}

	tokenGet, amountGet := o.pair.Token0.Address, token0Amount
	tokenGive, amountGive := o.pair.Token1.Address, token1Amount
	switch side {
	case model.OrderBuy:
	case model.OrderSell:
		tokenGet, amountGet, tokenGive, amountGive = tokenGive, amountGive, tokenGet, amountGet
	default:
		return o.fail(fmt.Errorf("unknown order side %q", side))
	}

	if err := o.requireBalance(ctx, "exchange", o.exchange.ExchangeBalance, tokenGive, o.exchange.From(), amountGive); err != nil {
		return o.fail(err)
	}
	if err := o.send(ctx, "make_order", func(ctx context.Context) (*types.Transaction, error) {
		return o.exchange.MakeOrder(ctx, tokenGet, amountGet, tokenGive, amountGive)
	}); err != nil {
		return o.fail(err)
	}
	return o.succeed()
}

func (o *Orchestrator) CancelOrder(ctx context.Context, id *big.Int) (model.TransactionState, error) {
	o.begin(model.TxCancelOrder)
	defer o.reloadBalances(ctx)
	if err := o.send(ctx, "cancel_order", func(ctx context.Context) (*types.Transaction, error) {
		return o.exchange.CancelOrder(ctx, id)
	}); err != nil {
		return o.fail(err)
	}
	return o.succeed()
}

func (o *Orchestrator) FillOrder(ctx context.Context, id *big.Int) (model.TransactionState, error) {
	o.begin(model.TxFillOrder)
	defer o.reloadBalances(ctx)
	if err := o.send(ctx, "fill_order", func(ctx context.Context) (*types.Transaction, error) {
		return o.exchange.FillOrder(ctx, id)
	}); err != nil {
		return o.fail(err)
	}
	return o.succeed()
}

type balanceFunc func(ctx context.Context, token, user common.Address) (*big.Int, error)

func (o *Orchestrator) requireBalance(ctx context.Context, where string, read balanceFunc, token, user common.Address, amount *big.Int) error {
	var balance *big.Int
	err := o.retry(ctx, where+"_balance", func(ctx context.Context) error {
		var err error
		balance, err = read(ctx, token, user)
		return err
	})
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%s balance %s below %s: %w", where, balance, amount, chain.ErrInsufficientFunds)
	}
	return nil
}

// send submits one transaction and waits for it to be mined. Submission and
// the wait are retried only on rate-limit errors.
func (o *Orchestrator) send(ctx context.Context, step string, submit func(context.Context) (*types.Transaction, error)) error {
	var tx *types.Transaction
	err := o.retry(ctx, step, func(ctx context.Context) error {
		var err error
		tx, err = submit(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	o.recordHash(tx)
	o.logger.Info("transaction sent", zap.String("step", step), zap.String("tx_hash", tx.Hash().Hex()))

	err = o.retry(ctx, step+"_wait", func(ctx context.Context) error {
		_, err := o.exchange.WaitMined(ctx, tx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

func (o *Orchestrator) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := chain.RetryPolicy{
		MaxAttempts: o.cfg.MaxAttempts,
		BaseDelay:   o.cfg.BaseDelay,
		Backoff:     chain.Exponential,
		RetryIf:     chain.IsRateLimit,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.RPCRetries.WithLabelValues(op).Inc()
			o.logger.Warn("rate limited", zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("backoff", delay), zap.Error(err))
		},
	}
	return chain.WithRetry(ctx, policy, fn)
}

func (o *Orchestrator) begin(kind model.TransactionType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = model.TransactionState{Type: kind, IsPending: true}
}

func (o *Orchestrator) recordHash(tx *types.Transaction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.TxHashes = append(o.state.TxHashes, tx.Hash().Hex())
}

func (o *Orchestrator) succeed() (model.TransactionState, error) {
	o.mu.Lock()
	o.state.IsPending = false
	o.state.IsSuccessful = true
	kind := o.state.Type
	o.mu.Unlock()

	metrics.Transactions.WithLabelValues(string(kind), "success").Inc()
	return o.State(), nil
}

func (o *Orchestrator) fail(err error) (model.TransactionState, error) {
	o.mu.Lock()
	o.state.IsPending = false
	o.state.IsError = true
	o.state.ErrorKind = string(chain.Classify(err))
	o.state.Error = chain.Describe(err)
	kind := o.state.Type
	o.mu.Unlock()

	metrics.Transactions.WithLabelValues(string(kind), "error").Inc()
	o.logger.Warn("transaction failed", zap.String("type", string(kind)), zap.String("error_kind", string(chain.Classify(err))), zap.Error(err))
	return o.State(), err
}

func (o *Orchestrator) reloadBalances(ctx context.Context) {
	if o.balances == nil || !o.pair.Loaded() {
		return
	}
	sheet, err := o.balances.LoadBalances(ctx, o.pair, o.exchange.From())
	if err != nil {
		o.logger.Warn("reload balances", zap.Error(err))
		return
	}
	o.mu.Lock()
	o.sheet = sheet
	o.mu.Unlock()
}
