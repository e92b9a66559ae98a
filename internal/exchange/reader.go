package exchange

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexScope/internal/model"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenCache caches token metadata by address.
type TokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{data: make(map[common.Address]model.Token)}
}

func (c *TokenCache) Get(address common.Address) (model.Token, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenCache) Set(address common.Address, meta model.Token) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Reader reads exchange and token state via eth_call.
type Reader struct {
	caller   Caller
	exchange common.Address
	tokens   *TokenCache
	logger   *zap.Logger
}

// NewReader builds a Reader for the exchange at address.
func NewReader(caller Caller, exchange common.Address, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{caller: caller, exchange: exchange, tokens: NewTokenCache(), logger: logger}
}

// Exchange returns the exchange contract address.
func (r *Reader) Exchange() common.Address {
	return r.exchange
}

// ExchangeBalance returns the exchange-custodied balance of token for user.
func (r *Reader) ExchangeBalance(ctx context.Context, token, user common.Address) (*big.Int, error) {
	parsed, err := ExchangeABI()
	if err != nil {
		return nil, err
	}
	values, err := r.call(ctx, parsed, r.exchange, "balanceOf", token, user)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// WalletBalance returns the ERC20 balance of user.
func (r *Reader) WalletBalance(ctx context.Context, token, user common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := r.call(ctx, parsed, token, "balanceOf", user)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Allowance returns how much of owner's token the exchange may pull.
func (r *Reader) Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := r.call(ctx, parsed, token, "allowance", owner, r.exchange)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// OrderCount returns the number of orders ever created.
func (r *Reader) OrderCount(ctx context.Context) (*big.Int, error) {
	parsed, err := ExchangeABI()
	if err != nil {
		return nil, err
	}
	values, err := r.call(ctx, parsed, r.exchange, "orderCount")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// FeePercent returns the taker fee percentage.
func (r *Reader) FeePercent(ctx context.Context) (*big.Int, error) {
	parsed, err := ExchangeABI()
	if err != nil {
		return nil, err
	}
	values, err := r.call(ctx, parsed, r.exchange, "feePercent")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// TokenMeta loads symbol and decimals. A failing symbol call is tolerated.
// Results are cached for the lifetime of the Reader.
func (r *Reader) TokenMeta(ctx context.Context, token common.Address) (model.Token, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}
	meta := model.Token{Address: token, Decimals: model.DefaultDecimals}
	parsed, err := ERC20ABI()
	if err != nil {
		return meta, err
	}

	values, err := r.call(ctx, parsed, token, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := r.call(ctx, parsed, token, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else {
		r.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	r.tokens.Set(token, meta)
	return meta, nil
}

// LoadPair resolves token metadata for the active pair.
func (r *Reader) LoadPair(ctx context.Context, token0, token1 common.Address) (model.TokenPair, error) {
	t0, err := r.TokenMeta(ctx, token0)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("token0 metadata: %w", err)
	}
	t1, err := r.TokenMeta(ctx, token1)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("token1 metadata: %w", err)
	}
	return model.TokenPair{Token0: t0, Token1: t1}, nil
}

// LoadBalances reads wallet and exchange balances of both pair tokens.
func (r *Reader) LoadBalances(ctx context.Context, pair model.TokenPair, account common.Address) (model.BalanceSheet, error) {
	sheet := model.BalanceSheet{Account: account}
	var err error
	if sheet.Token0, err = r.balancePair(ctx, pair.Token0.Address, account); err != nil {
		return sheet, fmt.Errorf("token0 balances: %w", err)
	}
	if sheet.Token1, err = r.balancePair(ctx, pair.Token1.Address, account); err != nil {
		return sheet, fmt.Errorf("token1 balances: %w", err)
	}
	return sheet, nil
}

func (r *Reader) balancePair(ctx context.Context, token, account common.Address) (model.BalancePair, error) {
	wallet, err := r.WalletBalance(ctx, token, account)
	if err != nil {
		return model.BalancePair{}, err
	}
	custodied, err := r.ExchangeBalance(ctx, token, account)
	if err != nil {
		return model.BalancePair{}, err
	}
	return model.BalancePair{Wallet: wallet, Exchange: custodied}, nil
}

func (r *Reader) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if r.caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}
