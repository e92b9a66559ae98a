package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient creates a new chain client from the RPC URL. An empty URL means no
// provider is configured and yields ErrNotConnected.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, ErrNotConnected
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		tsCache:   make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c != nil && c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Backend exposes the client for contract bindings and receipt polling.
func (c *Client) Backend() bind.ContractBackend {
	return c.ethClient
}

// DeployBackend exposes the client for waiting on mined transactions.
func (c *Client) DeployBackend() bind.DeployBackend {
	return c.ethClient
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// CodeAt returns the deployed bytecode at address.
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	return c.ethClient.CodeAt(ctx, address, nil)
}

// BalanceAt returns the native coin balance of an account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.ethClient.BalanceAt(ctx, account, nil)
}

// TransactionReceipt returns the receipt of a mined transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.ethClient.TransactionReceipt(ctx, hash)
}

// CheckExchange verifies the node is on the expected network and that the
// exchange contract is deployed. expectedChainID of zero skips the network check.
func (c *Client) CheckExchange(ctx context.Context, expectedChainID uint64, exchange common.Address) (uint64, error) {
	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return 0, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	id := chainID.Uint64()
	if expectedChainID != 0 && id != expectedChainID {
		return id, fmt.Errorf("%w: connected to %d, expected %d", ErrWrongNetwork, id, expectedChainID)
	}

	code, err := c.CodeAt(ctx, exchange)
	if err != nil {
		return id, fmt.Errorf("get code: %w", err)
	}
	if len(code) == 0 {
		return id, fmt.Errorf("%w: %s", ErrNoContract, exchange.Hex())
	}
	return id, nil
}

// NewTransactor builds signing options from a hex private key.
func NewTransactor(privateKeyHex string, chainID uint64) (*bind.TransactOpts, common.Address, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if keyHex == "" {
		return nil, common.Address{}, fmt.Errorf("%w: private key is required", ErrNotConnected)
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("build transactor: %w", err)
	}
	return opts, addressOf(key), nil
}

func addressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
