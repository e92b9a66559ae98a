package exchange

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	exchange common.Address
	balances map[common.Address]int64
	wallets  map[common.Address]int64
	calls    map[string]int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	exchangeABI, _ := ExchangeABI()
	tokenABI, _ := ERC20ABI()

	parsed := tokenABI
	if *msg.To == f.exchange {
		parsed = exchangeABI
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method.Name]++
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	switch {
	case method.Name == "balanceOf" && *msg.To == f.exchange:
		token := args[0].(common.Address)
		return pack(method, big.NewInt(f.balances[token]))
	case method.Name == "balanceOf":
		return pack(method, big.NewInt(f.wallets[*msg.To]))
	case method.Name == "decimals":
		return pack(method, uint8(18))
	case method.Name == "symbol":
		return pack(method, "TKN")
	case method.Name == "orderCount":
		return pack(method, big.NewInt(4))
	default:
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}
}

func pack(method *abi.Method, values ...interface{}) ([]byte, error) {
	return method.Outputs.Pack(values...)
}

func TestReaderLoadBalances(t *testing.T) {
	exchangeAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	account := common.HexToAddress("0x2222222222222222222222222222222222222222")

	caller := &fakeCaller{
		exchange: exchangeAddr,
		balances: map[common.Address]int64{token0: 5, token1: 6},
		wallets:  map[common.Address]int64{token0: 50, token1: 60},
	}
	reader := NewReader(caller, exchangeAddr, nil)

	pair, err := reader.LoadPair(context.Background(), token0, token1)
	if err != nil {
		t.Fatalf("load pair: %v", err)
	}
	if pair.Token0.Symbol != "TKN" || pair.Token1.Decimals != 18 {
		t.Fatalf("pair mismatch: %+v", pair)
	}

	sheet, err := reader.LoadBalances(context.Background(), pair, account)
	if err != nil {
		t.Fatalf("load balances: %v", err)
	}
	if sheet.Token0.Wallet.Int64() != 50 || sheet.Token0.Exchange.Int64() != 5 {
		t.Fatalf("token0 balances mismatch: %+v", sheet.Token0)
	}
	if sheet.Token1.Wallet.Int64() != 60 || sheet.Token1.Exchange.Int64() != 6 {
		t.Fatalf("token1 balances mismatch: %+v", sheet.Token1)
	}

	count, err := reader.OrderCount(context.Background())
	if err != nil || count.Int64() != 4 {
		t.Fatalf("order count mismatch: %v %v", count, err)
	}
}

func TestReaderCachesTokenMeta(t *testing.T) {
	exchangeAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	caller := &fakeCaller{exchange: exchangeAddr}
	reader := NewReader(caller, exchangeAddr, nil)

	for i := 0; i < 3; i++ {
		meta, err := reader.TokenMeta(context.Background(), token)
		if err != nil {
			t.Fatalf("token meta: %v", err)
		}
		if meta.Address != token || meta.Symbol != "TKN" {
			t.Fatalf("unexpected meta %+v", meta)
		}
	}
	if caller.calls["decimals"] != 1 || caller.calls["symbol"] != 1 {
		t.Fatalf("expected one call per field, got %v", caller.calls)
	}
}
