package exchange

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexScope/internal/chain"
)

type fakeDeployer struct {
	status uint64
}

func (f fakeDeployer) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{TxHash: hash, Status: f.status}, nil
}

func (f fakeDeployer) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func newTestWriter(t *testing.T, status uint64) *Writer {
	t.Helper()
	exchangeAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	writer, err := NewWriter(nil, fakeDeployer{status: status}, &bind.TransactOpts{}, exchangeAddr)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	return writer
}

func TestWaitMinedSuccess(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{Nonce: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receipt, err := newTestWriter(t, types.ReceiptStatusSuccessful).WaitMined(ctx, tx)
	if err != nil {
		t.Fatalf("wait mined: %v", err)
	}
	if receipt.TxHash != tx.Hash() {
		t.Fatalf("receipt hash mismatch")
	}
}

func TestWaitMinedReverted(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{Nonce: 2})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receipt, err := newTestWriter(t, types.ReceiptStatusFailed).WaitMined(ctx, tx)
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusFailed {
		t.Fatalf("expected failed receipt, got %+v", receipt)
	}
	if kind := chain.Classify(err); kind != chain.KindUnknown {
		t.Fatalf("classify = %q, want unknown", kind)
	}
	if got, want := chain.Describe(err), "transaction reverted: "+tx.Hash().Hex(); got != want {
		t.Fatalf("describe = %q, want %q", got, want)
	}
}
