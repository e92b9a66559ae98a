package exchange

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexScope/internal/model"
)

func TestDecoderOrderCreated(t *testing.T) {
	parsed, err := ExchangeABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	user := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenGet := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenGive := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	data, err := parsed.Events["OrderCreated"].Inputs.NonIndexed().Pack(
		big.NewInt(7),
		user,
		tokenGet,
		big.NewInt(10),
		tokenGive,
		big.NewInt(20),
		big.NewInt(1700000000),
	)
	if err != nil {
		t.Fatalf("pack order created: %v", err)
	}

	log := buildLog(parsed.Events["OrderCreated"].ID, data)
	event, err := decoder.Decode(31337, log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if event.Kind != model.EventOrderCreated || event.Order == nil {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Order.Key() != "7" || event.Order.User != user {
		t.Fatalf("order mismatch: %+v", event.Order)
	}
	if event.Order.TokenGet != tokenGet || event.Order.AmountGet.Int64() != 10 {
		t.Fatalf("get leg mismatch: %+v", event.Order)
	}
	if event.Order.TokenGive != tokenGive || event.Order.AmountGive.Int64() != 20 {
		t.Fatalf("give leg mismatch: %+v", event.Order)
	}
	if event.Order.Timestamp != 1700000000 {
		t.Fatalf("timestamp mismatch: %d", event.Order.Timestamp)
	}
	if event.ChainID != 31337 || event.BlockNumber != 12345 || event.LogIndex != 1 {
		t.Fatalf("location mismatch: %+v", event)
	}
}

func TestDecoderTradeAndDeposit(t *testing.T) {
	parsed, err := ExchangeABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	taker := common.HexToAddress("0x3333333333333333333333333333333333333333")
	maker := common.HexToAddress("0x4444444444444444444444444444444444444444")
	token := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	tradeData, err := parsed.Events["Trade"].Inputs.NonIndexed().Pack(
		big.NewInt(3),
		taker,
		token,
		big.NewInt(1),
		token,
		big.NewInt(2),
		maker,
		big.NewInt(1700000100),
	)
	if err != nil {
		t.Fatalf("pack trade: %v", err)
	}

	trade, err := decoder.Decode(1, buildLog(parsed.Events["Trade"].ID, tradeData))
	if err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if trade.Kind != model.EventTrade || trade.Order.Creator != maker || trade.Order.User != taker {
		t.Fatalf("trade mismatch: %+v", trade.Order)
	}

	depositData, err := parsed.Events["Deposit"].Inputs.NonIndexed().Pack(
		token,
		taker,
		big.NewInt(500),
		big.NewInt(800),
	)
	if err != nil {
		t.Fatalf("pack deposit: %v", err)
	}

	deposit, err := decoder.Decode(1, buildLog(parsed.Events["Deposit"].ID, depositData))
	if err != nil {
		t.Fatalf("decode deposit: %v", err)
	}
	if deposit.Transfer == nil || deposit.Transfer.Amount.Int64() != 500 || deposit.Transfer.Balance.Int64() != 800 {
		t.Fatalf("deposit mismatch: %+v", deposit.Transfer)
	}
}

func TestDecoderRejectsUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	unknown := common.HexToHash("0x01")
	if decoder.CanDecode(unknown) {
		t.Fatalf("unexpected CanDecode")
	}
	if _, err := decoder.Decode(1, buildLog(unknown, nil)); err == nil {
		t.Fatalf("expected error for unknown topic")
	}
	if got := len(decoder.Topics()); got != len(model.AllEventKinds) {
		t.Fatalf("topics mismatch: %d", got)
	}
	if got := len(decoder.Topics(model.EventTrade)); got != 1 {
		t.Fatalf("single topic mismatch: %d", got)
	}
}

func buildLog(topic0 common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics:      []common.Hash{topic0},
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}
}
