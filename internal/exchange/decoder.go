package exchange

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexScope/internal/model"
)

// Decoder converts exchange logs into normalized events.
type Decoder struct {
	exchangeABI abi.ABI
	topicToKind map[common.Hash]model.EventKind
}

// NewDecoder builds a decoder for every exchange event.
func NewDecoder() (*Decoder, error) {
	parsed, err := ExchangeABI()
	if err != nil {
		return nil, fmt.Errorf("parse exchange abi: %w", err)
	}

	topicToKind := make(map[common.Hash]model.EventKind, len(model.AllEventKinds))
	for _, kind := range model.AllEventKinds {
		event, ok := parsed.Events[string(kind)]
		if !ok {
			return nil, fmt.Errorf("event %s missing from abi", kind)
		}
		topicToKind[event.ID] = kind
	}

	return &Decoder{exchangeABI: parsed, topicToKind: topicToKind}, nil
}

// CanDecode checks if the topic0 is an exchange event.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToKind[topic0]
	return ok
}

// Topics returns the topic0 hashes of the given kinds, or of every kind when
// none are given.
func (d *Decoder) Topics(kinds ...model.EventKind) []common.Hash {
	if len(kinds) == 0 {
		kinds = model.AllEventKinds
	}
	topics := make([]common.Hash, 0, len(kinds))
	for _, kind := range kinds {
		if event, ok := d.exchangeABI.Events[string(kind)]; ok {
			topics = append(topics, event.ID)
		}
	}
	return topics
}

// Decode converts a raw log into an Event. Transfer timestamps are left zero;
// the contract does not emit them.
func (d *Decoder) Decode(chainID uint64, log types.Log) (model.Event, error) {
	if len(log.Topics) == 0 {
		return model.Event{}, fmt.Errorf("missing topics")
	}
	kind, ok := d.topicToKind[log.Topics[0]]
	if !ok {
		return model.Event{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	values, err := d.unpack(string(kind), log)
	if err != nil {
		return model.Event{}, err
	}

	event := model.Event{
		Kind:        kind,
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}

	switch kind {
	case model.EventOrderCreated, model.EventCancel, model.EventTrade:
		order, err := orderFromValues(values, kind == model.EventTrade)
		if err != nil {
			return model.Event{}, fmt.Errorf("decode %s: %w", kind, err)
		}
		event.Order = &order
	case model.EventDeposit, model.EventWithdraw:
		transfer, err := transferFromValues(values)
		if err != nil {
			return model.Event{}, fmt.Errorf("decode %s: %w", kind, err)
		}
		event.Transfer = &transfer
	}
	return event, nil
}

func (d *Decoder) unpack(name string, log types.Log) (map[string]interface{}, error) {
	event := d.exchangeABI.Events[name]
	values := make(map[string]interface{}, len(event.Inputs))

	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return values, nil
}

func orderFromValues(values map[string]interface{}, withCreator bool) (model.Order, error) {
	var order model.Order
	var err error
	if order.ID, err = bigField(values, "id"); err != nil {
		return order, err
	}
	if order.User, err = addressField(values, "user"); err != nil {
		return order, err
	}
	if order.TokenGet, err = addressField(values, "tokenGet"); err != nil {
		return order, err
	}
	if order.AmountGet, err = bigField(values, "amountGet"); err != nil {
		return order, err
	}
	if order.TokenGive, err = addressField(values, "tokenGive"); err != nil {
		return order, err
	}
	if order.AmountGive, err = bigField(values, "amountGive"); err != nil {
		return order, err
	}
	if withCreator {
		if order.Creator, err = addressField(values, "creator"); err != nil {
			return order, err
		}
	}
	ts, err := bigField(values, "timestamp")
	if err != nil {
		return order, err
	}
	if !ts.IsUint64() {
		return order, fmt.Errorf("timestamp overflow: %s", ts)
	}
	order.Timestamp = ts.Uint64()
	return order, nil
}

func transferFromValues(values map[string]interface{}) (model.Transfer, error) {
	var transfer model.Transfer
	var err error
	if transfer.Token, err = addressField(values, "token"); err != nil {
		return transfer, err
	}
	if transfer.User, err = addressField(values, "user"); err != nil {
		return transfer, err
	}
	if transfer.Amount, err = bigField(values, "amount"); err != nil {
		return transfer, err
	}
	if transfer.Balance, err = bigField(values, "balance"); err != nil {
		return transfer, err
	}
	return transfer, nil
}

func bigField(values map[string]interface{}, name string) (*big.Int, error) {
	value, ok := values[name]
	if !ok {
		return nil, fmt.Errorf("missing field %s", name)
	}
	v, err := asBigInt(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func addressField(values map[string]interface{}, name string) (common.Address, error) {
	value, ok := values[name]
	if !ok {
		return common.Address{}, fmt.Errorf("missing field %s", name)
	}
	addr, err := asAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
