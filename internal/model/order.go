package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is an on-chain order record. Trade events reuse it with Creator set to the maker
// and User set to the taker.
type Order struct {
	ID         *big.Int       `json:"id"`
	User       common.Address `json:"user"`
	TokenGet   common.Address `json:"token_get"`
	AmountGet  *big.Int       `json:"amount_get"`
	TokenGive  common.Address `json:"token_give"`
	AmountGive *big.Int       `json:"amount_give"`
	Creator    common.Address `json:"creator,omitempty"`
	Timestamp  uint64         `json:"timestamp"`
}

// Key returns the string-normalized order id.
func (o Order) Key() string {
	return OrderKey(o.ID)
}

// OrderKey normalizes an order id so that equal ids compare equal regardless of
// how they were decoded.
func OrderKey(id *big.Int) string {
	if id == nil {
		return "0"
	}
	return id.String()
}

// Transfer is a Deposit or Withdraw record.
type Transfer struct {
	Token     common.Address `json:"token"`
	User      common.Address `json:"user"`
	Amount    *big.Int       `json:"amount"`
	Balance   *big.Int       `json:"balance"`
	Timestamp uint64         `json:"timestamp"`
}
