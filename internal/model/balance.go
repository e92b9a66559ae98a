package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalancePair holds the wallet and exchange-custodied balance of one token.
type BalancePair struct {
	Wallet   *big.Int `json:"wallet"`
	Exchange *big.Int `json:"exchange"`
}

// BalanceSheet holds both pair tokens' balances for an account.
type BalanceSheet struct {
	Account common.Address `json:"account"`
	Token0  BalancePair    `json:"token0"`
	Token1  BalancePair    `json:"token1"`
}
