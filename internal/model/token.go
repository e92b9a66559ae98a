package model

import "github.com/ethereum/go-ethereum/common"

// DefaultDecimals is the fixed-point precision of exchange amounts.
const DefaultDecimals = 18

// Token captures ERC20 metadata.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// TokenPair is the active market. Token0 is the base token and Token1 the quote
// token; prices are quoted as Token1 per Token0.
type TokenPair struct {
	Token0 Token `json:"token0"`
	Token1 Token `json:"token1"`
}

// Loaded reports whether both token addresses are known.
func (p TokenPair) Loaded() bool {
	return p.Token0.Address != (common.Address{}) && p.Token1.Address != (common.Address{})
}

// Contains reports whether an order exchanges exactly the two pair tokens.
func (p TokenPair) Contains(o Order) bool {
	if !p.Loaded() {
		return false
	}
	return (o.TokenGive == p.Token0.Address && o.TokenGet == p.Token1.Address) ||
		(o.TokenGive == p.Token1.Address && o.TokenGet == p.Token0.Address)
}

// Symbols returns "SYM0/SYM1" for display.
func (p TokenPair) Symbols() string {
	return p.Token0.Symbol + "/" + p.Token1.Symbol
}
