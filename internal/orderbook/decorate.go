package orderbook

import (
	"math/big"
	"time"

	"dexScope/internal/model"
	"dexScope/internal/units"
)

const (
	pricePrecision  = 5
	timestampLayout = "3:04:05pm Jan 2"
)

// Decorate computes the display fields of order for pair. It returns false
// when the pair is not loaded, the order trades other tokens, or the token0
// leg is zero so no price exists.
//
// An order giving token1 buys token0; any other order in the pair sells it.
// The price is always token1 per token0.
func Decorate(order model.Order, pair model.TokenPair) (model.DecoratedOrder, bool) {
	if !pair.Contains(order) {
		return model.DecoratedOrder{}, false
	}

	orderType := model.OrderSell
	token0Raw, token1Raw := order.AmountGive, order.AmountGet
	if order.TokenGive == pair.Token1.Address {
		orderType = model.OrderBuy
		token0Raw, token1Raw = order.AmountGet, order.AmountGive
	}

	token0Amount := units.ToDecimal(token0Raw, pair.Token0.Decimals)
	token1Amount := units.ToDecimal(token1Raw, pair.Token1.Decimals)
	if token0Amount.IsZero() {
		return model.DecoratedOrder{}, false
	}

	return model.DecoratedOrder{
		Order:              order,
		Token0Amount:       token0Amount,
		Token1Amount:       token1Amount,
		TokenPrice:         token1Amount.DivRound(token0Amount, pricePrecision),
		OrderType:          orderType,
		FormattedTimestamp: FormatTimestamp(order.Timestamp),
	}, true
}

// DecorateAll decorates orders and drops the ones Decorate rejects.
func DecorateAll(orders []model.Order, pair model.TokenPair) []model.DecoratedOrder {
	out := make([]model.DecoratedOrder, 0, len(orders))
	for _, order := range orders {
		if decorated, ok := Decorate(order, pair); ok {
			out = append(out, decorated)
		}
	}
	return out
}

// FormatTimestamp renders a unix timestamp for display in UTC.
func FormatTimestamp(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(timestampLayout)
}

func compareOrderIDs(a, b model.Order) int {
	ai, bi := a.ID, b.ID
	if ai == nil {
		ai = new(big.Int)
	}
	if bi == nil {
		bi = new(big.Int)
	}
	return ai.Cmp(bi)
}
