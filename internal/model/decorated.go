package model

import "github.com/shopspring/decimal"

// OrderType is the side of an order relative to the active pair.
type OrderType string

const (
	OrderBuy  OrderType = "buy"
	OrderSell OrderType = "sell"
)

// Price movement markers for trade history and the price series.
const (
	PriceUp   = "+"
	PriceDown = "-"
)

// DecoratedOrder is a read-only projection of an Order with display fields.
// It is recomputed on every read.
type DecoratedOrder struct {
	Order
	Token0Amount       decimal.Decimal `json:"token0_amount"`
	Token1Amount       decimal.Decimal `json:"token1_amount"`
	TokenPrice         decimal.Decimal `json:"token_price"`
	OrderType          OrderType       `json:"order_type"`
	FormattedTimestamp string          `json:"formatted_timestamp"`
	PriceClass         string          `json:"price_class,omitempty"`
	OrderSign          string          `json:"order_sign,omitempty"`
}

// OrderBook groups open orders by side.
type OrderBook struct {
	BuyOrders  []DecoratedOrder `json:"buy_orders"`
	SellOrders []DecoratedOrder `json:"sell_orders"`
}

// Candle is an OHLC bucket. Start is the bucket start in unix seconds.
type Candle struct {
	Start uint64          `json:"start"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// PriceSeries is the charting view of filled orders.
type PriceSeries struct {
	LastPrice       decimal.Decimal `json:"last_price"`
	LastPriceChange string          `json:"last_price_change"`
	Series          []Candle        `json:"series"`
}
